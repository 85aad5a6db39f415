package norm

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/rlch/norm/internal/codec"
)

// RelationshipManager is the ephemeral handle for one relationship attribute
// of one live node instance, e.g. the "friends" edge set of a person. It
// borrows the source node, composes parameterized queries from the spec, and
// executes them through the session. Construct one per access via
// [RelationshipSpec.Manager]; it is not safe for concurrent use and is meant
// to be discarded after the call completes.
type RelationshipManager struct {
	source     INode
	sourceMeta *codec.NodeMeta
	name       string
	spec       *RelationshipSpec
	node       *codec.NodeMeta
	session    Session
}

func (m *RelationshipManager) String() string {
	return fmt.Sprintf("%s in %s direction of type %s on node (%s) of class %q",
		m.spec.cardinality, m.spec.direction, m.spec.relType,
		m.source.GetElementID(), m.sourceMeta.Name())
}

// checkSource fails fast unless the source node is persisted and not
// deleted. Every mutation runs this before issuing any query.
func (m *RelationshipManager) checkSource(op string) error {
	if m.source.GetElementID() == "" {
		return &ValidationError{
			Op:     m.name + "." + op,
			Reason: "cannot perform operation on unsaved node",
		}
	}
	if d, ok := m.source.(deletable); ok && d.IsDeleted() {
		return &ValidationError{
			Op:     m.name + "." + op,
			Reason: "cannot perform operation on deleted node",
		}
	}
	return nil
}

// checkNode validates that node is an instance of the declared endpoint
// class (or a type embedding it) and is persisted.
func (m *RelationshipManager) checkNode(op string, node INode) error {
	t := structType(node)
	want := m.node.Type()
	if t != want && !embedsType(t, want) {
		return &ValidationError{
			Op:     m.name + "." + op,
			Reason: fmt.Sprintf("expected node of class %s, got %s", want.Name(), t.Name()),
		}
	}
	if node.GetElementID() == "" {
		return &ValidationError{
			Op:     m.name + "." + op,
			Reason: fmt.Sprintf("cannot perform operation on unsaved node %s", t.Name()),
		}
	}
	return nil
}

// run executes a query through the session, injecting the source identity.
func (m *RelationshipManager) run(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	if params == nil {
		params = make(map[string]any, 1)
	}
	params["self"] = m.source.GetElementID()
	return m.session.Run(ctx, cypher, params)
}

// Connect creates (or merges) an edge from the source to node. When an
// edge-property model is bound, properties populate a new model instance
// (declared defaults apply to absent keys; explicitly nil values travel as
// null parameters), and the materialized edge is read back, inflated and
// returned. Without a model the merge executes without a read-back and the
// returned relationship is nil. Supplying properties without a bound model
// is a validation error.
func (m *RelationshipManager) Connect(ctx context.Context, node INode, properties map[string]any) (IRelationship, error) {
	if err := m.checkSource("Connect"); err != nil {
		return nil, err
	}
	if err := m.checkNode("Connect", node); err != nil {
		return nil, err
	}
	if err := m.checkConnectCardinality(ctx); err != nil {
		return nil, err
	}

	destMeta, err := m.spec.registry.nodeMeta(structType(node))
	if err != nil {
		return nil, err
	}
	prefix := fmt.Sprintf(
		"MATCH (them:`%s`), (us:`%s`) WHERE elementId(them) = $them AND elementId(us) = $self MERGE ",
		destMeta.Label(), m.sourceMeta.Label(),
	)
	return m.connect(ctx, "Connect", prefix, properties, node, nil)
}

// BulkConnect connects every node whose application-level key ("uuid"
// property) is in keys, creating all edges in a single round trip. The
// target label is supplied by the caller since keys carry no type. Empty
// keys is a deliberate no-op: no query is issued. Returns the first
// materialized edge when a model is bound, mirroring Connect.
func (m *RelationshipManager) BulkConnect(ctx context.Context, keys []uuid.UUID, label string, properties map[string]any) (IRelationship, error) {
	if err := m.checkSource("BulkConnect"); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if !validIdent(label) {
		return nil, &ValidationError{
			Op:     m.name + ".BulkConnect",
			Reason: fmt.Sprintf("invalid node label %q", label),
		}
	}

	prefix := fmt.Sprintf(
		"UNWIND $uuids AS uuid MATCH (them:`%s`), (us:`%s`) WHERE them.uuid = uuid AND elementId(us) = $self MERGE ",
		label, m.sourceMeta.Label(),
	)
	return m.connect(ctx, "BulkConnect", prefix, properties, nil, uuidStrings(keys))
}

// connect is the shared tail of Connect and BulkConnect: the query prefix
// (identity match or UNWIND over keys) differs, the merge and read-back do
// not.
func (m *RelationshipManager) connect(
	ctx context.Context,
	op, prefix string,
	properties map[string]any,
	node INode,
	keys []string,
) (IRelationship, error) {
	if m.spec.model == nil && properties != nil {
		return nil, &ValidationError{
			Op:     m.name + "." + op,
			Reason: "relationship properties require a bound relationship model",
		}
	}

	params := make(map[string]any)
	var placeholders []PropPlaceholder
	var inst any

	if m.spec.model != nil {
		var err error
		inst, err = m.spec.model.Instantiate(properties)
		if err != nil {
			return nil, err
		}
		if pre, ok := inst.(PreSaver); ok {
			if err := pre.PreSave(); err != nil {
				return nil, err
			}
		}
		deflated, err := m.spec.model.Deflate(inst)
		if err != nil {
			return nil, err
		}
		for prop, val := range deflated {
			params[prop] = val
			placeholders = append(placeholders, PropPlaceholder{Prop: prop, Param: prop, Null: val == nil})
		}
	}

	frag, err := Pattern{
		Left:      "us",
		Right:     "them",
		Ident:     "r",
		RelType:   m.spec.relType,
		Direction: m.spec.direction,
		Props:     placeholders,
	}.Merge()
	if err != nil {
		return nil, err
	}
	query := prefix + frag

	if node != nil {
		params["them"] = node.GetElementID()
	} else {
		params["uuids"] = keys
	}

	if m.spec.model == nil {
		_, err := m.run(ctx, query, params)
		return nil, err
	}

	res, err := m.run(ctx, query+" RETURN r", params)
	if err != nil {
		return nil, err
	}
	row, ok := res.First()
	if !ok || len(row) == 0 {
		return nil, fmt.Errorf("norm: %s.%s: merge returned no relationship", m.name, op)
	}
	rel, ok := relationshipValue(row[0])
	if !ok {
		return nil, fmt.Errorf("norm: %s.%s: expected relationship value, got %T", m.name, op, row[0])
	}

	out, err := m.inflate(rel, node)
	if err != nil {
		return nil, err
	}
	if post, ok := out.(PostSaver); ok {
		if err := post.PostSave(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Disconnect deletes the edge(s) of this relation type between the source
// and node.
func (m *RelationshipManager) Disconnect(ctx context.Context, node INode) error {
	if err := m.checkSource("Disconnect"); err != nil {
		return err
	}
	if err := m.checkDisconnectCardinality(ctx, "Disconnect", false); err != nil {
		return err
	}

	frag, err := Pattern{
		Left: "a", Right: "b", Ident: "r",
		RelType: m.spec.relType, Direction: m.spec.direction,
	}.Match()
	if err != nil {
		return err
	}
	query := "MATCH (a), (b) WHERE elementId(a) = $self AND elementId(b) = $them MATCH " + frag + " DELETE r"
	_, err = m.run(ctx, query, map[string]any{"them": node.GetElementID()})
	return err
}

// BulkDisconnect deletes every edge of this relation type between the
// source and any node whose application-level key is in keys, in one query.
// Empty keys is a deliberate no-op.
func (m *RelationshipManager) BulkDisconnect(ctx context.Context, keys []uuid.UUID) error {
	if err := m.checkSource("BulkDisconnect"); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := m.checkDisconnectCardinality(ctx, "BulkDisconnect", false); err != nil {
		return err
	}

	frag, err := Pattern{
		Left: "a", Right: "b", Ident: "r",
		RelType: m.spec.relType, Direction: m.spec.direction,
	}.Match()
	if err != nil {
		return err
	}
	query := "MATCH (a), (b) WHERE elementId(a) = $self AND b.uuid IN $them MATCH " + frag + " DELETE r"
	_, err = m.run(ctx, query, map[string]any{"them": uuidStrings(keys)})
	return err
}

// DisconnectAll deletes every edge of this relation type from the source to
// any node of the declared endpoint label.
func (m *RelationshipManager) DisconnectAll(ctx context.Context) error {
	if err := m.checkSource("DisconnectAll"); err != nil {
		return err
	}
	if err := m.checkDisconnectCardinality(ctx, "DisconnectAll", true); err != nil {
		return err
	}

	frag, err := Pattern{
		Left: "a", Right: "b", RightLabel: m.node.Label(), Ident: "r",
		RelType: m.spec.relType, Direction: m.spec.direction,
	}.Match()
	if err != nil {
		return err
	}
	query := "MATCH (a) WHERE elementId(a) = $self MATCH " + frag + " DELETE r"
	_, err = m.run(ctx, query, nil)
	return err
}

// Replace disconnects all existing nodes, then connects node. These are two
// independent queries, not one transaction: if the second fails the source
// is left with zero edges of this type. Callers needing atomicity must wrap
// the manager's session in an external transaction (see
// [DriverSession.Begin]).
func (m *RelationshipManager) Replace(ctx context.Context, node INode, properties map[string]any) (IRelationship, error) {
	if err := m.checkSource("Replace"); err != nil {
		return nil, err
	}
	if err := m.DisconnectAll(ctx); err != nil {
		return nil, err
	}
	return m.Connect(ctx, node, properties)
}

// Reconnect moves the edge from oldNode to newNode, copying every property
// present on the old edge onto the new one. The new edge is created before
// the old one is deleted, so the operation never leaves the source without
// an edge of this type. Sharing identity between oldNode and newNode is a
// no-op; a missing edge to oldNode is a NotConnectedError, and nothing is
// mutated.
func (m *RelationshipManager) Reconnect(ctx context.Context, oldNode, newNode INode) error {
	if err := m.checkSource("Reconnect"); err != nil {
		return err
	}
	if err := m.checkNode("Reconnect", oldNode); err != nil {
		return err
	}
	if err := m.checkNode("Reconnect", newNode); err != nil {
		return err
	}
	if oldNode.GetElementID() == newNode.GetElementID() {
		return nil
	}

	oldFrag, err := Pattern{
		Left: "us", Right: "old", Ident: "r",
		RelType: m.spec.relType, Direction: m.spec.direction,
	}.Match()
	if err != nil {
		return err
	}

	res, err := m.run(ctx,
		"MATCH (us), (old) WHERE elementId(us) = $self AND elementId(old) = $old MATCH "+oldFrag+" RETURN r",
		map[string]any{"old": oldNode.GetElementID()},
	)
	if err != nil {
		return err
	}
	row, ok := res.First()
	if !ok || len(row) == 0 {
		return &NotConnectedError{
			Op:     m.name + ".Reconnect",
			Source: m.describe(m.sourceMeta, m.source),
			Target: m.describe(m.node, oldNode),
		}
	}
	rel, ok := relationshipValue(row[0])
	if !ok {
		return fmt.Errorf("norm: %s.Reconnect: expected relationship value, got %T", m.name, row[0])
	}

	props := make([]string, 0, len(rel.Props))
	for prop := range rel.Props {
		// Property names come back from the database; hold them to the
		// same allow-list as schema identifiers before splicing.
		if !validIdent(prop) {
			return fmt.Errorf("norm: %s.Reconnect: unsafe property name %q on existing relationship", m.name, prop)
		}
		props = append(props, prop)
	}
	sort.Strings(props)

	newFrag, err := Pattern{
		Left: "us", Right: "new", Ident: "r2",
		RelType: m.spec.relType, Direction: m.spec.direction,
	}.Merge()
	if err != nil {
		return err
	}

	query := "MATCH (us), (old), (new) WHERE elementId(us) = $self AND elementId(old) = $old AND elementId(new) = $new " +
		"MATCH " + oldFrag + " MERGE " + newFrag
	for _, prop := range props {
		query += fmt.Sprintf(" SET r2.`%s` = r.`%s`", prop, prop)
	}
	query += " WITH r DELETE r"

	_, err = m.run(ctx, query, map[string]any{
		"old": oldNode.GetElementID(),
		"new": newNode.GetElementID(),
	})
	return err
}

// Relationship returns the first edge-property instance between the source
// and node, or nil when no edge exists.
func (m *RelationshipManager) Relationship(ctx context.Context, node INode) (IRelationship, error) {
	if err := m.checkSource("Relationship"); err != nil {
		return nil, err
	}
	if err := m.checkNode("Relationship", node); err != nil {
		return nil, err
	}

	res, err := m.queryRelationships(ctx, node, " LIMIT 1")
	if err != nil {
		return nil, err
	}
	row, ok := res.First()
	if !ok || len(row) == 0 {
		return nil, nil
	}
	rel, ok := relationshipValue(row[0])
	if !ok {
		return nil, fmt.Errorf("norm: %s.Relationship: expected relationship value, got %T", m.name, row[0])
	}
	return m.inflate(rel, node)
}

// AllRelationships returns every edge-property instance between the source
// and node. Absence of edges yields an empty slice, not an error.
func (m *RelationshipManager) AllRelationships(ctx context.Context, node INode) ([]IRelationship, error) {
	if err := m.checkSource("AllRelationships"); err != nil {
		return nil, err
	}
	if err := m.checkNode("AllRelationships", node); err != nil {
		return nil, err
	}

	res, err := m.queryRelationships(ctx, node, "")
	if err != nil {
		return nil, err
	}

	out := make([]IRelationship, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		rel, ok := relationshipValue(row[0])
		if !ok {
			return nil, fmt.Errorf("norm: %s.AllRelationships: expected relationship value, got %T", m.name, row[0])
		}
		inst, err := m.inflate(rel, node)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func (m *RelationshipManager) queryRelationships(ctx context.Context, node INode, suffix string) (*Result, error) {
	frag, err := Pattern{
		Left: "us", Right: "them", Ident: "r",
		RelType: m.spec.relType, Direction: m.spec.direction,
	}.Match()
	if err != nil {
		return nil, err
	}
	query := "MATCH " + frag + " WHERE elementId(them) = $them AND elementId(us) = $self RETURN r" + suffix
	return m.run(ctx, query, map[string]any{"them": node.GetElementID()})
}

// inflate materializes an edge-property instance from a driver relationship
// and assigns the start/end node classes according to direction. node may be
// nil (bulk connect), in which case the declared endpoint class is used.
func (m *RelationshipManager) inflate(rel dbtype.Relationship, node INode) (IRelationship, error) {
	var inst any
	if m.spec.model != nil {
		var err error
		inst, err = m.spec.model.Inflate(rel.Props)
		if err != nil {
			return nil, err
		}
	} else {
		inst = &Relationship{}
	}

	out, ok := inst.(IRelationship)
	if !ok {
		return nil, fmt.Errorf("norm: %s: model %T does not embed norm.Relationship", m.name, inst)
	}
	if setter, ok := inst.(elementIDSetter); ok {
		setter.SetElementID(rel.ElementId)
	}

	other := m.node.Type()
	if node != nil {
		other = structType(node)
	}
	if setter, ok := inst.(nodeTypeSetter); ok {
		if m.spec.direction == Incoming {
			setter.setNodeTypes(other, m.sourceMeta.Type())
		} else {
			setter.setNodeTypes(m.sourceMeta.Type(), other)
		}
	}
	return out, nil
}

// checkConnectCardinality enforces the declared policy before creating a
// new edge.
func (m *RelationshipManager) checkConnectCardinality(ctx context.Context) error {
	switch m.spec.cardinality {
	case ZeroOrOne, One:
		n, err := m.Len(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return &CardinalityViolationError{
				RelType:     m.spec.relType,
				Cardinality: m.spec.cardinality,
				Reason:      "node already has a relationship of this type",
			}
		}
	default:
	}
	return nil
}

// checkDisconnectCardinality enforces the declared policy before removing
// edges. all marks operations that remove the entire edge set.
func (m *RelationshipManager) checkDisconnectCardinality(ctx context.Context, op string, all bool) error {
	switch m.spec.cardinality {
	case One:
		return &CardinalityViolationError{
			RelType:     m.spec.relType,
			Cardinality: m.spec.cardinality,
			Reason:      op + " would break the one-relationship constraint, use Reconnect",
		}
	case OneOrMore:
		if all {
			return &CardinalityViolationError{
				RelType:     m.spec.relType,
				Cardinality: m.spec.cardinality,
				Reason:      op + " would remove every relationship of this type",
			}
		}
		n, err := m.Len(ctx)
		if err != nil {
			return err
		}
		if n == 1 {
			return &CardinalityViolationError{
				RelType:     m.spec.relType,
				Cardinality: m.spec.cardinality,
				Reason:      op + " would remove the last relationship of this type",
			}
		}
	default:
	}
	return nil
}

func (m *RelationshipManager) describe(meta *codec.NodeMeta, node INode) string {
	return fmt.Sprintf("%s(%s)", meta.Name(), node.GetElementID())
}

func uuidStrings(keys []uuid.UUID) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

var _ fmt.Stringer = (*RelationshipManager)(nil)
