package norm

import (
	"context"

	"github.com/rlch/norm/internal/codec"
)

// Traversal describes one hop from a bound source node across a declared
// relationship. A query compiler turns it into an executable node query.
type Traversal struct {
	// Source is the persisted node the traversal starts from.
	Source INode

	// SourceMeta is the source node's class metadata.
	SourceMeta *codec.NodeMeta

	// Name is the attribute name the relationship was declared under; it
	// appears in error messages.
	Name string

	// Spec is the relationship being traversed.
	Spec *RelationshipSpec

	// Node is the resolved endpoint class metadata.
	Node *codec.NodeMeta
}

// QueryCompiler turns a traversal into an executable node query. The default
// compiler renders direct Cypher; substituting one redirects reads through a
// custom query layer (caching, sharding, instrumentation) without touching
// the schema declarations.
type QueryCompiler interface {
	Compile(t Traversal, sess Session) NodeQuery
}

// NodeQuery is a lazy, chainable node result set. Chaining methods clone;
// a partially-built query can be reused as a base for several refinements.
// Nothing executes until a terminal method (All, Get, Len, ...) runs.
type NodeQuery interface {
	// Where adds filter conditions on endpoint properties. Conditions
	// combine with AND.
	Where(conds ...Cond) NodeQuery

	// Exclude adds negated filter conditions; matching nodes are removed
	// from the result set.
	Exclude(conds ...Cond) NodeQuery

	// OrderBy sorts by endpoint properties. A leading '-' inverts, e.g.
	// "-created".
	OrderBy(props ...string) NodeQuery

	// Skip drops the first n results.
	Skip(n int) NodeQuery

	// Limit caps the result count.
	Limit(n int) NodeQuery

	// All returns every matching node.
	All(ctx context.Context) ([]INode, error)

	// Get returns exactly one matching node: ErrNodeNotFound when none
	// match, ErrMultipleNodes when more than one does.
	Get(ctx context.Context) (INode, error)

	// GetOrNone returns one matching node, or nil when none match.
	// More than one match is still ErrMultipleNodes.
	GetOrNone(ctx context.Context) (INode, error)

	// Single returns the first matching node by underlying ordering, or
	// nil when none match. Unlike Get, extra matches are not an error.
	Single(ctx context.Context) (INode, error)

	// At returns the node at index i, or ErrNodeNotFound past the end.
	At(ctx context.Context, i int) (INode, error)

	// Len counts matching nodes without materializing them.
	Len(ctx context.Context) (int, error)

	// Exists reports whether any node matches.
	Exists(ctx context.Context) (bool, error)

	// Contains reports whether the given persisted node matches.
	Contains(ctx context.Context, node INode) (bool, error)

	// Values projects the named endpoint properties instead of
	// materializing nodes, one map per matching node.
	Values(ctx context.Context, props ...string) ([]map[string]any, error)
}

// Traverse returns the lazy node query for this relationship, compiled by
// the spec's query compiler. Filters and ordering apply to the endpoint
// nodes.
func (m *RelationshipManager) Traverse() NodeQuery {
	return m.spec.compiler.Compile(Traversal{
		Source:     m.source,
		SourceMeta: m.sourceMeta,
		Name:       m.name,
		Spec:       m.spec,
		Node:       m.node,
	}, m.session)
}

// All returns every node connected through this relationship.
func (m *RelationshipManager) All(ctx context.Context) ([]INode, error) {
	if err := m.checkSource("All"); err != nil {
		return nil, err
	}
	return m.Traverse().All(ctx)
}

// Get returns the single connected node; see [NodeQuery.Get].
func (m *RelationshipManager) Get(ctx context.Context) (INode, error) {
	if err := m.checkSource("Get"); err != nil {
		return nil, err
	}
	return m.Traverse().Get(ctx)
}

// GetOrNone returns the single connected node, or nil when there is none.
func (m *RelationshipManager) GetOrNone(ctx context.Context) (INode, error) {
	if err := m.checkSource("GetOrNone"); err != nil {
		return nil, err
	}
	return m.Traverse().GetOrNone(ctx)
}

// Single returns the first connected node, or nil when there is none.
func (m *RelationshipManager) Single(ctx context.Context) (INode, error) {
	if err := m.checkSource("Single"); err != nil {
		return nil, err
	}
	return m.Traverse().Single(ctx)
}

// Len counts connected nodes.
func (m *RelationshipManager) Len(ctx context.Context) (int, error) {
	if err := m.checkSource("Len"); err != nil {
		return 0, err
	}
	return m.Traverse().Len(ctx)
}

// Exists reports whether any node is connected.
func (m *RelationshipManager) Exists(ctx context.Context) (bool, error) {
	if err := m.checkSource("Exists"); err != nil {
		return false, err
	}
	return m.Traverse().Exists(ctx)
}

// IsConnected reports whether node is connected through this relationship.
func (m *RelationshipManager) IsConnected(ctx context.Context, node INode) (bool, error) {
	if err := m.checkSource("IsConnected"); err != nil {
		return false, err
	}
	if err := m.checkNode("IsConnected", node); err != nil {
		return false, err
	}
	return m.Traverse().Contains(ctx, node)
}
