package norm

import (
	"reflect"

	"github.com/google/uuid"
)

type (
	// INode is the node abstraction consumed by relationship managers.
	// A node is persisted once it has a database identity (a non-empty
	// element ID); relationship mutations fail fast on unsaved nodes.
	INode interface {
		IsNode()

		// GetUUID returns the application-level unique key. Bulk
		// operations match target nodes by this key rather than by
		// database identity.
		GetUUID() string

		// GetElementID returns the database identity, or "" if the node
		// has not been persisted.
		GetElementID() string
	}

	// UUIDSetter is implemented by node bases whose application-level key
	// can be assigned or generated.
	UUIDSetter interface {
		SetUUID(id string)
		GenerateUUID()
	}

	// IRelationship is the marker interface for edge-property models.
	// See [Relationship] for the default implementation.
	IRelationship interface {
		IsRelationship()
	}

	// PreSaver is an optional hook run on an edge-property instance after
	// it is populated and before the edge is written.
	PreSaver interface {
		PreSave() error
	}

	// PostSaver is an optional hook run on an edge-property instance
	// after the edge has been written and read back.
	PostSaver interface {
		PostSave() error
	}

	// Node is the base type for all nodes.
	//
	// The neo4j tag on the embedded field specifies the label:
	//
	//	type Person struct {
	//		norm.Node `neo4j:"Person"`
	//
	//		Name string `neo4j:"name"`
	//	}
	Node struct {
		// UUID is the application-level unique key, stored as the
		// "uuid" property. Generated by [NewNode].
		UUID string `neo4j:"uuid"`

		elementID string
		deleted   bool
	}

	// Relationship is the base type for all edge-property models.
	//
	// The neo4j tag on the embedded field documents the relation type:
	//
	//	type ActedIn struct {
	//		norm.Relationship `neo4j:"ACTED_IN"`
	//
	//		Role string `neo4j:"role"`
	//	}
	Relationship struct {
		elementID string

		// Start/end node classes are assigned by the manager after
		// every materialization. They are informational back-references,
		// not ownership.
		startNodeType reflect.Type
		endNodeType   reflect.Type
	}
)

var (
	_ interface {
		INode
		UUIDSetter
	} = (*Node)(nil)
	_ IRelationship = (*Relationship)(nil)
)

func (Node) IsNode() {}

func (n Node) GetUUID() string { return n.UUID }

func (n *Node) SetUUID(id string) { n.UUID = id }

func (n *Node) GenerateUUID() { n.UUID = uuid.NewString() }

func (n Node) GetElementID() string { return n.elementID }

// SetElementID binds the database identity assigned on save.
func (n *Node) SetElementID(id string) { n.elementID = id }

// MarkDeleted flags the node as deleted; subsequent relationship mutations
// on it fail fast.
func (n *Node) MarkDeleted() { n.deleted = true }

func (n Node) IsDeleted() bool { return n.deleted }

func (Relationship) IsRelationship() {}

func (r Relationship) GetElementID() string { return r.elementID }

// SetElementID binds the database identity of the materialized edge.
func (r *Relationship) SetElementID(id string) { r.elementID = id }

// StartNodeType returns the class of the node the edge starts at, as
// assigned on the last materialization.
func (r Relationship) StartNodeType() reflect.Type { return r.startNodeType }

// EndNodeType returns the class of the node the edge ends at.
func (r Relationship) EndNodeType() reflect.Type { return r.endNodeType }

func (r *Relationship) setNodeTypes(start, end reflect.Type) {
	r.startNodeType = start
	r.endNodeType = end
}

// elementIDSetter is satisfied by both base types.
type elementIDSetter interface {
	SetElementID(id string)
}

// nodeTypeSetter is promoted from the embedded [Relationship] base.
type nodeTypeSetter interface {
	setNodeTypes(start, end reflect.Type)
}

// deletable is an optional capability of node bases; checked by assertion.
type deletable interface {
	IsDeleted() bool
}

// NewNode creates a new node with a generated application-level key.
func NewNode[N any, PN interface {
	INode
	UUIDSetter
	*N
}]() PN {
	n := PN(new(N))
	n.GenerateUUID()
	return n
}

// NodeWithUUID creates a new node with the given application-level key.
func NodeWithUUID[N any, PN interface {
	INode
	UUIDSetter
	*N
}](id string,
) PN {
	n := PN(new(N))
	n.SetUUID(id)
	return n
}

// structType unwinds pointers and returns the underlying struct type.
func structType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
