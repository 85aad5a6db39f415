package norm

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/rlch/norm/internal/codec"
)

// typeRef is a deferred endpoint reference: either a direct type, or a
// (namespace, name) token resolved through the registry at first use.
type typeRef struct {
	direct    reflect.Type
	name      string
	namespace string
}

func (t typeRef) String() string {
	if t.direct != nil {
		return t.direct.Name()
	}
	if t.namespace != "" {
		return t.namespace + "." + t.name
	}
	return t.name
}

// RelationshipSpec is the declarative description of one relationship
// attribute: relation type, direction, cardinality policy, optional
// edge-property model, and the endpoint node class (possibly deferred).
// Create one per declared relationship at schema-definition time; it lives
// for the lifetime of the owning node-type definition.
type RelationshipSpec struct {
	relType     string
	direction   Direction
	cardinality Cardinality
	model       *codec.RelMeta
	modelType   reflect.Type
	compiler    QueryCompiler
	registry    *Registry
	target      typeRef

	mu   sync.Mutex
	node *codec.NodeMeta // cached once resolved; immutable thereafter
}

// SpecOption configures a relationship declaration.
type SpecOption func(*RelationshipSpec)

// WithModel binds an edge-property class to the relationship. The model
// must embed [Relationship]. Its class is registered against the relation
// type; conflicting bindings panic with a redefinition error.
func WithModel(model IRelationship) SpecOption {
	return func(d *RelationshipSpec) {
		d.modelType = structType(model)
	}
}

// WithCardinality sets the cardinality policy. Default: [ZeroOrMore].
func WithCardinality(c Cardinality) SpecOption {
	return func(d *RelationshipSpec) { d.cardinality = c }
}

// InNamespace sets the namespace that bare deferred endpoint names resolve
// relative to. Without it, a bare name must be unique across the registry.
func InNamespace(ns string) SpecOption {
	return func(d *RelationshipSpec) { d.target.namespace = ns }
}

// WithCompiler overrides the query compiler used by traversals over this
// relationship.
func WithCompiler(c QueryCompiler) SpecOption {
	return func(d *RelationshipSpec) { d.compiler = c }
}

// RelationshipTo declares an outgoing relationship to the endpoint.
// The endpoint is an INode instance for a direct reference, or a string
// name for a deferred one ("Person", or "models.Person" for an absolute
// reference). Deferred names allow mutually-referencing schema packages.
func (r *Registry) RelationshipTo(endpoint any, relType string, opts ...SpecOption) *RelationshipSpec {
	return r.relate(endpoint, Outgoing, relType, opts)
}

// RelationshipFrom declares an incoming relationship from the endpoint.
func (r *Registry) RelationshipFrom(endpoint any, relType string, opts ...SpecOption) *RelationshipSpec {
	return r.relate(endpoint, Incoming, relType, opts)
}

// Relationship declares an undirected relationship with the endpoint.
func (r *Registry) Relationship(endpoint any, relType string, opts ...SpecOption) *RelationshipSpec {
	return r.relate(endpoint, Either, relType, opts)
}

func (r *Registry) relate(endpoint any, direction Direction, relType string, opts []SpecOption) *RelationshipSpec {
	if !validIdent(relType) {
		panic(fmt.Errorf("norm: invalid relation type %q", relType))
	}

	d := &RelationshipSpec{
		relType:     relType,
		direction:   direction,
		cardinality: ZeroOrMore,
		registry:    r,
	}

	switch v := endpoint.(type) {
	case INode:
		d.target.direct = structType(v)
		if _, err := r.registerNode(v); err != nil {
			panic(err)
		}
	case string:
		if i := strings.LastIndex(v, "."); i >= 0 {
			d.target.namespace = v[:i]
			d.target.name = v[i+1:]
		} else {
			d.target.name = v
		}
		if d.target.name == "" {
			panic(fmt.Errorf("norm: empty endpoint name for relation %q", relType))
		}
	default:
		panic(fmt.Errorf("norm: expected node instance or type name, got %T", endpoint))
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.modelType != nil {
		if !embedsType(d.modelType, baseRelationshipType) {
			panic(fmt.Errorf("norm: model %s must embed norm.Relationship", d.modelType.Name()))
		}
		meta, err := r.registerRel(reflect.New(d.modelType).Interface().(IRelationship))
		if err != nil {
			panic(err)
		}
		d.model = meta
		if err := r.bindEdgeClass(relType, d.modelType); err != nil {
			panic(err)
		}
	}
	if d.compiler == nil {
		d.compiler = defaultCompiler
	}
	return d
}

// RelType returns the relation-type label.
func (d *RelationshipSpec) RelType() string { return d.relType }

// Direction returns the declared direction.
func (d *RelationshipSpec) Direction() Direction { return d.direction }

// Cardinality returns the declared cardinality policy.
func (d *RelationshipSpec) Cardinality() Cardinality { return d.cardinality }

// Model returns the bound edge-property class, or nil.
func (d *RelationshipSpec) Model() reflect.Type { return d.modelType }

// resolve returns the endpoint node metadata, resolving a deferred name on
// first use. Successful resolution is cached and immutable; failure is not
// cached, so registering the type later heals the spec.
func (d *RelationshipSpec) resolve() (*codec.NodeMeta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.node != nil {
		return d.node, nil
	}

	var (
		meta *codec.NodeMeta
		err  error
	)
	if d.target.direct != nil {
		meta, err = d.registry.nodeMeta(d.target.direct)
	} else {
		meta, err = d.registry.ResolveType(d.target.namespace, d.target.name)
	}
	if err != nil {
		return nil, err
	}
	d.node = meta
	return meta, nil
}

// Manager binds the spec to a live source node, producing the ephemeral
// handle that carries out mutations and traversals. Construct one per
// access; it holds no state worth keeping.
func (d *RelationshipSpec) Manager(sess Session, source INode, name string) (*RelationshipManager, error) {
	node, err := d.resolve()
	if err != nil {
		return nil, err
	}
	sourceMeta, err := d.registry.nodeMeta(structType(source))
	if err != nil {
		return nil, err
	}
	return &RelationshipManager{
		source:     source,
		sourceMeta: sourceMeta,
		name:       name,
		spec:       d,
		node:       node,
		session:    sess,
	}, nil
}
