package norm

import (
	"fmt"
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/rlch/norm/internal/codec"
)

// Registry holds node and edge-property type metadata, and the process-wide
// binding from relation-type labels to edge-property classes. It is built
// once at schema-definition time and read for the rest of the process;
// construct it explicitly and share it between schema packages.
//
// Registration is serialized and reads are concurrent, so specs may be
// constructed from multiple goroutines.
type Registry struct {
	mu sync.RWMutex

	nodesByType map[reflect.Type]*codec.NodeMeta
	nodesByName map[string][]*codec.NodeMeta
	qualified   map[string]*codec.NodeMeta
	relsByType  map[reflect.Type]*codec.RelMeta

	// edgeClasses maps a canonical label-set key to the bound
	// edge-property class.
	edgeClasses map[string]reflect.Type
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodesByType: make(map[reflect.Type]*codec.NodeMeta),
		nodesByName: make(map[string][]*codec.NodeMeta),
		qualified:   make(map[string]*codec.NodeMeta),
		relsByType:  make(map[reflect.Type]*codec.RelMeta),
		edgeClasses: make(map[string]reflect.Type),
	}
}

// RegisterTypes registers node and edge-property types. Types should be
// zero-value pointers (e.g. &Person{}, &ActedIn{}). Malformed types panic:
// schema definition errors are programmer errors.
func (r *Registry) RegisterTypes(types ...any) {
	for _, t := range types {
		switch v := t.(type) {
		case INode:
			if _, err := r.registerNode(v); err != nil {
				panic(err)
			}
		case IRelationship:
			if _, err := r.registerRel(v); err != nil {
				panic(err)
			}
		default:
			panic(fmt.Errorf("norm: cannot register %T: not a node or relationship type", t))
		}
	}
}

func (r *Registry) registerNode(v INode) (*codec.NodeMeta, error) {
	t := structType(v)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerNodeTypeLocked(t, v)
}

func (r *Registry) registerNodeTypeLocked(t reflect.Type, v any) (*codec.NodeMeta, error) {
	if meta, ok := r.nodesByType[t]; ok {
		return meta, nil
	}

	meta, err := codec.ExtractNodeMeta(v)
	if err != nil {
		return nil, fmt.Errorf("norm: registering %s: %w", t, err)
	}

	r.nodesByType[t] = meta
	r.nodesByName[meta.Name()] = append(r.nodesByName[meta.Name()], meta)
	if ns := namespaceOf(t); ns != "" {
		r.qualified[ns+"."+meta.Name()] = meta
	}
	return meta, nil
}

func (r *Registry) registerRel(v IRelationship) (*codec.RelMeta, error) {
	t := structType(v)

	r.mu.Lock()
	defer r.mu.Unlock()

	if meta, ok := r.relsByType[t]; ok {
		return meta, nil
	}

	meta, err := codec.ExtractRelMeta(v)
	if err != nil {
		return nil, fmt.Errorf("norm: registering %s: %w", t, err)
	}
	r.relsByType[t] = meta
	return meta, nil
}

// nodeMeta returns metadata for a node type, registering it lazily on first
// use so that node types only ever seen as relationship endpoints still work.
func (r *Registry) nodeMeta(t reflect.Type) (*codec.NodeMeta, error) {
	r.mu.RLock()
	meta, ok := r.nodesByType[t]
	r.mu.RUnlock()
	if ok {
		return meta, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerNodeTypeLocked(t, reflect.New(t).Interface())
}

// relMeta returns metadata for a registered edge-property type.
func (r *Registry) relMeta(t reflect.Type) (*codec.RelMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.relsByType[t]
	return meta, ok
}

// ResolveType resolves a deferred endpoint name to a registered node class.
// A non-empty namespace makes the lookup absolute; a bare name must be
// unique across all registered namespaces.
func (r *Registry) ResolveType(namespace, name string) (*codec.NodeMeta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if namespace != "" {
		if meta, ok := r.qualified[namespace+"."+name]; ok {
			return meta, nil
		}
		return nil, &ResolutionError{Name: name, Namespace: namespace}
	}

	metas := r.nodesByName[name]
	switch len(metas) {
	case 1:
		return metas[0], nil
	case 0:
		return nil, &ResolutionError{Name: name}
	default:
		candidates := make([]string, len(metas))
		for i, m := range metas {
			candidates[i] = namespaceOf(m.Type()) + "." + m.Name()
		}
		sort.Strings(candidates)
		return nil, &ResolutionError{Name: name, Candidates: candidates}
	}
}

// EdgeClass returns the edge-property class bound to a relation type.
func (r *Registry) EdgeClass(relType string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.edgeClasses[labelSetKey(relType)]
	return t, ok
}

// bindEdgeClass binds model to the label set {relType}. Rebinding follows
// the specialization rules: a descendant (by struct embedding) of the bound
// class replaces it, an ancestor leaves the more specific binding in place,
// and an unrelated class that directly embeds the generic base is a
// redefinition conflict.
func (r *Registry) bindEdgeClass(relType string, model reflect.Type) error {
	key := labelSetKey(relType)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.edgeClasses[key]
	if !ok {
		r.edgeClasses[key] = model
		return nil
	}
	if model == existing || embedsType(model, existing) {
		// Equal, or more specific: rebind.
		r.edgeClasses[key] = model
		return nil
	}

	isParent := embedsType(existing, model)
	if embedsDirectly(model, baseRelationshipType) && !isParent {
		return &RelationshipClassRedefinedError{
			RelType:  relType,
			Existing: existing.Name(),
			Proposed: model.Name(),
			Bound:    r.edgeClassSnapshotLocked(),
		}
	}
	// model is an ancestor of the bound class: keep the more specific one.
	return nil
}

func (r *Registry) edgeClassSnapshotLocked() map[string]string {
	snap := make(map[string]string, len(r.edgeClasses))
	for k, t := range r.edgeClasses {
		snap[k] = t.Name()
	}
	return snap
}

// labelSetKey canonicalizes an unordered set of labels into a map key.
func labelSetKey(labels ...string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// namespaceOf derives the registration namespace from a type's package.
func namespaceOf(t reflect.Type) string {
	if t.PkgPath() == "" {
		return ""
	}
	return path.Base(t.PkgPath())
}

var baseRelationshipType = reflect.TypeOf(Relationship{})

// embedsType reports whether t embeds target anywhere in its embedding
// chain. This is the Go analogue of subclassing for schema types.
func embedsType(t, target reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft == target || embedsType(ft, target) {
			return true
		}
	}
	return false
}

// embedsDirectly reports whether t embeds target at depth one.
func embedsDirectly(t, target reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft == target {
			return true
		}
	}
	return false
}
