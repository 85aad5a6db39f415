package codec

import (
	"fmt"
	"reflect"
	"strconv"
)

// Field describes one persistable struct field.
type Field struct {
	// Name is the Go field name.
	Name string

	// Prop is the database property name.
	Prop string

	// Index is the reflect index path from the root struct, including
	// promotion through embedded bases.
	Index []int

	// Type is the field's Go type.
	Type reflect.Type

	// Default is the parsed default:<literal> tag value, applied when a
	// property is absent (as opposed to explicitly null).
	Default    any
	HasDefault bool
}

// structMeta is the shared shape of node and relationship metadata.
type structMeta struct {
	name   string
	typ    reflect.Type
	fields []Field
	byProp map[string]*Field
}

// NodeMeta is the extracted metadata for a node type.
type NodeMeta struct {
	structMeta

	// Labels are the node labels, outermost embed first. Never empty:
	// the type name is used when no embedded field carries a label tag.
	Labels []string
}

// RelMeta is the extracted metadata for an edge-property type.
type RelMeta struct {
	structMeta

	// RelType is the relation type declared on the embedded base's tag,
	// if any. Informational: the relationship declaration is
	// authoritative for the label used in queries.
	RelType string
}

func (m *structMeta) Name() string { return m.name }

// Type returns the underlying struct type (not a pointer).
func (m *structMeta) Type() reflect.Type { return m.typ }

// Fields returns the persistable fields in declaration order.
func (m *structMeta) Fields() []Field { return m.fields }

// FieldsToProps maps Go field names to database property names.
func (m *structMeta) FieldsToProps() map[string]string {
	out := make(map[string]string, len(m.fields))
	for _, f := range m.fields {
		out[f.Name] = f.Prop
	}
	return out
}

// Label returns the primary (outermost) label.
func (m *NodeMeta) Label() string { return m.Labels[0] }

// ExtractNodeMeta builds node metadata from a zero-value instance.
func ExtractNodeMeta(v any) (*NodeMeta, error) {
	sm, labels, err := extract(v)
	if err != nil {
		return nil, err
	}
	meta := &NodeMeta{structMeta: *sm, Labels: labels}
	if len(meta.Labels) == 0 {
		meta.Labels = []string{sm.name}
	}
	return meta, nil
}

// ExtractRelMeta builds edge-property metadata from a zero-value instance.
func ExtractRelMeta(v any) (*RelMeta, error) {
	sm, labels, err := extract(v)
	if err != nil {
		return nil, err
	}
	meta := &RelMeta{structMeta: *sm}
	if len(labels) > 0 {
		meta.RelType = labels[0]
	}
	return meta, nil
}

func extract(v any) (*structMeta, []string, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("codec: expected struct or pointer to struct, got %T", v)
	}

	sm := &structMeta{
		name:   t.Name(),
		typ:    t,
		byProp: make(map[string]*Field),
	}

	labels, err := walkFields(t, nil, sm)
	if err != nil {
		return nil, nil, err
	}
	for i := range sm.fields {
		sm.byProp[sm.fields[i].Prop] = &sm.fields[i]
	}
	return sm, labels, nil
}

// walkFields collects persistable fields and embedded-field labels,
// recursing through anonymous struct embeds so base fields are promoted.
func walkFields(t reflect.Type, index []int, sm *structMeta) ([]string, error) {
	var labels []string

	for i := range t.NumField() {
		field := t.Field(i)
		path := append(append([]int(nil), index...), i)
		tag := parseTag(field.Tag.Get("neo4j"))

		if field.Anonymous && unwind(field.Type).Kind() == reflect.Struct {
			// The tag on an embedded field is a label (nodes) or a
			// relation type (edge models), not a property.
			if !tag.Skip && tag.Name != "" {
				labels = append(labels, tag.Name)
			}
			nested, err := walkFields(unwind(field.Type), path, sm)
			if err != nil {
				return nil, err
			}
			labels = append(labels, nested...)
			continue
		}

		if field.PkgPath != "" || tag.Skip {
			continue
		}

		prop := tag.Name
		if prop == "" {
			prop = toSnakeCase(field.Name)
		}

		f := Field{
			Name:  field.Name,
			Prop:  prop,
			Index: path,
			Type:  field.Type,
		}
		if lit, ok := defaultOption(tag.Options); ok {
			def, err := parseDefault(lit, field.Type)
			if err != nil {
				return nil, fmt.Errorf("codec: field %s.%s: %w", t.Name(), field.Name, err)
			}
			f.Default = def
			f.HasDefault = true
		}
		sm.fields = append(sm.fields, f)
	}

	return labels, nil
}

// parseDefault interprets a default: literal according to the field type.
func parseDefault(lit string, t reflect.Type) (any, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return lit, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(lit)
		if err != nil {
			return nil, fmt.Errorf("invalid bool default %q", lit)
		}
		return b, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer default %q", lit)
		}
		return n, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(lit, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid unsigned default %q", lit)
		}
		return n, nil
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float default %q", lit)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("default values are not supported for %s fields", t.Kind())
	}
}

func unwind(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
