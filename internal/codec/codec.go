package codec

import (
	"fmt"
	"reflect"
	"time"
)

// Instantiate builds a new instance from application-supplied properties.
// Declared defaults are applied for absent properties; an explicitly nil
// property stays null rather than taking the default. Returns a pointer to
// the struct.
func (m *structMeta) Instantiate(props map[string]any) (any, error) {
	pv := reflect.New(m.typ)
	v := pv.Elem()

	for _, f := range m.fields {
		if !f.HasDefault {
			continue
		}
		if _, ok := props[f.Prop]; ok {
			continue
		}
		if err := setField(v.FieldByIndex(f.Index), f.Default); err != nil {
			return nil, fmt.Errorf("codec: default for %s.%s: %w", m.name, f.Name, err)
		}
	}

	for prop, val := range props {
		f, ok := m.byProp[prop]
		if !ok {
			return nil, fmt.Errorf("codec: unknown property %q on %s", prop, m.name)
		}
		if err := setField(v.FieldByIndex(f.Index), val); err != nil {
			return nil, fmt.Errorf("codec: property %q on %s: %w", prop, m.name, err)
		}
	}

	return pv.Interface(), nil
}

// Deflate converts an instance into a property map for use as query
// parameters. Every declared field is present; nil pointer fields deflate to
// an explicit null, they are not omitted.
func (m *structMeta) Deflate(inst any) (map[string]any, error) {
	v := reflect.ValueOf(inst)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("codec: cannot deflate nil %s", m.name)
		}
		v = v.Elem()
	}
	if v.Type() != m.typ {
		return nil, fmt.Errorf("codec: cannot deflate %s as %s", v.Type(), m.name)
	}

	out := make(map[string]any, len(m.fields))
	for _, f := range m.fields {
		fv := v.FieldByIndex(f.Index)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				out[f.Prop] = nil
			} else {
				out[f.Prop] = fv.Elem().Interface()
			}
			continue
		}
		out[f.Prop] = fv.Interface()
	}
	return out, nil
}

// Inflate builds an instance from persisted property values. Properties
// absent from the map leave their fields at the zero value. Returns a
// pointer to the struct.
func (m *structMeta) Inflate(props map[string]any) (any, error) {
	pv := reflect.New(m.typ)
	v := pv.Elem()

	for _, f := range m.fields {
		val, ok := props[f.Prop]
		if !ok || val == nil {
			continue
		}
		if err := setField(v.FieldByIndex(f.Index), val); err != nil {
			return nil, fmt.Errorf("codec: inflating %q on %s: %w", f.Prop, m.name, err)
		}
	}

	return pv.Interface(), nil
}

// setField assigns val to fv, allocating pointers and converting between
// numeric widths (the driver reports all integers as int64).
func setField(fv reflect.Value, val any) error {
	if val == nil {
		if fv.Kind() != reflect.Ptr {
			return fmt.Errorf("cannot assign null to non-pointer %s field", fv.Type())
		}
		fv.SetZero()
		return nil
	}

	if fv.Kind() == reflect.Ptr {
		elem := reflect.New(fv.Type().Elem())
		if err := setField(elem.Elem(), val); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}

	vv := reflect.ValueOf(val)
	if vv.Kind() == reflect.Ptr && !vv.IsNil() && vv.Type() != fv.Type() {
		vv = vv.Elem()
	}

	switch {
	case vv.Type().AssignableTo(fv.Type()):
		fv.Set(vv)
	case isNumeric(vv.Kind()) && isNumeric(fv.Kind()) && vv.Type().ConvertibleTo(fv.Type()):
		fv.Set(vv.Convert(fv.Type()))
	case vv.Type() == timeType && fv.Type().ConvertibleTo(timeType):
		fv.Set(vv.Convert(fv.Type()))
	default:
		return fmt.Errorf("cannot assign %s to %s", vv.Type(), fv.Type())
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
