package ioc

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// propertyTag is the struct tag naming the property a field is bound to.
const propertyTag = "bean"

// bindProperty applies value to the named property of instance.
//
// Binding is tried in order: the PropertySetter interface, a Set<Name>
// method taking one argument, then an exported struct field tagged
// `bean:"name"` or whose name matches case-insensitively.
func bindProperty(instance any, name string, value any) error {
	if setter, ok := instance.(PropertySetter); ok {
		if err := setter.SetProperty(name, value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrPropertyBinding, name, err)
		}
		return nil
	}

	rv := reflect.ValueOf(instance)
	if method := rv.MethodByName(setterName(name)); method.IsValid() {
		return callSetter(method, name, value)
	}

	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s: %T has no setter and is not a struct pointer", ErrPropertyBinding, name, instance)
	}
	field, ok := findField(rv.Elem(), name)
	if !ok {
		return fmt.Errorf("%w: %s: no such property on %T", ErrPropertyBinding, name, instance)
	}
	converted, err := convertValue(value, field.Type())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPropertyBinding, name, err)
	}
	field.Set(converted)
	return nil
}

func callSetter(method reflect.Value, name string, value any) error {
	mt := method.Type()
	if mt.NumIn() != 1 || mt.NumOut() > 1 || (mt.NumOut() == 1 && !mt.Out(0).Implements(errorType)) {
		return fmt.Errorf("%w: %s: setter must take one argument and return nothing or an error", ErrPropertyBinding, name)
	}
	arg, err := convertValue(value, mt.In(0))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPropertyBinding, name, err)
	}
	out := method.Call([]reflect.Value{arg})
	if len(out) == 1 && !out[0].IsNil() {
		return fmt.Errorf("%w: %s: %w", ErrPropertyBinding, name, out[0].Interface().(error))
	}
	return nil
}

func findField(sv reflect.Value, name string) (reflect.Value, bool) {
	st := sv.Type()
	var byName reflect.Value
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup(propertyTag); ok {
			if tag == name {
				return sv.Field(i), true
			}
			continue
		}
		if !byName.IsValid() && strings.EqualFold(f.Name, name) {
			byName = sv.Field(i)
		}
	}
	return byName, byName.IsValid()
}

func setterName(property string) string {
	r, size := utf8.DecodeRuneInString(property)
	return "Set" + string(unicode.ToUpper(r)) + property[size:]
}
