package ioc

import (
	"fmt"
	"reflect"
	"time"

	"github.com/golobby/cast"
)

var durationType = reflect.TypeOf(time.Duration(0))

// convertValue turns a resolved argument or property value into a value of
// type t. Assignable values pass through, numeric values convert between
// numeric kinds, and string literals are parsed into the target kind.
func convertValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		if isNillable(t.Kind()) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil cannot be used as %s", ErrArgumentTypeMismatch, t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(t) {
		return rv.Elem(), nil
	}

	if s, ok := v.(string); ok {
		return parseLiteral(s, t)
	}

	return reflect.Value{}, fmt.Errorf("%w: %s cannot be used as %s", ErrArgumentTypeMismatch, rv.Type(), t)
}

// parseLiteral parses a string literal, as produced by declarative sources,
// into the target type.
func parseLiteral(s string, t reflect.Type) (reflect.Value, error) {
	if t == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %q is not a duration: %w", ErrArgumentTypeMismatch, s, err)
		}
		return reflect.ValueOf(d), nil
	}

	converted, err := cast.FromType(s, t)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %q cannot be used as %s: %w", ErrArgumentTypeMismatch, s, t, err)
	}
	rv := reflect.ValueOf(converted)
	if !rv.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: %q cannot be used as %s", ErrArgumentTypeMismatch, s, t)
	}
	if rv.Type() != t {
		if !rv.Type().ConvertibleTo(t) {
			return reflect.Value{}, fmt.Errorf("%w: %q cannot be used as %s", ErrArgumentTypeMismatch, s, t)
		}
		rv = rv.Convert(t)
	}
	return rv, nil
}

// copyValue returns the pointed-to value for pointer handles so by-value
// consumers never share state with the bean.
func copyValue(instance any) any {
	rv := reflect.ValueOf(instance)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return instance
}

func isNillable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

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
