package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

var durationType = reflect.TypeOf(time.Duration(0))

// EnvFeeder fills struct fields tagged with `env:"NAME"` from environment
// variables named PREFIX_NAME. Nested structs are walked recursively.
type EnvFeeder struct {
	Prefix string
}

// NewEnvFeeder creates a new EnvFeeder reading variables with the given prefix.
// An empty prefix reads the tag names as-is.
func NewEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix}
}

// Feed reads environment variables and populates the provided structure
func (f EnvFeeder) Feed(structure any) error {
	inputType := reflect.TypeOf(structure)
	if inputType == nil || inputType.Kind() != reflect.Pointer || inputType.Elem().Kind() != reflect.Struct {
		return wrapEnvStructureError(structure)
	}
	return f.processStructFields(reflect.ValueOf(structure).Elem())
}

// FeedKey ignores key: environment variables have no sections.
func (f EnvFeeder) FeedKey(_ string, target any) error {
	return f.Feed(target)
}

// Source describes the variables the feeder reads.
func (f EnvFeeder) Source() string {
	if f.Prefix == "" {
		return "env"
	}
	return "env:" + strings.ToUpper(f.Prefix) + "_*"
}

func (f EnvFeeder) processStructFields(rv reflect.Value) error {
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rv.Type().Field(i)
		if !fieldType.IsExported() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := f.processStructFields(field); err != nil {
				return fmt.Errorf("error in field '%s': %w", fieldType.Name, err)
			}
			continue
		}
		envTag, exists := fieldType.Tag.Lookup("env")
		if !exists || envTag == "" {
			continue
		}
		if err := f.setFieldFromEnv(field, envTag); err != nil {
			return fmt.Errorf("error in field '%s': %w", fieldType.Name, err)
		}
	}
	return nil
}

func (f EnvFeeder) setFieldFromEnv(field reflect.Value, envTag string) error {
	envName := strings.ToUpper(envTag)
	if f.Prefix != "" {
		envName = strings.ToUpper(f.Prefix) + "_" + envName
	}

	envValue, ok := os.LookupEnv(envName)
	if !ok || envValue == "" {
		return nil
	}
	return setFieldValue(field, envName, envValue)
}

// setFieldValue converts and sets a field value
func setFieldValue(field reflect.Value, envName, strValue string) error {
	if !field.CanSet() {
		return fmt.Errorf("%w: %s", ErrEnvFieldCannotBeSet, envName)
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(strValue)
		if err != nil {
			return wrapEnvConvertError(envName, field.Type(), err)
		}
		field.SetInt(int64(d))
		return nil
	}

	convertedValue, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return wrapEnvConvertError(envName, field.Type(), err)
	}
	value := reflect.ValueOf(convertedValue)
	if value.Type() != field.Type() {
		if !value.Type().ConvertibleTo(field.Type()) {
			return wrapEnvConvertError(envName, field.Type(), nil)
		}
		value = value.Convert(field.Type())
	}
	field.Set(value)
	return nil
}
