package feeders

import (
	"errors"
	"fmt"
	"reflect"
)

// Static error definitions for feeders

// File feeder errors
var (
	ErrFeedFailed = errors.New("failed to read configuration file")
)

// Env feeder errors
var (
	ErrEnvInvalidStructure = errors.New("env: expected pointer to struct")
	ErrEnvFieldCannotBeSet = errors.New("env: field cannot be set")
	ErrEnvCannotConvert    = errors.New("env: cannot convert value to field type")
)

func wrapEnvStructureError(got any) error {
	return fmt.Errorf("%w, got %T", ErrEnvInvalidStructure, got)
}

func wrapEnvConvertError(envName string, fieldType reflect.Type, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s to %s", ErrEnvCannotConvert, envName, fieldType)
	}
	return fmt.Errorf("%w: %s to %s: %w", ErrEnvCannotConvert, envName, fieldType, cause)
}
