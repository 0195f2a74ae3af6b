package reflection

import (
	"fmt"
	"reflect"
)

// BuildParamObject creates an In struct and sets the field at fields[i] to
// values[i]. Invalid values leave the field zero.
func BuildParamObject(paramType reflect.Type, fields []int, values []reflect.Value) (reflect.Value, error) {
	if paramType == nil {
		return reflect.Value{}, fmt.Errorf("paramType cannot be nil")
	}
	if len(fields) != len(values) {
		return reflect.Value{}, fmt.Errorf("got %d values for %d fields of %s", len(values), len(fields), paramType)
	}

	structType := paramType
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	if structType.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("param type must be struct, got %v", structType.Kind())
	}

	structPtr := reflect.New(structType)
	structValue := structPtr.Elem()

	for i, index := range fields {
		if !values[i].IsValid() {
			continue
		}

		field := structValue.Field(index)
		if !field.CanSet() {
			return reflect.Value{}, fmt.Errorf("field %s of %s cannot be set", structType.Field(index).Name, structType)
		}
		field.Set(values[i])
	}

	if paramType.Kind() == reflect.Pointer {
		return structPtr, nil
	}
	return structValue, nil
}

// SetProperty assigns value to the field at index of the struct that
// instance points to.
func SetProperty(instance reflect.Value, index int, value reflect.Value) error {
	if instance.Kind() == reflect.Interface {
		instance = instance.Elem()
	}
	if instance.Kind() != reflect.Pointer || instance.IsNil() || instance.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("properties can only be injected into struct pointers, got %s", instance.Type())
	}

	field := instance.Elem().Field(index)
	if !field.CanSet() {
		return fmt.Errorf("field %d of %s cannot be set", index, instance.Type())
	}
	if !value.Type().AssignableTo(field.Type()) {
		return fmt.Errorf("value of type %s is not assignable to field of type %s", value.Type(), field.Type())
	}

	field.Set(value)
	return nil
}

// ValueOf converts v into a reflect.Value of type t, producing the zero
// value for a nil interface.
func ValueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type() != t && rv.Type().ConvertibleTo(t) && !rv.Type().AssignableTo(t) {
		return rv.Convert(t)
	}
	return rv
}
