package runner

import (
	"errors"
	"fmt"
	"os"
	"reflect"
)

// ExpandTemplates replaces ${VAR} references in place in the struct pointed to by in.
// Strings, *string and []string fields are expanded only when tagged `template` (or
// `template:""`); `template:"-"` opts out. Nested structs, struct pointers and slices of
// structs are always walked. Nil pointers and unexported fields are left alone.
func ExpandTemplates[T any](in *T, variables map[string]string) error {
	if in == nil {
		return nil
	}

	v := reflect.ValueOf(in).Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("ExpandTemplates expects *struct; got *%s", v.Type())
	}

	return expandStruct(v, variables)
}

func expandStruct(v reflect.Value, variables map[string]string) error {
	typ := v.Type()
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}

		tag, ok := sf.Tag.Lookup("template")
		if err := expandValue(v.Field(i), ok && tag != "-", variables); err != nil {
			return fmt.Errorf("%s: %w", sf.Name, err)
		}
	}
	return nil
}

func expandValue(v reflect.Value, tagged bool, variables map[string]string) error {
	switch v.Kind() {
	case reflect.String:
		if !tagged {
			return nil
		}
		expanded, err := Expand(v.String(), variables)
		if err != nil {
			return err
		}
		v.SetString(expanded)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		elem := v.Elem()
		if elem.Kind() != reflect.String {
			return expandValue(elem, tagged, variables)
		}
		if !tagged {
			return nil
		}
		// a fresh pointer keeps values shared with the caller untouched
		expanded, err := Expand(elem.String(), variables)
		if err != nil {
			return err
		}
		ptr := reflect.New(elem.Type())
		ptr.Elem().SetString(expanded)
		v.Set(ptr)

	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			if err := expandValue(v.Index(i), tagged, variables); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}

	case reflect.Struct:
		return expandStruct(v, variables)
	}

	return nil
}

// Expand replaces ${VAR} references in value. Every referenced variable must be present in
// variables.
func Expand(value string, variables map[string]string) (string, error) {
	var errs error

	result := os.Expand(value, func(key string) string {
		if val, ok := variables[key]; ok {
			return val
		}
		errs = errors.Join(errs, fmt.Errorf("variable %q is not in the allowed list", key))
		return ""
	})

	if errs != nil {
		return "", errs
	}

	return result, nil
}
