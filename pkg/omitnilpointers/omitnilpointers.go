// Package omitnilpointers builds sparse patches from optional values: a key
// whose value is a nil pointer is left out, a non-nil pointer is replaced by
// the value it points to.
package omitnilpointers

import (
	"encoding/json"
	"fmt"
	"reflect"
)

func OmitNilPointers(fields map[string]any) map[string]any {
	omitted := make(map[string]any, len(fields))
	for key, value := range fields {
		v := reflect.ValueOf(value)
		for v.IsValid() && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v = reflect.Value{}
				break
			}
			v = v.Elem()
		}
		if !v.IsValid() {
			continue
		}

		omitted[key] = v.Interface()
	}

	return omitted
}

// MarshalPatch returns the JSON object of the fields that are set.
func MarshalPatch(fields map[string]any) ([]byte, error) {
	data, err := json.Marshal(OmitNilPointers(fields))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch: %w", err)
	}

	return data, nil
}
