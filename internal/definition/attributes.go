package definition

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// stringify renders YAML scalars the way the ELBv2 API expects attribute
// values: booleans as "true"/"false", numbers without exponent.
func stringify(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	switch v := data.(type) {
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", nil
	}
	if from.Kind() == reflect.Map || from.Kind() == reflect.Slice {
		return nil, fmt.Errorf("nested %s values are not allowed", from.Kind())
	}
	return data, nil
}

// normalizeAttributes turns a YAML attribute map into the string map the
// graph records. Nested values are rejected.
func normalizeAttributes(raw map[string]any) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]string
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: stringify,
		Result:     &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return out, nil
}
