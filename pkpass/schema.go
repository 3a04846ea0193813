package pkpass

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/walletpass/passconv/passerr"
)

// The helpers below treat a key holding the wrong JSON type exactly like an
// absent key.

func requireObject(v interface{}, structName string) (map[string]interface{}, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, passerr.Newf(passerr.SchemaErr, "%s is %s, expected object", structName, jsonType(v))
	}
	return obj, nil
}

func requireString(obj map[string]interface{}, structName, key string) (string, error) {
	s, ok := obj[key].(string)
	if !ok {
		return "", passerr.Schema(structName, key)
	}
	return s, nil
}

func optionalString(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func requireUint(obj map[string]interface{}, structName, key string) (uint64, error) {
	n, ok := asUint(obj[key])
	if !ok {
		return 0, passerr.Schema(structName, key)
	}
	return n, nil
}

func requireArray(obj map[string]interface{}, structName, key string) ([]interface{}, error) {
	arr, ok := obj[key].([]interface{})
	if !ok {
		return nil, passerr.Schema(structName, key)
	}
	return arr, nil
}

func asUint(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	case float64:
		if n < 0 || n != math.Trunc(n) || n > math.MaxUint64 {
			return 0, false
		}
		return uint64(n), true
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case uint64:
		return n, true
	default:
		return 0, false
	}
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// extractFieldEntry validates one {key, label, value} object.
func extractFieldEntry(v interface{}, structName string) (FieldEntry, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return FieldEntry{}, passerr.Newf(passerr.SchemaErr, "%s is %s, expected object", structName, jsonType(v))
	}

	var e FieldEntry
	var err error
	if e.Key, err = requireString(obj, structName, "key"); err != nil {
		return FieldEntry{}, err
	}
	if e.Label, err = requireString(obj, structName, "label"); err != nil {
		return FieldEntry{}, err
	}
	if e.Value, err = requireString(obj, structName, "value"); err != nil {
		return FieldEntry{}, err
	}
	return e, nil
}

// extractFieldGroup validates every element; one bad element fails the group.
func extractFieldGroup(arr []interface{}, groupName string) (FieldGroup, error) {
	group := make(FieldGroup, 0, len(arr))
	for i, v := range arr {
		e, err := extractFieldEntry(v, fmt.Sprintf("%s[%d]", groupName, i))
		if err != nil {
			return nil, err
		}
		group = append(group, e)
	}
	return group, nil
}
