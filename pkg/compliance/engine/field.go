package engine

import (
	"reflect"
	"strconv"
	"strings"

	"mercator-hq/sentinel/pkg/compliance"
)

// ResolveField walks a dot-separated path over an action. The first
// segment names an action attribute (type, user_id, tenant_id, resource,
// data, context, data_classification, retention_policy, timestamp); camel
// case and snake case spellings are both accepted. Later segments walk maps,
// structs and slices. The boolean is false when any segment is missing.
func ResolveField(action *compliance.Action, path string) (any, bool) {
	if action == nil || path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")

	var root any
	switch normalize(parts[0]) {
	case "type":
		root = action.Type
	case "userid":
		root = action.UserID
	case "tenantid":
		root = action.TenantID
	case "resource":
		root = action.Resource
	case "data":
		if action.Data == nil {
			return nil, false
		}
		root = action.Data
	case "context":
		if action.Context == nil {
			return nil, false
		}
		root = action.Context
	case "dataclassification":
		root = action.DataClassification
	case "retentionpolicy":
		root = action.RetentionPolicy
	case "timestamp":
		root = action.Timestamp
	default:
		return nil, false
	}

	return walk(root, parts[1:])
}

func walk(v any, path []string) (any, bool) {
	for _, segment := range path {
		next, ok := step(v, segment)
		if !ok {
			return nil, false
		}
		v = next
	}
	return v, true
}

func step(v any, segment string) (any, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		if next, ok := m[segment]; ok {
			return next, true
		}
		for k, next := range m {
			if normalize(k) == normalize(segment) {
				return next, true
			}
		}
		return nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		iter := rv.MapRange()
		for iter.Next() {
			if normalize(iter.Key().String()) == normalize(segment) {
				return iter.Value().Interface(), true
			}
		}
		return nil, false

	case reflect.Struct:
		f := rv.FieldByNameFunc(func(name string) bool {
			return normalize(name) == normalize(segment)
		})
		if !f.IsValid() || !f.CanInterface() {
			return nil, false
		}
		return f.Interface(), true

	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(segment)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	}

	return nil, false
}

// normalize folds case and drops underscores so userId, user_id and UserID
// name the same field.
func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}
