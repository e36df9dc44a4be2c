package compliance

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// FieldKind is the expected kind of a payload field.
type FieldKind string

const (
	KindAny    FieldKind = "any"
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindTime   FieldKind = "time"
	KindMap    FieldKind = "map"
	KindList   FieldKind = "list"
)

// FieldSpec describes one top-level payload field.
type FieldSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Kind     FieldKind `yaml:"kind" json:"kind"`
	Required bool      `yaml:"required" json:"required"`
}

// Schema describes the payload of one action type. Unregistered action
// types accept any payload.
type Schema struct {
	ActionType string      `yaml:"action_type" json:"action_type"`
	Fields     []FieldSpec `yaml:"fields" json:"fields"`

	// Strict rejects payload fields not listed in Fields.
	Strict bool `yaml:"strict" json:"strict"`
}

// Problems checks data against the schema.
func (s *Schema) Problems(data map[string]any) []string {
	var problems []string
	known := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = struct{}{}
		v, ok := data[f.Name]
		if !ok || v == nil {
			if f.Required {
				problems = append(problems, fmt.Sprintf("data.%s is required", f.Name))
			}
			continue
		}
		if !kindMatches(f.Kind, v) {
			problems = append(problems, fmt.Sprintf("data.%s must be %s, got %T", f.Name, f.Kind, v))
		}
	}
	if s.Strict {
		var extra []string
		for k := range data {
			if _, ok := known[k]; !ok {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			problems = append(problems, fmt.Sprintf("data.%s is not allowed", k))
		}
	}
	return problems
}

func kindMatches(kind FieldKind, v any) bool {
	switch kind {
	case KindAny, "":
		return true
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return true
		case string:
			_, err := time.Parse(time.RFC3339, t)
			return err == nil
		}
		return false
	}

	rv := reflect.ValueOf(v)
	switch kind {
	case KindNumber:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
	case KindMap:
		return rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct
	case KindList:
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	}
	return false
}

// SchemaRegistry maps action types to payload schemas.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewSchemaRegistry creates a registry holding the given schemas.
func NewSchemaRegistry(schemas ...*Schema) *SchemaRegistry {
	r := &SchemaRegistry{schemas: make(map[string]*Schema)}
	for _, s := range schemas {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the schema for its action type.
func (r *SchemaRegistry) Register(s *Schema) {
	if s == nil || s.ActionType == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.ActionType] = s
}

// Lookup returns the schema registered for an action type.
func (r *SchemaRegistry) Lookup(actionType string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[actionType]
	return s, ok
}

// Len returns the number of registered schemas.
func (r *SchemaRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}
