// Package condition decides whether a repository entity already carries a
// persistent identifier of a configured type.
package condition

import (
	"context"
	"reflect"

	"github.com/systmms/pidops/pkg/identifier"
)

// HasIdentifier reports whether entity carries a non-empty identifier in
// the field described by cfg. It never fails: an unset field name, a
// mismatched entity type or bundle, or a missing field all yield false.
func HasIdentifier(entity identifier.Entity, cfg identifier.Config) bool {
	if cfg.Field == "" {
		return false
	}
	if entity.EntityType != cfg.EntityType || entity.Bundle != cfg.Bundle {
		return false
	}
	if !entity.HasField(cfg.Field) {
		return false
	}
	return !IsEmpty(entity.Fields[cfg.Field])
}

// IsEmpty reports whether a field value holds nothing. Nil, the empty
// string, empty collections, and collections whose items are all empty
// count as empty.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}

	switch val := v.(type) {
	case string:
		return val == ""
	case []any:
		for _, item := range val {
			if !IsEmpty(item) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, item := range val {
			if !IsEmpty(item) {
				return false
			}
		}
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsEmpty(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !IsEmpty(rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if !IsEmpty(iter.Value().Interface()) {
				return false
			}
		}
		return true
	case reflect.String:
		return rv.Len() == 0
	}
	return false
}

// Condition evaluates HasIdentifier for a named identifier configuration.
type Condition struct {
	// Identifier is the configuration name to resolve.
	Identifier string

	// Negate inverts the evaluation result.
	Negate bool
}

// Evaluate resolves the configuration through store and applies
// HasIdentifier. A nil entity evaluates to false before negation. An
// unresolvable configuration is returned as an error.
func (c Condition) Evaluate(ctx context.Context, store identifier.ConfigStore, entity *identifier.Entity) (bool, error) {
	if entity == nil {
		return c.Negate, nil
	}

	cfg, err := store.Get(ctx, c.Identifier)
	if err != nil {
		return false, err
	}

	return HasIdentifier(*entity, cfg) != c.Negate, nil
}

// Summary describes the condition in words.
func (c Condition) Summary() string {
	if c.Negate {
		return "Entity does not have a persistent identifier."
	}
	return "Entity has a persistent identifier."
}
