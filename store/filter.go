package store

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter compares one top-level field against a scalar value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

func (f Filter) Validate() error {
	if !fieldNamePattern.MatchString(f.Field) {
		return fmt.Errorf("%w: field name %q", ErrInvalidFilter, f.Field)
	}
	switch f.Op {
	case OpEq:
	case OpLt, OpLte, OpGt, OpGte:
		if _, isBool := f.Value.(bool); isBool {
			return fmt.Errorf("%w: range operator %s on a boolean", ErrInvalidFilter, f.Op)
		}
	default:
		return fmt.Errorf("%w: operator %q", ErrInvalidFilter, f.Op)
	}
	if _, ok := normalize(f.Value); !ok {
		return fmt.Errorf("%w: unsupported value type %T", ErrInvalidFilter, f.Value)
	}
	return nil
}

// Match reports whether the record fields satisfy the filter. Values of
// different kinds never match.
func (f Filter) Match(fields map[string]any) bool {
	raw, ok := fields[f.Field]
	if !ok {
		return false
	}
	got, ok := normalize(raw)
	if !ok {
		return false
	}
	want, _ := normalize(f.Value)

	cmp, comparable := compare(got, want)
	if !comparable {
		return false
	}
	switch f.Op {
	case OpEq:
		return cmp == 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	}
	return false
}

func matchAll(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(fields) {
			return false
		}
	}
	return true
}

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// normalize maps Go scalars, including named string and number types, onto
// the kinds JSON decoding produces.
func normalize(v any) (any, bool) {
	switch val := v.(type) {
	case string, bool, float64:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return nil, false
}

func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		return 1, true
	}
	return 0, false
}
