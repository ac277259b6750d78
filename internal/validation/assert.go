// Package validation holds fail-fast guards for constructor arguments.
//
// The guards panic: a missing dependency is a wiring bug in main, not a runtime
// condition callers could recover from.
package validation

import (
	"fmt"
	"reflect"
)

// AssertNotNil panics when ptr is nil.
//
//	validation.AssertNotNil(pool, "database pool")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

// AssertPresent panics when v is a nil interface or an interface holding a
// nil pointer, map, slice, func or channel.
//
//	validation.AssertPresent(publisher, "publisher")
func AssertPresent(v any, name string) {
	if IsNil(v) {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

// AssertNotEmpty panics when s is empty.
func AssertNotEmpty(s, name string) {
	if s == "" {
		panic(fmt.Sprintf("critical error: %s cannot be empty", name))
	}
}

// IsNil reports whether v is nil or an interface wrapping a nil reference.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
