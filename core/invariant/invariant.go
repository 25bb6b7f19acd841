// Package invariant provides contract assertions for cmdline.
//
// Assertions guard against programming errors, never against user input:
// malformed command lines are reported through status values, while a caller
// reading the wrong accessor of a platform-tagged argument list is a bug and
// panics here.
package invariant

import (
	"fmt"
	"reflect"
	"runtime"
)

// Precondition checks an input contract at function entry.
// Panics with PRECONDITION VIOLATION if condition is false.
func Precondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Invariant checks an internal consistency condition during execution,
// such as loop progress or state-machine sanity.
// Panics with INVARIANT VIOLATION if condition is false.
func Invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil, including a typed nil inside an interface.
func NotNil(value interface{}, name string) {
	if value == nil || isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

func isNilValue(value interface{}) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

func fail(kind, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if _, file, line, ok := runtime.Caller(2); ok {
		panic(fmt.Sprintf("%s VIOLATION at %s:%d: %s", kind, file, line, msg))
	}
	panic(fmt.Sprintf("%s VIOLATION: %s", kind, msg))
}
