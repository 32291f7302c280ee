//go:build !debug_mem_utils

package memutils

import "fmt"

// AssertionsFatal is true when failed assertions panic instead of being logged
const AssertionsFatal = false

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
}

// Assert panics with the formatted message if cond is false. Without the debug_mem_utils build tag,
// the failure is logged to the assertion logger instead and execution continues.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		logAssertion(fmt.Sprintf(format, args...))
	}
}
