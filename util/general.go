package util

import (
	"runtime/debug"

	"github.com/go-playground/validator"
)

var Validate = validator.New()

// CapturePanic runs fn and converts a panic into a returned value instead of unwinding the caller.
func CapturePanic[T any](fn func() T) (res T, panicVal any, stack []byte) {
	defer func() {
		if r := recover(); r != nil {
			panicVal = r
			stack = debug.Stack()
		}
	}()
	res = fn()
	return
}
