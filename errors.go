package vkg

import "fmt"

// ProgrammerError marks a precondition violation that the caller should
// have never triggered: wrong command-buffer state, a descriptor write
// that doesn't match its layout, a push-constant range outside the
// program's declared range, two overlapping render-target scopes, or a
// state-tracking invariant broken at submit time.
//
// These are always programmer mistakes, never something a caller should
// try to recover from, so they are raised with panic rather than
// returned as an error value. Vulkan result codes keep flowing as
// ordinary errors (see vk.Error throughout this package).
type ProgrammerError struct {
	msg string
}

func (e *ProgrammerError) Error() string { return e.msg }

func panicf(format string, args ...interface{}) {
	panic(&ProgrammerError{msg: fmt.Sprintf(format, args...)})
}
