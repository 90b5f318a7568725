package core

import (
	"fmt"
	"runtime"
	"strings"
)

// CallSite identifies where a stub or expectation was declared, or where a
// dispatched call originated. The zero value means the site is unknown.
type CallSite struct {
	File string
	Line int
}

// String formats the site as "file:line", or "<unknown>" for the zero value.
func (c CallSite) String() string {
	if c.File == "" {
		return "<unknown>"
	}

	return fmt.Sprintf("%s:%d", c.File, c.Line)
}

// Known reports whether the site was successfully captured.
func (c CallSite) Known() bool {
	return c.File != ""
}

// InferCallSite walks the stack and returns the first frame that does not
// belong to this library. Declarations made through the facade therefore
// report the test author's file and line, not standin's internals.
func InferCallSite() CallSite {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skipInferFrames, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()

		if frame.Function != "" && !insideEngine(frame.Function) {
			return CallSite{File: frame.File, Line: frame.Line}
		}

		if !more {
			return CallSite{}
		}
	}
}

const (
	maxStackDepth = 32
	// skip runtime.Callers and InferCallSite itself.
	skipInferFrames = 2
)

// enginePackages are the fully qualified package prefixes that count as
// "inside" the library for call-site inference. The trailing dot keeps
// external test packages (e.g. core_test) from being skipped.
//
//nolint:gochecknoglobals // static package name table
var enginePackages = []string{
	"github.com/standin/standin.",
	"github.com/standin/standin/internal/core.",
}

// insideEngine reports whether the fully qualified function name belongs to
// this library rather than to code using it.
func insideEngine(function string) bool {
	for _, prefix := range enginePackages {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}

	return false
}
