package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Sentinel errors for dispatch and restoration.
var (
	// ErrNoOriginal is returned when a record or fallback needs the subject's
	// pre-existing implementation and none was ever present.
	ErrNoOriginal = errors.New("no original implementation")

	// ErrOriginalCall is returned when invoking the captured original
	// implementation fails (wrong arity, unassignable argument types).
	ErrOriginalCall = errors.New("original implementation call failed")
)

// argDump formats argument values for diagnostics. Methods are disabled so a
// subject's own String cannot hide the value it actually received.
//
//nolint:gochecknoglobals // shared formatter configuration
var argDump = &spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// formatArgs renders a received argument list on one line.
func formatArgs(args []any) string {
	if len(args) == 0 {
		return "(no arguments)"
	}

	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = strings.TrimSuffix(argDump.Sdump(a), "\n")
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

// UnexpectedMessageError reports a call that no stub, expectation, or
// original implementation covers. It is surfaced immediately at the call
// site, since continuing would run against undefined behavior.
type UnexpectedMessageError struct {
	Subject string
	Message string
	Args    []any
	Site    CallSite
	// Rejections explains, per registered record, why the call was not
	// claimed. Empty when no records exist for the message at all.
	Rejections []string
}

// Error formats the failure with the received arguments and, when records
// exist for the message, why each one rejected the call.
func (e *UnexpectedMessageError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "unexpected message %q received by %s with %s",
		e.Message, e.Subject, formatArgs(e.Args))

	if e.Site.Known() {
		fmt.Fprintf(&b, "\n  called from %s", e.Site)
	}

	for _, r := range e.Rejections {
		fmt.Fprintf(&b, "\n  %s", r)
	}

	return b.String()
}

// VerificationFailure describes one unmet expectation: which message on
// which subject, the declared constraint, and what actually happened.
type VerificationFailure struct {
	Subject  string
	Message  string
	Expected string
	Actual   int
	Site     CallSite
}

// String formats the failure the way it appears in a verification report.
func (f VerificationFailure) String() string {
	return fmt.Sprintf("%s expected %q %s, received %s (declared at %s)",
		f.Subject, f.Message, f.Expected, timesWord(f.Actual), f.Site)
}

// VerificationError aggregates every verification failure from one
// VerifyAll pass, so a single run reports every broken expectation.
type VerificationError struct {
	Failures []VerificationFailure
}

// Error renders all failures as a multi-line report.
func (e *VerificationError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d unsatisfied expectation(s):", len(e.Failures))

	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s", f.String())
	}

	return b.String()
}

// timesWord renders a call count in the "N time(s)" form used by reports.
func timesWord(n int) string {
	if n == 1 {
		return "1 time"
	}

	return fmt.Sprintf("%d times", n)
}
