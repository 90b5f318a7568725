// Package standin lets automated tests replace real collaborators with
// controllable substitutes: it records that a message is allowed or
// required on a subject, routes that call through a dispatch layer during
// the test, applies a configured response, and after the test verifies that
// required calls happened and restores every subject.
//
// This is the public API entry point. Implementation lives in internal/core.
package standin

import (
	"errors"
	"reflect"

	"github.com/standin/standin/internal/core"
)

// TestReporter is the minimal interface standin needs from test frameworks.
type TestReporter = core.TestReporter

// Space is the per-test registry of all Proxies and recorders.
type Space = core.Space

// SpaceOption configures a Space.
type SpaceOption = core.SpaceOption

// WithLogger routes a Space's restoration diagnostics to the given logger.
var WithLogger = core.WithLogger

// Proxy owns all interception state for one subject.
type Proxy = core.Proxy

// Record is a single stub or expectation; refine it with its fluent
// methods (With, Exactly, Return, ...).
type Record = core.ExpectationRecord

// Template is a pending any-instance declaration.
type Template = core.ExpectationTemplate

// AnyInstanceRecorder manages expectations declared against any instance of
// a class.
type AnyInstanceRecorder = core.AnyInstanceRecorder

// MethodDouble owns the records and captured original for one message on
// one subject.
type MethodDouble = core.MethodDouble

// MethodHandle is a callable capture of a subject's implementation of one
// message.
type MethodHandle = core.MethodHandle

// CallSite identifies where a declaration or call originated.
type CallSite = core.CallSite

// Matcher defines the interface for flexible argument matching.
type Matcher = core.Matcher

// UnexpectedMessageError reports a call no record or original covers.
type UnexpectedMessageError = core.UnexpectedMessageError

// VerificationFailure describes one unmet expectation.
type VerificationFailure = core.VerificationFailure

// VerificationError aggregates all failures from one verification pass.
type VerificationError = core.VerificationError

// Option adjusts a single AllowMessage/ExpectMessage declaration.
type Option func(*declConfig)

type declConfig struct {
	site       *CallSite
	returns    []any
	hasReturns bool
}

// WithCallSite overrides the inferred declaration site. DSL layers that
// wrap standin use this to point diagnostics at their caller instead of
// themselves.
func WithCallSite(file string, line int) Option {
	return func(cfg *declConfig) {
		cfg.site = &CallSite{File: file, Line: line}
	}
}

// WithReturn sets the declared record's response in one step, equivalent to
// calling Return on the result.
func WithReturn(values ...any) Option {
	return func(cfg *declConfig) {
		cfg.returns = values
		cfg.hasReturns = true
	}
}

// Setup reserves the Space for this test, creating it if needed, and
// applies any options. Calling it is optional - every other entry point
// creates the Space on demand - but it is the place to configure logging
// before declarations happen.
func Setup(t TestReporter, opts ...SpaceOption) *Space {
	space := spaceFor(t)
	space.Configure(opts...)

	return space
}

// AllowMessage declares a stub: subject may receive message any number of
// times. The declaration site is inferred as the first stack frame outside
// this library unless overridden. Returns the record for refinement.
func AllowMessage(t TestReporter, subject any, message string, opts ...Option) *Record {
	t.Helper()

	cfg := applyOptions(opts)
	record := spaceFor(t).ProxyFor(subject).AddStub(cfg.siteOrInferred(), message)

	return cfg.applyResponse(record)
}

// ExpectMessage declares an expectation: subject must receive message,
// exactly once by default. Same call-site inference as AllowMessage.
func ExpectMessage(t TestReporter, subject any, message string, opts ...Option) *Record {
	t.Helper()

	cfg := applyOptions(opts)
	record := spaceFor(t).ProxyFor(subject).AddExpectation(cfg.siteOrInferred(), message)

	return cfg.applyResponse(record)
}

// Verify checks every expectation registered under t and fails the test
// with a report of all unmet ones. Call once per test, before Teardown.
func Verify(t TestReporter) {
	t.Helper()

	if err := spaceFor(t).VerifyAll(); err != nil {
		t.Fatalf("%v", err)
	}
}

// Teardown restores every subject registered under t to its pre-test
// behavior and clears the Space. Safe to call unconditionally - after a
// failure, after a skipped Verify, or more than once.
func Teardown(t TestReporter) {
	t.Helper()

	if space, ok := lookupSpace(t); ok {
		space.ResetAll()
	}
}

// ProxyFor returns (creating if needed) the Proxy for subject in this
// test's Space.
func ProxyFor(t TestReporter, subject any) *Proxy {
	return spaceFor(t).ProxyFor(subject)
}

// ProxiesOf returns a lazy, single-use sequence of Proxies whose subject is
// an instance of class.
func ProxiesOf(t TestReporter, class any) func(yield func(*Proxy) bool) {
	return spaceFor(t).ProxiesOf(class)
}

// AnyInstanceRecorderFor returns (creating if needed) the recorder for
// class in this test's Space.
func AnyInstanceRecorderFor(t TestReporter, class any) *AnyInstanceRecorder {
	return spaceFor(t).AnyInstanceRecorderFor(class)
}

// MethodHandleFor resolves a callable handle for subject's current
// implementation of message. Used by interception installers; exposed for
// DSL layers that need the same insulated lookup.
func MethodHandleFor(subject any, message string) MethodHandle {
	return core.ResolveMethodHandle(subject, message)
}

// Dispatch routes an intercepted call through this test's Space. A
// configured-failure response comes back as the error; an unexpected
// message fails the test immediately.
//
// Double implementations (handwritten or generated by standingen) call this
// from their method bodies.
func Dispatch(t TestReporter, subject any, message string, args ...any) ([]any, error) {
	t.Helper()

	results, err := spaceFor(t).Dispatch(subject, message, args...)

	var unexpected *UnexpectedMessageError
	if errors.As(err, &unexpected) {
		t.Fatalf("%v", unexpected)

		return nil, err
	}

	return results, err
}

// FillReturns assigns Dispatch results into typed return slots. Each out
// must be a pointer to the corresponding return value; slots without a
// matching result keep their zero value. A non-nil err is assigned to the
// trailing *error slot, the way a configured failure becomes the call's
// outcome in a typed signature.
func FillReturns(t TestReporter, results []any, err error, outs ...any) {
	t.Helper()

	if err != nil && !assignTrailingError(err, outs) {
		t.Fatalf("dispatch failed and the method has no trailing error return: %v", err)

		return
	}

	for i, out := range outs {
		if i >= len(results) || results[i] == nil {
			continue
		}

		ptr := reflect.ValueOf(out)
		if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
			t.Fatalf("FillReturns: out %d is %T, need a non-nil pointer", i, out)

			return
		}

		value := reflect.ValueOf(results[i])
		if !value.Type().AssignableTo(ptr.Type().Elem()) {
			t.Fatalf("FillReturns: cannot assign result %d (%T) to %s",
				i, results[i], ptr.Type().Elem())

			return
		}

		ptr.Elem().Set(value)
	}
}

// assignTrailingError stores err in the last out slot if it is *error.
func assignTrailingError(err error, outs []any) bool {
	if len(outs) == 0 {
		return false
	}

	errPtr, ok := outs[len(outs)-1].(*error)
	if !ok {
		return false
	}

	*errPtr = err

	return true
}

func applyOptions(opts []Option) *declConfig {
	cfg := &declConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

func (cfg *declConfig) siteOrInferred() CallSite {
	if cfg.site != nil {
		return *cfg.site
	}

	return core.InferCallSite()
}

func (cfg *declConfig) applyResponse(record *Record) *Record {
	if cfg.hasReturns {
		record.Return(cfg.returns...)
	}

	return record
}
