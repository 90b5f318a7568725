// Package core implements standin's proxy/expectation engine: the
// interception table keyed by (object identity, message name), the
// expectation records it manages, and the verify/reset lifecycle that
// brackets each test. The root standin package is a thin facade over this
// package.
package core

import (
	"iter"
	"reflect"
	"slices"

	"github.com/rs/zerolog"
)

// Space is the registry owning every live Proxy and AnyInstanceRecorder for
// one test. It is the single entry point for setup, verification, and
// teardown.
//
// A Space is deliberately unlocked: the engine is synchronous and a Space
// belongs to exactly one test generation at a time. Callers running tests
// in parallel get one Space each (see the standin facade registry); sharing
// one Space across goroutines requires external serialization.
type Space struct {
	logger  zerolog.Logger
	proxies map[any]*Proxy
	// order preserves proxy registration order; teardown unwinds it in
	// reverse so the most recently installed interception is removed first.
	order         []*Proxy
	recorders     map[reflect.Type]*AnyInstanceRecorder
	recorderOrder []*AnyInstanceRecorder
}

// SpaceOption configures a Space.
type SpaceOption func(*Space)

// WithLogger routes the Space's restoration diagnostics to the given
// logger. The default discards them.
func WithLogger(logger zerolog.Logger) SpaceOption {
	return func(s *Space) {
		s.logger = logger
	}
}

// NewSpace creates an empty Space.
func NewSpace(opts ...SpaceOption) *Space {
	space := &Space{
		logger:    zerolog.Nop(),
		proxies:   map[any]*Proxy{},
		recorders: map[reflect.Type]*AnyInstanceRecorder{},
	}

	for _, opt := range opts {
		opt(space)
	}

	return space
}

// Configure applies options to an existing Space.
func (s *Space) Configure(opts ...SpaceOption) {
	for _, opt := range opts {
		opt(s)
	}
}

// ProxyFor returns the existing Proxy for subject, creating and registering
// one if absent. Never fails.
func (s *Space) ProxyFor(subject any) *Proxy {
	key := identityKey(subject)
	if proxy, ok := s.proxies[key]; ok {
		return proxy
	}

	proxy := newProxy(subject)
	s.proxies[key] = proxy
	s.order = append(s.order, proxy)

	return proxy
}

// ProxiesOf returns a lazy, single-use sequence of the registered Proxies
// whose subject is an instance of class (the exact type, a pointer to it,
// or an implementation when class is an interface). The sequence snapshots
// the registry at call time and yields nothing when ranged a second time.
func (s *Space) ProxiesOf(class any) iter.Seq[*Proxy] {
	classType := classOf(class)
	snapshot := slices.Clone(s.order)
	consumed := false

	return func(yield func(*Proxy) bool) {
		if consumed {
			return
		}

		consumed = true

		for _, proxy := range snapshot {
			if !instanceOf(reflect.TypeOf(proxy.subject), classType) {
				continue
			}

			if !yield(proxy) {
				return
			}
		}
	}
}

// AnyInstanceRecorderFor returns the recorder for class, creating and
// registering one if absent.
func (s *Space) AnyInstanceRecorderFor(class any) *AnyInstanceRecorder {
	classType := classOf(class)
	if rec, ok := s.recorders[classType]; ok {
		return rec
	}

	rec := newAnyInstanceRecorder(s, classType)
	s.recorders[classType] = rec
	s.recorderOrder = append(s.recorderOrder, rec)

	return rec
}

// Dispatch routes an intercepted call for subject. Subjects with a
// registered Proxy dispatch through it; otherwise, if an any-instance
// recorder covers the subject's class, the subject is promoted first; a
// subject the Space knows nothing about runs its own implementation, or
// fails with UnexpectedMessageError if it has none.
func (s *Space) Dispatch(subject any, message string, args ...any) ([]any, error) {
	if proxy, ok := s.proxies[identityKey(subject)]; ok {
		return proxy.Dispatch(message, args...)
	}

	if rec := s.recorderCovering(subject); rec != nil {
		return rec.Dispatch(subject, message, args...)
	}

	handle := ResolveMethodHandle(subject, message)
	if handle.Exists() {
		return handle.Call(args)
	}

	return nil, &UnexpectedMessageError{
		Subject: subjectLabel(subject),
		Message: message,
		Args:    args,
		Site:    InferCallSite(),
	}
}

// VerifyAll checks every registered Proxy and recorder, collecting all
// failures rather than stopping at the first, and returns them as one
// *VerificationError (nil when everything is satisfied). It mutates
// nothing; verification may be re-run.
func (s *Space) VerifyAll() error {
	var failures []VerificationFailure

	for _, proxy := range s.order {
		failures = append(failures, proxy.Verify()...)
	}

	for _, rec := range s.recorderOrder {
		failures = append(failures, rec.Verify()...)
	}

	if len(failures) == 0 {
		return nil
	}

	return &VerificationError{Failures: failures}
}

// ResetAll restores every registered Proxy and recorder in reverse
// registration order, so the most recently installed interception unwinds
// first, then clears the Space. It is unconditionally callable - after a
// failed test, after a skipped VerifyAll, or a second time in a row.
// Restoration here is removal from the interception table, so it cannot
// fail and never leaves a subject half-restored; each restored subject is
// logged.
func (s *Space) ResetAll() {
	for i := len(s.order) - 1; i >= 0; i-- {
		proxy := s.order[i]
		proxy.Reset()
		s.logger.Debug().
			Str("subject", subjectLabel(proxy.subject)).
			Msg("restored")
	}

	for i := len(s.recorderOrder) - 1; i >= 0; i-- {
		s.recorderOrder[i].Reset()
	}

	s.proxies = map[any]*Proxy{}
	s.order = nil
	s.recorders = map[reflect.Type]*AnyInstanceRecorder{}
	s.recorderOrder = nil
}

// recorderCovering finds a registered recorder whose class covers the
// subject's type, in registration order.
func (s *Space) recorderCovering(subject any) *AnyInstanceRecorder {
	subjectType := reflect.TypeOf(subject)

	for _, rec := range s.recorderOrder {
		if instanceOf(subjectType, rec.class) {
			return rec
		}
	}

	return nil
}
