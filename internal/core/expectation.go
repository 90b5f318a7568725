package core

import (
	"fmt"
	"slices"
)

// countKind enumerates the call-count constraint shapes a record can carry.
type countKind int

const (
	countAny countKind = iota
	countExactly
	countAtLeast
	countAtMost
)

// countConstraint bounds how often a record may and must be invoked.
type countConstraint struct {
	kind countKind
	n    int
}

// permits reports whether one more call is allowed given the current count.
func (c countConstraint) permits(calls int) bool {
	switch c.kind {
	case countExactly, countAtMost:
		return calls < c.n
	case countAny, countAtLeast:
		return true
	default:
		return false
	}
}

// met reports whether the constraint is satisfied at the current count.
func (c countConstraint) met(calls int) bool {
	switch c.kind {
	case countExactly:
		return calls == c.n
	case countAtLeast:
		return calls >= c.n
	case countAtMost:
		return calls <= c.n
	case countAny:
		return true
	default:
		return false
	}
}

// String renders the constraint for verification reports.
func (c countConstraint) String() string {
	switch c.kind {
	case countExactly:
		return "exactly " + timesWord(c.n)
	case countAtLeast:
		return "at least " + timesWord(c.n)
	case countAtMost:
		return "at most " + timesWord(c.n)
	case countAny:
		return "any number of times"
	default:
		return "unknown constraint"
	}
}

// responseKind enumerates what a record does when it claims a call.
type responseKind int

const (
	// respUnset yields nil results; typed callers fill zero values.
	respUnset responseKind = iota
	respValues
	respInvoke
	respOriginal
	respError
)

// response is a record's configured outcome for claimed calls.
type response struct {
	kind   responseKind
	values []any
	fn     func(args []any) []any
	err    error
}

// ExpectationRecord is a single allowance (stub) or requirement
// (expectation) for one message on one subject. Records are created through
// Proxy.AddStub / Proxy.AddExpectation and refined through the fluent
// methods below; dispatch is the only thing that mutates them afterwards
// (invocation count increments).
type ExpectationRecord struct {
	double   *MethodDouble
	required bool
	// matchers is nil for "any arguments"; otherwise one entry per expected
	// argument, each either a literal (DeepEqual) or a Matcher.
	matchers    []any
	hasMatchers bool
	count       countConstraint
	calls       int
	resp        response
	site        CallSite
	after       *ExpectationRecord
}

// Message returns the message name this record is registered for.
func (r *ExpectationRecord) Message() string {
	return r.double.message
}

// Calls returns how many times the record has claimed a dispatched call.
func (r *ExpectationRecord) Calls() int {
	return r.calls
}

// Site returns where the record was declared.
func (r *ExpectationRecord) Site() CallSite {
	return r.site
}

// Required reports whether this record is an expectation (checked at
// verification) rather than a stub.
func (r *ExpectationRecord) Required() bool {
	return r.required
}

// With constrains the record to calls whose arguments match the given
// values. Each value is either a literal, compared with DeepEqual, or a
// Matcher. Returns the record for chaining.
func (r *ExpectationRecord) With(matchers ...any) *ExpectationRecord {
	r.matchers = matchers
	r.hasMatchers = true

	return r
}

// Exactly requires the message to be received exactly n times.
func (r *ExpectationRecord) Exactly(n int) *ExpectationRecord {
	r.count = countConstraint{kind: countExactly, n: n}

	return r
}

// AtLeast requires the message to be received at least n times.
func (r *ExpectationRecord) AtLeast(n int) *ExpectationRecord {
	r.count = countConstraint{kind: countAtLeast, n: n}

	return r
}

// AtMost allows the message to be received at most n times.
func (r *ExpectationRecord) AtMost(n int) *ExpectationRecord {
	r.count = countConstraint{kind: countAtMost, n: n}

	return r
}

// AnyNumber allows the message any number of times (a stub's default).
func (r *ExpectationRecord) AnyNumber() *ExpectationRecord {
	r.count = countConstraint{kind: countAny}

	return r
}

// Never requires the message to not be received at all.
func (r *ExpectationRecord) Never() *ExpectationRecord {
	return r.Exactly(0)
}

// Return configures the record to yield the given values when it claims a
// call.
func (r *ExpectationRecord) Return(values ...any) *ExpectationRecord {
	r.resp = response{kind: respValues, values: values}

	return r
}

// Invoke configures the record to compute its results from the received
// arguments.
func (r *ExpectationRecord) Invoke(fn func(args []any) []any) *ExpectationRecord {
	r.resp = response{kind: respInvoke, fn: fn}

	return r
}

// CallOriginal configures the record to pass claimed calls through to the
// subject's captured pre-interception implementation.
func (r *ExpectationRecord) CallOriginal() *ExpectationRecord {
	r.resp = response{kind: respOriginal}

	return r
}

// Raise configures the record to fail claimed calls with err as the call's
// outcome.
func (r *ExpectationRecord) Raise(err error) *ExpectationRecord {
	r.resp = response{kind: respError, err: err}

	return r
}

// After constrains the record to only claim calls once the other record has
// claimed at least one.
func (r *ExpectationRecord) After(other *ExpectationRecord) *ExpectationRecord {
	r.after = other

	return r
}

// matches reports whether the received argument list satisfies the record's
// matchers. A record declared without With matches any arguments.
func (r *ExpectationRecord) matches(args []any) bool {
	if !r.hasMatchers {
		return true
	}

	if len(args) != len(r.matchers) {
		return false
	}

	for i, m := range r.matchers {
		if ok, _ := MatchValue(args[i], m); !ok {
			return false
		}
	}

	return true
}

// specificity ranks how tightly the record constrains arguments: literal
// values bind tighter than matchers, matchers tighter than wildcards, and
// any explicit With beats a record that matches everything. Higher wins.
func (r *ExpectationRecord) specificity() int {
	if !r.hasMatchers {
		return 0
	}

	score := 1

	for _, m := range r.matchers {
		switch {
		case isWildcard(m):
			// no additional weight
		case isMatcher(m):
			score += 1
		default:
			score += 2
		}
	}

	return score
}

// orderingMet reports whether the record's After prerequisite (if any) has
// already claimed a call.
func (r *ExpectationRecord) orderingMet() bool {
	return r.after == nil || r.after.calls > 0
}

// eligible reports whether the record may claim one more call right now.
func (r *ExpectationRecord) eligible() bool {
	return r.count.permits(r.calls) && r.orderingMet()
}

// satisfied reports whether the record's count constraint is currently met.
func (r *ExpectationRecord) satisfied() bool {
	return r.count.met(r.calls)
}

// rejection explains why the record did not claim a call with args, for
// unexpected-message diagnostics.
func (r *ExpectationRecord) rejection(args []any) string {
	label := "stub"
	if r.required {
		label = "expectation"
	}

	var reason string

	switch {
	case !r.matches(args):
		reason = "arguments did not match"
	case !r.orderingMet():
		reason = fmt.Sprintf("must come after the record declared at %s", r.after.site)
	case !r.count.permits(r.calls):
		reason = fmt.Sprintf("already received %s (%s)", timesWord(r.calls), r.count)
	default:
		reason = "claimed by a preferred record"
	}

	return fmt.Sprintf("%s declared at %s: %s", label, r.site, reason)
}

// verifyFailure returns the record's verification failure, or nil when its
// constraint is met. Stubs never fail verification.
func (r *ExpectationRecord) verifyFailure() *VerificationFailure {
	if !r.required || r.satisfied() {
		return nil
	}

	return &VerificationFailure{
		Subject:  subjectLabel(r.double.subject),
		Message:  r.double.message,
		Expected: r.count.String(),
		Actual:   r.calls,
		Site:     r.site,
	}
}

// execute applies the record's configured response to a claimed call.
func (r *ExpectationRecord) execute(args []any) ([]any, error) {
	switch r.resp.kind {
	case respValues:
		return slices.Clone(r.resp.values), nil
	case respInvoke:
		return r.resp.fn(args), nil
	case respOriginal:
		if !r.double.original.Exists() {
			return nil, fmt.Errorf("%w for %q", ErrNoOriginal, r.double.message)
		}

		return r.double.original.Call(args)
	case respError:
		return nil, r.resp.err
	case respUnset:
		return nil, nil
	default:
		return nil, nil
	}
}

// cloneOnto copies the record's configuration onto another MethodDouble,
// resetting the invocation count. Used by any-instance promotion.
func (r *ExpectationRecord) cloneOnto(double *MethodDouble) *ExpectationRecord {
	clone := &ExpectationRecord{
		double:      double,
		required:    r.required,
		matchers:    slices.Clone(r.matchers),
		hasMatchers: r.hasMatchers,
		count:       r.count,
		resp:        r.resp,
		site:        r.site,
	}
	double.records = append(double.records, clone)

	return clone
}

// isMatcher reports whether an expected value is a Matcher rather than a
// literal.
func isMatcher(expected any) bool {
	_, ok := expected.(Matcher)

	return ok
}
