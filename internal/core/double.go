package core

// MethodDouble owns all expectation records for one message on one subject,
// plus the captured original dispatch target. It is the unit of
// install/restore: creating the double captures the original implementation
// (or its absence) before any record can run, and restoring it drops every
// record so the interception table routes the message to the original again.
// Invariant: at most one MethodDouble per (subject, message) pair, enforced
// by the owning Proxy.
type MethodDouble struct {
	subject  any
	message  string
	original MethodHandle
	records  []*ExpectationRecord
	restored bool
}

// newMethodDouble installs interception for (subject, message): the current
// implementation is captured immediately, before test code gets any chance
// to interfere with lookup.
func newMethodDouble(subject any, message string) *MethodDouble {
	return &MethodDouble{
		subject:  subject,
		message:  message,
		original: ResolveMethodHandle(subject, message),
	}
}

// Message returns the message name this double intercepts.
func (d *MethodDouble) Message() string {
	return d.message
}

// Original returns the captured pre-interception handle.
func (d *MethodDouble) Original() MethodHandle {
	return d.original
}

// addRecord appends a new record. Expectations default to exactly one call,
// stubs to any number.
func (d *MethodDouble) addRecord(required bool, site CallSite) *ExpectationRecord {
	count := countConstraint{kind: countAny}
	if required {
		count = countConstraint{kind: countExactly, n: 1}
	}

	record := &ExpectationRecord{
		double:   d,
		required: required,
		count:    count,
		site:     site,
	}
	d.records = append(d.records, record)

	return record
}

// resolve picks the record that claims a call with args, or nil with the
// per-record rejection reasons when nothing claims it.
//
// Preference order, pinned for determinism:
//  1. unsatisfied expectations whose arguments match and that may still run
//     - most specific matcher first, declaration order on ties;
//  2. satisfied expectations that still permit further calls (at-least and
//     any-count requirements keep absorbing), same ranking;
//  3. stubs whose arguments match - most specific first, and among equally
//     specific stubs the most recently declared wins, so a re-declared stub
//     supersedes its predecessor;
//  4. expectations whose arguments match but whose call cap is exhausted -
//     the overflow call is still claimed and counted, so verification
//     reports a count mismatch instead of dispatch failing spuriously.
func (d *MethodDouble) resolve(args []any) (*ExpectationRecord, []string) {
	if rec := d.pickExpectation(args, false); rec != nil {
		return rec, nil
	}

	if rec := d.pickExpectation(args, true); rec != nil {
		return rec, nil
	}

	if rec := d.pickStub(args); rec != nil {
		return rec, nil
	}

	if rec := d.pickOverflow(args); rec != nil {
		return rec, nil
	}

	rejections := make([]string, 0, len(d.records))
	for _, r := range d.records {
		rejections = append(rejections, r.rejection(args))
	}

	return nil, rejections
}

// pickExpectation scans eligible expectations in declaration order, keeping
// the most specific match; satisfied selects between pass 1 and pass 2.
func (d *MethodDouble) pickExpectation(args []any, satisfied bool) *ExpectationRecord {
	var best *ExpectationRecord

	for _, r := range d.records {
		if !r.required || r.satisfied() != satisfied {
			continue
		}

		if !r.eligible() || !r.matches(args) {
			continue
		}

		if best == nil || r.specificity() > best.specificity() {
			best = r
		}
	}

	return best
}

// pickStub scans stubs, keeping the most specific match; equal specificity
// goes to the most recently declared.
func (d *MethodDouble) pickStub(args []any) *ExpectationRecord {
	var best *ExpectationRecord

	for _, r := range d.records {
		if r.required || !r.eligible() || !r.matches(args) {
			continue
		}

		if best == nil || r.specificity() >= best.specificity() {
			best = r
		}
	}

	return best
}

// pickOverflow claims a call for a capped expectation whose arguments match
// so the excess shows up as a count mismatch at verification.
func (d *MethodDouble) pickOverflow(args []any) *ExpectationRecord {
	for _, r := range d.records {
		if r.required && r.orderingMet() && r.matches(args) && !r.count.permits(r.calls) {
			return r
		}
	}

	return nil
}

// verify collects the verification failure of every record on this double.
func (d *MethodDouble) verify() []VerificationFailure {
	var failures []VerificationFailure

	for _, r := range d.records {
		if f := r.verifyFailure(); f != nil {
			failures = append(failures, *f)
		}
	}

	return failures
}

// restore drops all records so dispatch falls through to the captured
// original. Restoring is table removal, so it cannot fail. Idempotent:
// restoring an already-restored double is a no-op, and restoring a double
// whose installation never attached records is safe.
func (d *MethodDouble) restore() {
	if d.restored {
		return
	}

	d.restored = true
	d.records = nil
}
