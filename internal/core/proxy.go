package core

// Proxy owns all interception state for one subject: the per-message
// MethodDoubles, and a log of which records claimed which calls. It is the
// per-object facade through which stubs and expectations are added and
// through which verification and reset are triggered.
//
// A Proxy references its subject but does not own its lifetime; the subject
// may freely outlive the proxy.
type Proxy struct {
	subject any
	doubles map[string]*MethodDouble
	// order preserves double creation order for deterministic verification
	// and restoration.
	order   []*MethodDouble
	invoked []*ExpectationRecord
}

// newProxy creates an empty proxy for the subject.
func newProxy(subject any) *Proxy {
	return &Proxy{
		subject: subject,
		doubles: map[string]*MethodDouble{},
	}
}

// Subject returns the object this proxy intercepts for.
func (p *Proxy) Subject() any {
	return p.subject
}

// Double returns the MethodDouble for message, or nil if no stub or
// expectation was ever declared for it.
func (p *Proxy) Double(message string) *MethodDouble {
	return p.doubles[message]
}

// AddStub declares an allowance: the subject may receive message any number
// of times. Returns the record for response and constraint refinement.
func (p *Proxy) AddStub(site CallSite, message string) *ExpectationRecord {
	return p.ensureDouble(message).addRecord(false, site)
}

// AddExpectation declares a requirement: the subject must receive message,
// exactly once by default. Returns the record for refinement.
func (p *Proxy) AddExpectation(site CallSite, message string) *ExpectationRecord {
	return p.ensureDouble(message).addRecord(true, site)
}

// ensureDouble get-or-creates the MethodDouble for message, capturing the
// subject's original implementation on first use.
func (p *Proxy) ensureDouble(message string) *MethodDouble {
	if d, ok := p.doubles[message]; ok {
		return d
	}

	d := newMethodDouble(p.subject, message)
	p.doubles[message] = d
	p.order = append(p.order, d)

	return d
}

// Dispatch routes an intercepted call: a matching record claims it and its
// response becomes the call's outcome; otherwise the captured original runs
// if one existed; otherwise the call fails with UnexpectedMessageError.
func (p *Proxy) Dispatch(message string, args ...any) ([]any, error) {
	double, ok := p.doubles[message]
	if !ok {
		handle := ResolveMethodHandle(p.subject, message)
		if handle.Exists() {
			return handle.Call(args)
		}

		return nil, p.unexpected(message, args, nil)
	}

	record, rejections := double.resolve(args)
	if record == nil {
		if double.original.Exists() {
			return double.original.Call(args)
		}

		return nil, p.unexpected(message, args, rejections)
	}

	record.calls++
	p.invoked = append(p.invoked, record)

	return record.execute(args)
}

// Invoked returns the records that have claimed calls, in dispatch order.
func (p *Proxy) Invoked() []*ExpectationRecord {
	return p.invoked
}

// Verify checks every record on every double against its count constraint
// and returns all failures; it never stops at the first.
func (p *Proxy) Verify() []VerificationFailure {
	var failures []VerificationFailure

	for _, d := range p.order {
		failures = append(failures, d.verify()...)
	}

	return failures
}

// Reset restores every double in reverse declaration order and drops the
// proxy's state. Safe to call repeatedly.
func (p *Proxy) Reset() {
	for i := len(p.order) - 1; i >= 0; i-- {
		p.order[i].restore()
	}

	p.doubles = map[string]*MethodDouble{}
	p.order = nil
	p.invoked = nil
}

// unexpected builds the dispatch failure for an unclaimed call.
func (p *Proxy) unexpected(message string, args []any, rejections []string) error {
	return &UnexpectedMessageError{
		Subject:    subjectLabel(p.subject),
		Message:    message,
		Args:       args,
		Site:       InferCallSite(),
		Rejections: rejections,
	}
}
