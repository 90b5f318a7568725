package core

import (
	"reflect"
)

// AnyInstanceRecorder manages expectations declared against "any instance
// of class C" rather than a specific subject. Declarations are recorded as
// templates without touching any existing instance; the first dispatch an
// instance receives (or an explicit Promote) binds copies of every template
// onto a per-instance Proxy. Promoted instances are remembered so later
// lookups reuse the same proxy.
type AnyInstanceRecorder struct {
	space     *Space
	class     reflect.Type
	templates []*ExpectationTemplate
	promoted  map[any]*Proxy
	// promoOrder preserves promotion order for deterministic cascade.
	promoOrder []*Proxy
}

// ExpectationTemplate is a pending class-level declaration. Its fluent
// refinement methods mirror ExpectationRecord and configure the prototype
// that promotion copies onto each instance; refinements made after an
// instance was promoted only affect instances promoted later. After is the
// one record refinement with no template counterpart: an ordering
// constraint ties two concrete records on one subject, and templates have
// no subject until promotion.
type ExpectationTemplate struct {
	recorder *AnyInstanceRecorder
	message  string
	proto    *ExpectationRecord
	// bound holds the per-instance copies, one per promoted proxy.
	bound []*ExpectationRecord
}

// newAnyInstanceRecorder creates an empty recorder for class.
func newAnyInstanceRecorder(space *Space, class reflect.Type) *AnyInstanceRecorder {
	return &AnyInstanceRecorder{
		space:    space,
		class:    class,
		promoted: map[any]*Proxy{},
	}
}

// Class returns the class this recorder covers.
func (rec *AnyInstanceRecorder) Class() reflect.Type {
	return rec.class
}

// AllowMessage records a class-level stub template.
func (rec *AnyInstanceRecorder) AllowMessage(site CallSite, message string) *ExpectationTemplate {
	return rec.addTemplate(false, site, message)
}

// ExpectMessage records a class-level expectation template. Verification
// fails if no instance ever receives the message.
func (rec *AnyInstanceRecorder) ExpectMessage(site CallSite, message string) *ExpectationTemplate {
	return rec.addTemplate(true, site, message)
}

func (rec *AnyInstanceRecorder) addTemplate(required bool, site CallSite, message string) *ExpectationTemplate {
	count := countConstraint{kind: countAny}
	if required {
		count = countConstraint{kind: countExactly, n: 1}
	}

	tpl := &ExpectationTemplate{
		recorder: rec,
		message:  message,
		proto: &ExpectationRecord{
			required: required,
			count:    count,
			site:     site,
		},
	}
	rec.templates = append(rec.templates, tpl)

	return tpl
}

// Promote fetches or creates the per-instance Proxy for instance and binds
// a copy of every template onto it. Subsequent calls for the same instance
// return the same proxy without re-binding.
func (rec *AnyInstanceRecorder) Promote(instance any) *Proxy {
	key := identityKey(instance)
	if proxy, ok := rec.promoted[key]; ok {
		return proxy
	}

	proxy := rec.space.ProxyFor(instance)
	rec.promoted[key] = proxy
	rec.promoOrder = append(rec.promoOrder, proxy)

	for _, tpl := range rec.templates {
		clone := tpl.proto.cloneOnto(proxy.ensureDouble(tpl.message))
		tpl.bound = append(tpl.bound, clone)
	}

	return proxy
}

// Dispatch promotes the instance (if needed) and routes the call through
// its proxy.
func (rec *AnyInstanceRecorder) Dispatch(instance any, message string, args ...any) ([]any, error) {
	return rec.Promote(instance).Dispatch(message, args...)
}

// Verify reports required templates that never bound to any instance and
// whose count constraint is not already met by zero calls, so an unbound
// Never template passes. Each promoted instance's copies are verified
// independently through the Space's proxy pass, so an instance that
// satisfied its copy does not excuse one that did not.
func (rec *AnyInstanceRecorder) Verify() []VerificationFailure {
	var failures []VerificationFailure

	for _, tpl := range rec.templates {
		if !tpl.proto.required || len(tpl.bound) > 0 || tpl.proto.satisfied() {
			continue
		}

		failures = append(failures, VerificationFailure{
			Subject:  "any instance of " + rec.class.String(),
			Message:  tpl.message,
			Expected: tpl.proto.count.String(),
			Actual:   0,
			Site:     tpl.proto.site,
		})
	}

	return failures
}

// Reset cascades restoration to every promoted proxy in reverse promotion
// order and drops the recorder's templates. Promoted proxies also live in
// the Space, whose own reset pass is idempotent with this one.
func (rec *AnyInstanceRecorder) Reset() {
	for i := len(rec.promoOrder) - 1; i >= 0; i-- {
		rec.promoOrder[i].Reset()
	}

	rec.templates = nil
	rec.promoted = map[any]*Proxy{}
	rec.promoOrder = nil
}

// With constrains the template's matchers; see ExpectationRecord.With.
func (t *ExpectationTemplate) With(matchers ...any) *ExpectationTemplate {
	t.proto.With(matchers...)

	return t
}

// Exactly requires each receiving instance to get the message exactly n
// times.
func (t *ExpectationTemplate) Exactly(n int) *ExpectationTemplate {
	t.proto.Exactly(n)

	return t
}

// AtLeast requires each receiving instance to get the message at least n
// times.
func (t *ExpectationTemplate) AtLeast(n int) *ExpectationTemplate {
	t.proto.AtLeast(n)

	return t
}

// AtMost allows each receiving instance the message at most n times.
func (t *ExpectationTemplate) AtMost(n int) *ExpectationTemplate {
	t.proto.AtMost(n)

	return t
}

// AnyNumber allows the message any number of times.
func (t *ExpectationTemplate) AnyNumber() *ExpectationTemplate {
	t.proto.AnyNumber()

	return t
}

// Never forbids the message on every receiving instance.
func (t *ExpectationTemplate) Never() *ExpectationTemplate {
	t.proto.Never()

	return t
}

// Return configures the response copied onto each promoted instance.
func (t *ExpectationTemplate) Return(values ...any) *ExpectationTemplate {
	t.proto.Return(values...)

	return t
}

// Invoke configures a computed response; see ExpectationRecord.Invoke.
func (t *ExpectationTemplate) Invoke(fn func(args []any) []any) *ExpectationTemplate {
	t.proto.Invoke(fn)

	return t
}

// Raise configures err as the outcome of every claimed call.
func (t *ExpectationTemplate) Raise(err error) *ExpectationTemplate {
	t.proto.Raise(err)

	return t
}

// CallOriginal passes each claimed call through to the receiving instance's
// captured original implementation.
func (t *ExpectationTemplate) CallOriginal() *ExpectationTemplate {
	t.proto.CallOriginal()

	return t
}
