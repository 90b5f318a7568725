package standin_test

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/standin/standin"
	"pgregory.net/rapid"
)

// counter is a typical collaborator a test would substitute.
type counter struct {
	total int
}

func (c *counter) Add(n int) int {
	c.total += n

	return c.total
}

// saver has an error-returning signature, for configured-failure coverage.
type saver struct{}

func (saver) Save(name string) error {
	if name == "" {
		return errEmptyName
	}

	return nil
}

var (
	errEmptyName = errors.New("empty name")
	errBoom      = errors.New("boom")
)

// recordingT captures failures instead of stopping the test, so failure
// paths can be asserted on.
type recordingT struct {
	errorLog []string
	fatalLog []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...any) {
	r.errorLog = append(r.errorLog, fmt.Sprintf(format, args...))
}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.fatalLog = append(r.fatalLog, fmt.Sprintf(format, args...))
}

// TestAllowMessage_TypedRoundTrip verifies the full path a generated double
// takes: declare a stub, dispatch the call, fill the typed return slot.
func TestAllowMessage_TypedRoundTrip(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	subject := &counter{}
	standin.AllowMessage(t, subject, "Add", standin.WithReturn(42))

	results, err := standin.Dispatch(t, subject, "Add", 5)

	var got int
	standin.FillReturns(t, results, err, &got)

	g.Expect(got).To(Equal(42))
	g.Expect(subject.total).To(BeZero(), "the real implementation must not run")
}

// TestExpectMessage_Unmet_VerifyFailsNamingTheMessage verifies an unmet
// expectation fails verification with a report that names the message and
// its declaration site.
func TestExpectMessage_Unmet_VerifyFailsNamingTheMessage(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rt := &recordingT{}
	standin.ExpectMessage(rt, &counter{}, "Add")

	standin.Verify(rt)

	g.Expect(rt.fatalLog).To(HaveLen(1))
	g.Expect(rt.fatalLog[0]).To(ContainSubstring("Add"))
	g.Expect(rt.fatalLog[0]).To(ContainSubstring("standin_test.go"))

	standin.Teardown(rt)
}

// TestExpectMessage_Met_VerifyPasses verifies a satisfied expectation
// produces no failure.
func TestExpectMessage_Met_VerifyPasses(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	subject := &counter{}
	standin.ExpectMessage(t, subject, "Add", standin.WithReturn(1))

	_, err := standin.Dispatch(t, subject, "Add", 1)
	g.Expect(err).NotTo(HaveOccurred())

	standin.Verify(t)
}

// TestTeardown_RestoresOriginalBehavior verifies that after Teardown a
// dispatched call reaches the real implementation again.
func TestTeardown_RestoresOriginalBehavior(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	subject := &counter{}
	standin.AllowMessage(t, subject, "Add", standin.WithReturn(100))

	results, err := standin.Dispatch(t, subject, "Add", 5)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(results).To(Equal([]any{100}))

	standin.Teardown(t)

	results, err = standin.Dispatch(t, subject, "Add", 5)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(results).To(Equal([]any{5}), "the real counter should run now")
	g.Expect(subject.total).To(Equal(5))
}

// TestTeardown_WithoutDeclarations_IsANoOp verifies Teardown on a test that
// never declared anything reports nothing.
func TestTeardown_WithoutDeclarations_IsANoOp(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rt := &recordingT{}
	standin.Teardown(rt)

	g.Expect(rt.errorLog).To(BeEmpty())
	g.Expect(rt.fatalLog).To(BeEmpty())
}

// TestRoundTrip_Property proves declare/invoke/reset/redeclare always lands
// on the latest declaration: whatever was stubbed before a Teardown never
// bleeds into the next generation.
func TestRoundTrip_Property(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		first := rapid.IntRange(1, 1000).Draw(rt, "first")
		second := rapid.IntRange(1, 1000).Draw(rt, "second")

		fake := &recordingT{}
		subject := &counter{}

		standin.AllowMessage(fake, subject, "Add", standin.WithReturn(first))
		results, err := standin.Dispatch(fake, subject, "Add", 1)
		if err != nil || results[0] != first {
			rt.Fatalf("first generation: got %v, %v", results, err)
		}

		standin.Teardown(fake)

		standin.AllowMessage(fake, subject, "Add", standin.WithReturn(second))
		results, err = standin.Dispatch(fake, subject, "Add", 1)
		if err != nil || results[0] != second {
			rt.Fatalf("second generation: got %v, %v", results, err)
		}

		standin.Teardown(fake)

		if len(fake.errorLog) != 0 || len(fake.fatalLog) != 0 {
			rt.Fatalf("unexpected failures: %v %v", fake.errorLog, fake.fatalLog)
		}
	})
}

// TestCallSiteInference_PointsAtTheCaller verifies a declaration without an
// explicit site records the test file, not this library's internals.
func TestCallSiteInference_PointsAtTheCaller(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	record := standin.AllowMessage(t, &counter{}, "Add")

	g.Expect(record.Site().Known()).To(BeTrue())
	g.Expect(record.Site().File).To(ContainSubstring("standin_test.go"))
}

// TestWithCallSite_OverridesInference verifies DSL layers can pin the
// recorded site.
func TestWithCallSite_OverridesInference(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	record := standin.ExpectMessage(t, &counter{}, "Add",
		standin.WithCallSite("dsl.go", 99), standin.WithReturn(0))

	g.Expect(record.Site()).To(Equal(standin.CallSite{File: "dsl.go", Line: 99}))

	standin.Teardown(t)
}

// TestDispatch_Unexpected_FailsTheTest verifies an unhandled message fails
// immediately with a diagnostic naming subject and message.
func TestDispatch_Unexpected_FailsTheTest(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rt := &recordingT{}
	subject := &counter{}
	standin.AllowMessage(rt, subject, "Add", standin.WithReturn(1)).With(7)

	_, err := standin.Dispatch(rt, subject, "Missing")

	g.Expect(err).To(HaveOccurred())
	g.Expect(rt.fatalLog).To(HaveLen(1))
	g.Expect(rt.fatalLog[0]).To(ContainSubstring("Missing"))

	standin.Teardown(rt)
}

// TestDispatch_ConfiguredFailure_ReturnsTheError verifies a Raise response
// comes back as the call's error rather than failing the test.
func TestDispatch_ConfiguredFailure_ReturnsTheError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	subject := saver{}
	standin.AllowMessage(t, subject, "Save").Raise(errBoom)

	results, err := standin.Dispatch(t, subject, "Save", "name")
	g.Expect(err).To(MatchError(errBoom))

	var saveErr error
	standin.FillReturns(t, results, err, &saveErr)
	g.Expect(saveErr).To(MatchError(errBoom))
}

// TestFillReturns_ZeroFillsMissingResults verifies out slots beyond the
// result list keep their zero values.
func TestFillReturns_ZeroFillsMissingResults(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	got := 7

	var gotErr error

	standin.FillReturns(t, nil, nil, &got, &gotErr)

	g.Expect(got).To(Equal(7), "slots without results are left alone")
	g.Expect(gotErr).To(Succeed())
}

// TestFillReturns_NoErrorSlot_FailsTheTest verifies a dispatch error with
// nowhere to go is reported instead of dropped.
func TestFillReturns_NoErrorSlot_FailsTheTest(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rt := &recordingT{}

	var got int

	standin.FillReturns(rt, nil, errBoom, &got)

	g.Expect(rt.fatalLog).To(HaveLen(1))
	g.Expect(rt.fatalLog[0]).To(ContainSubstring("boom"))
}

// TestSetup_ReturnsTheSameSpacePerTest verifies Setup is idempotent within
// one test.
func TestSetup_ReturnsTheSameSpacePerTest(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(standin.Setup(t)).To(BeIdenticalTo(standin.Setup(t)))
}
