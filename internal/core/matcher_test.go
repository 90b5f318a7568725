package core_test

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/standin/standin/internal/core"
	"github.com/standin/standin/match"
)

// TestMatchValue_Literals verifies DeepEqual comparison for plain values.
func TestMatchValue_Literals(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ok, msg := core.MatchValue("a", "a")
	g.Expect(ok).To(BeTrue())
	g.Expect(msg).To(BeEmpty())

	ok, msg = core.MatchValue("a", "b")
	g.Expect(ok).To(BeFalse())
	g.Expect(msg).To(ContainSubstring(`expected "b"`))

	ok, _ = core.MatchValue([]int{1, 2}, []int{1, 2})
	g.Expect(ok).To(BeTrue(), "DeepEqual covers non-comparable values")
}

// TestMatchValue_MatcherDuckTyping verifies anything implementing
// Match/FailureMessage is used as a matcher, including gomega's.
func TestMatchValue_MatcherDuckTyping(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ok, _ := core.MatchValue("hello world", ContainSubstring("world"))
	g.Expect(ok).To(BeTrue())

	ok, msg := core.MatchValue("hello", ContainSubstring("world"))
	g.Expect(ok).To(BeFalse())
	g.Expect(msg).NotTo(BeEmpty())
}

// TestMatchValue_MatcherError verifies a matcher error becomes the failure
// message.
func TestMatchValue_MatcherError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	// gomega's numeric matcher errors on non-numeric actuals
	ok, msg := core.MatchValue("not a number", BeNumerically(">", 0))
	g.Expect(ok).To(BeFalse())
	g.Expect(msg).NotTo(BeEmpty())
}

// TestMatchValue_PackageMatchers verifies this module's own match helpers
// satisfy the duck-typed interface.
func TestMatchValue_PackageMatchers(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ok, _ := core.MatchValue(99, match.BeAny)
	g.Expect(ok).To(BeTrue())

	ok, _ = core.MatchValue(4, match.Satisfy(func(x int) error {
		if x%2 != 0 {
			return errOdd
		}

		return nil
	}))
	g.Expect(ok).To(BeTrue())

	ok, _ = core.MatchValue("s", match.TypeOf[int]())
	g.Expect(ok).To(BeFalse())
}

// TestMatchValue_EqualTo verifies the explicit deep-equality matcher:
// non-comparable values match structurally and a mismatch names both sides.
func TestMatchValue_EqualTo(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ok, _ := core.MatchValue([]string{"a", "b"}, match.EqualTo([]string{"a", "b"}))
	g.Expect(ok).To(BeTrue())

	ok, msg := core.MatchValue([]string{"a"}, match.EqualTo([]string{"a", "b"}))
	g.Expect(ok).To(BeFalse())
	g.Expect(msg).To(ContainSubstring(`expected []string{"a", "b"}`))
}

// TestAny_MatchesEverything verifies the core wildcard matcher.
func TestAny_MatchesEverything(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	for _, v := range []any{nil, 0, "x", []int{1}} {
		ok, msg := core.MatchValue(v, core.Any())
		g.Expect(ok).To(BeTrue())
		g.Expect(msg).To(BeEmpty())
	}
}

var errOdd = errors.New("odd")
