package core

import (
	"fmt"
	"reflect"
)

// Matcher defines the interface for flexible argument matching.
// Compatible with gomega.GomegaMatcher via duck typing - any type
// implementing Match and FailureMessage will work.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
}

// MatchValue checks if actual matches expected.
// If expected implements the Matcher interface, uses its Match method.
// Otherwise, uses reflect.DeepEqual for comparison.
// Returns (success, failureMessage). If success is true, failureMessage is empty.
func MatchValue(actual, expected any) (bool, string) {
	if matcher, ok := expected.(Matcher); ok {
		success, err := matcher.Match(actual)
		if err != nil {
			return false, err.Error()
		}

		if !success {
			return false, matcher.FailureMessage(actual)
		}

		return true, ""
	}

	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %#v, got %#v", expected, actual)
}

// Any returns a matcher that matches any value.
func Any() Matcher {
	return anyMatcher{}
}

// anyMatcher is the implementation of the Any matcher.
type anyMatcher struct{}

// FailureMessage returns an empty string since Any always matches.
func (anyMatcher) FailureMessage(any) string {
	return ""
}

// Match always returns true - matches any value.
func (anyMatcher) Match(any) (bool, error) {
	return true, nil
}

// isWildcard reports whether a matcher places no constraint on its argument.
// Wildcards rank weakest when argument specificity breaks resolution ties.
func isWildcard(expected any) bool {
	type anything interface {
		MatchesAnything() bool
	}

	if m, ok := expected.(anything); ok {
		return m.MatchesAnything()
	}

	_, ok := expected.(anyMatcher)

	return ok
}
