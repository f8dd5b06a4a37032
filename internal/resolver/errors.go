package resolver

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ErrorKind classifies resolution failures. All of them are fatal for the
// whole run: nothing is executed once resolution fails.
type ErrorKind string

const (
	AgentNotFound      ErrorKind = "agent_not_found"
	ResourceNotFound   ErrorKind = "resource_not_found"
	ResourceRequired   ErrorKind = "resource_required"
	SourcePathMissing  ErrorKind = "source_path_missing"
	TestFixtureMissing ErrorKind = "test_fixture_missing"
)

// Error is a resolution failure naming the offending identifier. Suggestion
// holds the closest known identifier when one is similar enough to be worth
// mentioning.
type Error struct {
	Kind       ErrorKind
	ID         string
	Message    string
	Suggestion string
}

func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (did you mean %q?)", e.Message, e.Suggestion)
	}
	return e.Message
}

// closestMatch returns the candidate most similar to id, or "" when nothing
// comes close enough.
func closestMatch(id string, candidates []string) string {
	const threshold = 0.6
	best, bestRatio := "", threshold
	for _, candidate := range candidates {
		m := difflib.NewMatcher(strings.Split(id, ""), strings.Split(candidate, ""))
		if r := m.Ratio(); r >= bestRatio {
			best, bestRatio = candidate, r
		}
	}
	return best
}
