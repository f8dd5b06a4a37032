package definition

import (
	"fmt"
	"strings"
)

// FieldError is a single validation violation, addressed by the dotted path
// of the offending field (e.g. "agents.cep_agent.tools[0].parameters[0].type").
type FieldError struct {
	Path    string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationError aggregates every violation found in one pass over the
// document. The validator never fails fast, so the user sees all problems at
// once.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:", len(e.Errors))
	for _, fe := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(fe.Error())
	}
	return b.String()
}
