// Package runctx builds the invocation context a resource is executed with:
// parameter, credential and constant values merged from the test case, local
// override files and declared defaults.
package runctx

import (
	"fmt"
	"sort"
	"strings"

	"agentcli/internal/definition"
	"agentcli/internal/resolver"
)

// InvocationContext is the immutable value set for one execution of one test
// case. It is built right before the execution and discarded afterwards.
type InvocationContext struct {
	Parameters  map[string]any    `json:"parameters"`
	Credentials map[string]string `json:"credentials"`
	Globals     map[string]string `json:"globals"`
}

// Overrides carries explicit CLI-level values, the highest-precedence layer.
type Overrides struct {
	Parameters  map[string]any
	Credentials map[string]string
	Globals     map[string]string
}

// BuildError reports required parameters that had no value at any precedence
// level. It is raised before the child process is ever spawned, so a missing
// input never surfaces as a runtime failure of the unit under test.
type BuildError struct {
	Resource string
	TestCase string
	Missing  []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("test case %q of resource %q is missing required parameters: %s",
		e.TestCase, e.Resource, strings.Join(e.Missing, ", "))
}

// Build merges values for one test case. Precedence, highest first: CLI
// overrides, test-case values, local override files (.env for credentials,
// .globals for constants), declared defaults.
func Build(res *resolver.ResolvedResource, tc definition.TestCase, local Local, cli Overrides) (*InvocationContext, error) {
	ctx := &InvocationContext{
		Parameters:  map[string]any{},
		Credentials: map[string]string{},
		Globals:     map[string]string{},
	}

	// Parameters: declared defaults first, then the test case, then CLI.
	for _, p := range res.Spec.Parameters {
		if p.Default != nil {
			ctx.Parameters[p.Name] = p.Default
		}
	}
	for name, value := range tc.Parameters {
		ctx.Parameters[name] = value
	}
	for name, value := range cli.Parameters {
		ctx.Parameters[name] = value
	}

	var missing []string
	for _, p := range res.Spec.Parameters {
		if p.Required {
			if _, ok := ctx.Parameters[p.Name]; !ok {
				missing = append(missing, p.Name)
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &BuildError{Resource: res.Key, TestCase: tc.ID, Missing: missing}
	}

	// Credentials: local .env file, then the test case, then CLI.
	for key, value := range local.Credentials {
		ctx.Credentials[key] = value
	}
	for key, value := range tc.Credentials {
		ctx.Credentials[key] = value
	}
	for key, value := range cli.Credentials {
		ctx.Credentials[key] = value
	}

	// Constants: declared defaults, then the local .globals file, then CLI.
	// Test cases do not carry constants.
	for key, c := range res.Agent.Constants {
		if c.Default != nil {
			ctx.Globals[key] = fmt.Sprintf("%v", c.Default)
		}
	}
	for key, value := range local.Globals {
		ctx.Globals[key] = value
	}
	for key, value := range cli.Globals {
		ctx.Globals[key] = value
	}

	return ctx, nil
}
