// Package resolver locates the source directory, entrypoint and test fixture
// of the resources named on the command line, against a validated definition.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"agentcli/internal/definition"
)

// DefaultFixtureName is the conventional test fixture filename looked up in a
// resource's source directory when the definition declares no path_test and
// no override is given.
const DefaultFixtureName = "test_definition.yaml"

// ResolvedResource is one executable unit ready for the harness: its source
// directory on disk, the split entrypoint and the fixture file to draw test
// cases from.
type ResolvedResource struct {
	AgentID string
	Agent   *definition.AgentSpec
	Key     string
	Spec    *definition.ResourceSpec
	// Rule is set when the resource is a rule of an active agent.
	Rule *definition.RuleSpec

	SourceDir   string
	Module      string
	Target      string
	ModuleFile  string
	FixturePath string
}

// Resolve locates the requested resource(s) of an agent. With an empty
// resourceID an active agent resolves to all of its rules (batch mode) while
// a passive agent is an error, since a specific tool must be named. The
// fixtureOverride, when non-empty, replaces fixture discovery for every
// resolved resource.
//
// baseDir anchors the relative source paths of the definition, conventionally
// the directory containing the definition file.
func Resolve(def *definition.Definition, baseDir, agentID, resourceID, fixtureOverride string) ([]*ResolvedResource, error) {
	return resolve(def, baseDir, agentID, resourceID, fixtureOverride, true)
}

// ResolveAdHoc locates resources without requiring a test fixture. Used when
// the single test case is synthesized from command-line values; FixturePath
// is left empty on the results.
func ResolveAdHoc(def *definition.Definition, baseDir, agentID, resourceID string) ([]*ResolvedResource, error) {
	return resolve(def, baseDir, agentID, resourceID, "", false)
}

func resolve(def *definition.Definition, baseDir, agentID, resourceID, fixtureOverride string, withFixture bool) ([]*ResolvedResource, error) {
	agent := def.Agent(agentID)
	if agent == nil {
		return nil, &Error{
			Kind:       AgentNotFound,
			ID:         agentID,
			Message:    fmt.Sprintf("agent %q not found in definition", agentID),
			Suggestion: closestMatch(agentID, def.AgentIDs()),
		}
	}

	if resourceID == "" {
		if agent.Kind == definition.KindPassive {
			return nil, &Error{
				Kind:    ResourceRequired,
				ID:      agentID,
				Message: fmt.Sprintf("agent %q is passive: a tool must be named (one of: %s)", agentID, strings.Join(agent.ResourceKeys(), ", ")),
			}
		}
		// Batch mode: every rule of the active agent, in stable key order.
		keys := agent.ResourceKeys()
		sort.Strings(keys)
		resolved := make([]*ResolvedResource, 0, len(keys))
		for _, key := range keys {
			r, err := resolveOne(agent, agentID, key, baseDir, fixtureOverride, withFixture)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, r)
		}
		return resolved, nil
	}

	r, err := resolveOne(agent, agentID, resourceID, baseDir, fixtureOverride, withFixture)
	if err != nil {
		return nil, err
	}
	return []*ResolvedResource{r}, nil
}

func resolveOne(agent *definition.AgentSpec, agentID, resourceID, baseDir, fixtureOverride string, withFixture bool) (*ResolvedResource, error) {
	spec := agent.Resource(resourceID)
	if spec == nil {
		return nil, &Error{
			Kind:       ResourceNotFound,
			ID:         resourceID,
			Message:    fmt.Sprintf("resource %q not found in agent %q", resourceID, agentID),
			Suggestion: closestMatch(resourceID, agent.ResourceKeys()),
		}
	}

	r := &ResolvedResource{
		AgentID: agentID,
		Agent:   agent,
		Key:     resourceID,
		Spec:    spec,
	}
	if agent.Kind == definition.KindActive {
		r.Rule = agent.Rules[resourceID]
	}

	r.SourceDir = spec.Source.Path
	if !filepath.IsAbs(r.SourceDir) {
		r.SourceDir = filepath.Join(baseDir, r.SourceDir)
	}
	if info, err := os.Stat(r.SourceDir); err != nil || !info.IsDir() {
		return nil, &Error{
			Kind:    SourcePathMissing,
			ID:      resourceID,
			Message: fmt.Sprintf("source path %q of resource %q does not exist", spec.Source.Path, resourceID),
		}
	}

	// The entrypoint format was checked during validation; the target symbol
	// itself is only looked up at execution time so user code is imported
	// exactly once, by the child process.
	module, target, ok := strings.Cut(spec.Source.Entrypoint, ".")
	if !ok {
		return nil, &Error{
			Kind:    SourcePathMissing,
			ID:      resourceID,
			Message: fmt.Sprintf("entrypoint %q of resource %q is not a two-part reference", spec.Source.Entrypoint, resourceID),
		}
	}
	r.Module, r.Target = module, target
	r.ModuleFile = filepath.Join(r.SourceDir, module+".py")
	if _, err := os.Stat(r.ModuleFile); err != nil {
		return nil, &Error{
			Kind:    SourcePathMissing,
			ID:      resourceID,
			Message: fmt.Sprintf("entrypoint module file %q of resource %q does not exist", module+".py", resourceID),
		}
	}

	if withFixture {
		fixture, err := resolveFixture(r, fixtureOverride)
		if err != nil {
			return nil, err
		}
		r.FixturePath = fixture
	}
	return r, nil
}

// resolveFixture picks the test fixture: explicit override, then the
// definition's path_test, then the conventional file in the source directory.
func resolveFixture(r *ResolvedResource, override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", &Error{
				Kind:    TestFixtureMissing,
				ID:      r.Key,
				Message: fmt.Sprintf("test definition file %q does not exist", override),
			}
		}
		return override, nil
	}

	candidate := filepath.Join(r.SourceDir, DefaultFixtureName)
	if r.Spec.Source.PathTest != "" {
		candidate = filepath.Join(r.SourceDir, r.Spec.Source.PathTest)
	}
	if _, err := os.Stat(candidate); err != nil {
		return "", &Error{
			Kind:    TestFixtureMissing,
			ID:      r.Key,
			Message: fmt.Sprintf("no test definition found for resource %q (looked for %q); use -f/--file to point at one", r.Key, candidate),
		}
	}
	return candidate, nil
}
