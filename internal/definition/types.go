package definition

import (
	"github.com/gosimple/slug"
)

// AgentKind discriminates between the two agent shapes a definition may
// declare. The kind is decided once during validation; downstream code never
// re-inspects the raw document to figure out what an agent is.
type AgentKind string

const (
	// KindPassive agents expose tools (or skills, the legacy name) that the
	// platform invokes on demand.
	KindPassive AgentKind = "passive"
	// KindActive agents react to condition-triggered rules and may declare a
	// pre-processing step.
	KindActive AgentKind = "active"
)

// Parameter types accepted by the platform.
var ParameterTypes = []string{"string", "number", "integer", "boolean", "array", "object"}

// Constant types accepted by the platform.
var ConstantTypes = []string{"text", "select", "radio", "checkbox"}

const (
	// MaxAgentNameLength is the platform limit for an agent display name.
	MaxAgentNameLength = 128
	// MaxResourceNameLength is the platform limit for a tool, skill or rule
	// name, which becomes an external template name on push.
	MaxResourceNameLength = 53
	// MinInstructionLength applies to every instruction and guardrail entry.
	MinInstructionLength = 40
)

// Definition is the fully validated, typed view of one agent definition
// document. It is immutable after validation.
type Definition struct {
	Agents map[string]*AgentSpec
}

// Agent returns the agent with the given id, or nil.
func (d *Definition) Agent(id string) *AgentSpec {
	return d.Agents[id]
}

// AgentIDs returns all declared agent ids, unordered.
func (d *Definition) AgentIDs() []string {
	ids := make([]string, 0, len(d.Agents))
	for id := range d.Agents {
		ids = append(ids, id)
	}
	return ids
}

// AgentSpec is one agent entry in the definition document.
type AgentSpec struct {
	ID           string
	Name         string
	Slug         string
	Description  string
	Instructions []string
	Guardrails   []string
	Credentials  []CredentialSpec
	Constants    map[string]ConstantSpec

	Kind AgentKind

	// Passive agents only.
	Tools []*ResourceSpec

	// Active agents only.
	Rules         map[string]*RuleSpec
	PreProcessing *PreProcessingSpec
}

// Resource returns the tool or rule with the given key, or nil.
func (a *AgentSpec) Resource(key string) *ResourceSpec {
	switch a.Kind {
	case KindPassive:
		for _, t := range a.Tools {
			if t.Key == key {
				return t
			}
		}
	case KindActive:
		if r, ok := a.Rules[key]; ok {
			return &r.ResourceSpec
		}
	}
	return nil
}

// ResourceKeys returns the keys of all tools or rules declared by the agent.
func (a *AgentSpec) ResourceKeys() []string {
	switch a.Kind {
	case KindPassive:
		keys := make([]string, 0, len(a.Tools))
		for _, t := range a.Tools {
			keys = append(keys, t.Key)
		}
		return keys
	case KindActive:
		keys := make([]string, 0, len(a.Rules))
		for k := range a.Rules {
			keys = append(keys, k)
		}
		return keys
	}
	return nil
}

// SourceSpec points at the user code backing a tool, rule or pre-processing
// step. Entrypoint is a two-part "module.Target" reference resolved relative
// to Path.
type SourceSpec struct {
	Path       string
	Entrypoint string
	PathTest   string
}

// ResourceSpec describes one unit of user code (a tool or skill for passive
// agents, the code half of a rule for active ones).
type ResourceSpec struct {
	Key         string
	Slug        string
	Name        string
	Description string
	Source      SourceSpec
	Parameters  []ParameterSpec
}

// Parameter returns the declared parameter with the given name, or nil.
func (r *ResourceSpec) Parameter(name string) *ParameterSpec {
	for i := range r.Parameters {
		if r.Parameters[i].Name == name {
			return &r.Parameters[i]
		}
	}
	return nil
}

// ParameterSpec declares one input of a resource.
type ParameterSpec struct {
	Name         string
	Description  string
	Type         string
	Required     bool
	ContactField bool
	Default      any
}

// CredentialSpec declares an agent-level secret the user configures on the
// platform.
type CredentialSpec struct {
	Key            string
	Label          string
	Placeholder    string
	IsConfidential bool
}

// ConstantOption is one selectable option of a select, radio or checkbox
// constant.
type ConstantOption struct {
	Label string
	Value string
}

// ConstantSpec declares an agent-level non-secret configurable. The Type
// field tags the variant: "text" carries MaxLength, the option variants carry
// Options.
type ConstantSpec struct {
	Key       string
	Type      string
	Label     string
	Default   any
	Required  bool
	MaxLength int
	Options   []ConstantOption
}

// RuleSpec is a condition-triggered resource of an active agent.
type RuleSpec struct {
	ResourceSpec
	DisplayName    string
	Template       string
	StartCondition string
}

// PreProcessingSpec is the optional pre-processing step of an active agent.
type PreProcessingSpec struct {
	Source             SourceSpec
	ResultExamplesFile string
}

// Slugify derives the platform-facing slug for a display name.
func Slugify(name string) string {
	return slug.Make(name)
}
