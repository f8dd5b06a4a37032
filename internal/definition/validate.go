package definition

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ContactFieldNamePattern constrains parameter names flagged as contact
// fields, which the platform persists against the end-user profile.
var ContactFieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var entrypointPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\.[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a raw parsed YAML document against the full definition
// schema and returns the typed Definition. It accumulates every violation it
// finds instead of stopping at the first one; when the returned error is
// non-nil the Definition is nil and must not be used.
func Validate(doc map[string]any) (*Definition, *ValidationError) {
	v := &validator{}
	def := v.validateRoot(doc)
	if len(v.errs) > 0 {
		return nil, &ValidationError{Errors: v.errs}
	}
	return def, nil
}

type validator struct {
	errs []FieldError
}

func (v *validator) addf(path, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) validateRoot(doc map[string]any) *Definition {
	raw, ok := doc["agents"]
	if !ok || raw == nil {
		v.addf("agents", "missing required key")
		return nil
	}
	agents, ok := raw.(map[string]any)
	if !ok {
		v.addf("agents", "must be a mapping of agent id to agent")
		return nil
	}
	if len(agents) == 0 {
		v.addf("agents", "no agents defined")
		return nil
	}

	def := &Definition{Agents: make(map[string]*AgentSpec, len(agents))}
	for id, rawAgent := range agents {
		path := "agents." + id
		body, ok := rawAgent.(map[string]any)
		if !ok {
			v.addf(path, "must be a mapping")
			continue
		}
		def.Agents[id] = v.validateAgent(path, id, body)
	}
	return def
}

func (v *validator) validateAgent(path, id string, body map[string]any) *AgentSpec {
	agent := &AgentSpec{ID: id}

	agent.Name = v.requireString(path+".name", body["name"])
	// Length limits count characters, not bytes; accented text must not be
	// penalized for its encoding.
	if n := utf8.RuneCountInString(agent.Name); n > MaxAgentNameLength {
		v.addf(path+".name", "must be at most %d characters, got %d", MaxAgentNameLength, n)
	}
	agent.Slug = Slugify(agent.Name)
	agent.Description = v.requireString(path+".description", body["description"])
	agent.Instructions = v.validateTextList(path+".instructions", body["instructions"])
	agent.Guardrails = v.validateTextList(path+".guardrails", body["guardrails"])
	agent.Credentials = v.validateCredentials(path+".credentials", body["credentials"])
	agent.Constants = v.validateConstants(path+".constants", body["constants"])

	tools, hasTools := body["tools"]
	skills, hasSkills := body["skills"]
	rules, hasRules := body["rules"]
	preProcessing, hasPreProcessing := body["pre_processing"]

	if hasTools && hasSkills {
		v.addf(path, "declare either 'tools' or 'skills', not both")
		return agent
	}
	toolsKey := "tools"
	if hasSkills {
		tools, hasTools, toolsKey = skills, true, "skills"
	}

	switch {
	case hasTools && hasRules:
		v.addf(path, "agent cannot declare both '%s' and 'rules': it is either passive (tools) or active (rules)", toolsKey)
	case hasTools:
		agent.Kind = KindPassive
		agent.Tools = v.validateTools(path+"."+toolsKey, tools)
		if hasPreProcessing {
			v.addf(path+".pre_processing", "only active agents (with rules) may declare pre_processing")
		}
	case hasRules:
		agent.Kind = KindActive
		agent.Rules = v.validateRules(path+".rules", rules)
		if hasPreProcessing {
			agent.PreProcessing = v.validatePreProcessing(path+".pre_processing", preProcessing)
		}
	default:
		v.addf(path, "agent must declare either 'tools'/'skills' (passive) or 'rules' (active)")
	}
	return agent
}

// requireString records an error unless val is a non-empty string.
func (v *validator) requireString(path string, val any) string {
	if val == nil {
		v.addf(path, "missing required field")
		return ""
	}
	s, ok := val.(string)
	if !ok {
		v.addf(path, "must be a string")
		return ""
	}
	if strings.TrimSpace(s) == "" {
		v.addf(path, "must not be empty")
	}
	return s
}

// optionalString records an error if val is present but not a string.
func (v *validator) optionalString(path string, val any) string {
	if val == nil {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		v.addf(path, "must be a string")
		return ""
	}
	return s
}

func (v *validator) optionalBool(path string, val any, fallback bool) bool {
	if val == nil {
		return fallback
	}
	b, ok := val.(bool)
	if !ok {
		v.addf(path, "must be a boolean")
		return fallback
	}
	return b
}

// validateTextList checks instruction/guardrail lists: each entry must be a
// string of at least MinInstructionLength characters.
func (v *validator) validateTextList(path string, val any) []string {
	if val == nil {
		return nil
	}
	list, ok := val.([]any)
	if !ok {
		v.addf(path, "must be a list of strings")
		return nil
	}
	out := make([]string, 0, len(list))
	for i, entry := range list {
		entryPath := fmt.Sprintf("%s[%d]", path, i)
		s, ok := entry.(string)
		if !ok {
			v.addf(entryPath, "must be a string")
			continue
		}
		if n := utf8.RuneCountInString(s); n < MinInstructionLength {
			v.addf(entryPath, "must be at least %d characters, got %d", MinInstructionLength, n)
		}
		out = append(out, s)
	}
	return out
}

// validateCredentials checks the credentials list. Each entry is a single-key
// mapping of credential key to its spec.
func (v *validator) validateCredentials(path string, val any) []CredentialSpec {
	if val == nil {
		return nil
	}
	list, ok := val.([]any)
	if !ok {
		v.addf(path, "must be a list")
		return nil
	}
	seen := map[string]bool{}
	out := make([]CredentialSpec, 0, len(list))
	for i, entry := range list {
		entryPath := fmt.Sprintf("%s[%d]", path, i)
		key, body, ok := v.singleKeyEntry(entryPath, entry)
		if !ok {
			continue
		}
		if seen[key] {
			v.addf(entryPath, "duplicate credential key %q", key)
			continue
		}
		seen[key] = true
		cred := CredentialSpec{
			Key:            key,
			Label:          v.requireString(entryPath+".label", body["label"]),
			Placeholder:    v.optionalString(entryPath+".placeholder", body["placeholder"]),
			IsConfidential: v.optionalBool(entryPath+".is_confidential", body["is_confidential"], true),
		}
		out = append(out, cred)
	}
	return out
}

func (v *validator) validateConstants(path string, val any) map[string]ConstantSpec {
	if val == nil {
		return nil
	}
	body, ok := val.(map[string]any)
	if !ok {
		v.addf(path, "must be a mapping of constant key to constant")
		return nil
	}
	out := make(map[string]ConstantSpec, len(body))
	for key, rawConst := range body {
		constPath := path + "." + key
		spec, ok := rawConst.(map[string]any)
		if !ok {
			v.addf(constPath, "must be a mapping")
			continue
		}
		out[key] = v.validateConstant(constPath, key, spec)
	}
	return out
}

func (v *validator) validateConstant(path, key string, body map[string]any) ConstantSpec {
	c := ConstantSpec{Key: key}
	c.Type = v.requireString(path+".type", body["type"])
	if c.Type != "" && !contains(ConstantTypes, c.Type) {
		v.addf(path+".type", "must be one of: %s", strings.Join(ConstantTypes, ", "))
	}
	c.Label = v.requireString(path+".label", body["label"])
	var ok bool
	if c.Default, ok = body["default"]; !ok {
		v.addf(path+".default", "missing required field")
	}
	if raw, ok := body["required"]; !ok {
		v.addf(path+".required", "missing required field")
	} else {
		c.Required = v.optionalBool(path+".required", raw, false)
	}

	switch c.Type {
	case "text":
		raw, ok := body["max_length"]
		if !ok {
			v.addf(path+".max_length", "missing required field for text constants")
			break
		}
		n, ok := toInt(raw)
		if !ok || n <= 0 {
			v.addf(path+".max_length", "must be a positive integer")
			break
		}
		c.MaxLength = n
	case "select", "radio", "checkbox":
		c.Options = v.validateOptions(path+".options", body["options"])
	}
	return c
}

func (v *validator) validateOptions(path string, val any) []ConstantOption {
	if val == nil {
		v.addf(path, "missing required field for option constants")
		return nil
	}
	list, ok := val.([]any)
	if !ok {
		v.addf(path, "must be a list")
		return nil
	}
	if len(list) == 0 {
		v.addf(path, "must not be empty")
		return nil
	}
	out := make([]ConstantOption, 0, len(list))
	for i, entry := range list {
		entryPath := fmt.Sprintf("%s[%d]", path, i)
		body, ok := entry.(map[string]any)
		if !ok {
			v.addf(entryPath, "must be a mapping with 'label' and 'value'")
			continue
		}
		out = append(out, ConstantOption{
			Label: v.requireString(entryPath+".label", body["label"]),
			Value: v.requireString(entryPath+".value", body["value"]),
		})
	}
	return out
}

// validateTools checks the tools/skills list. Each entry is a single-key
// mapping of resource key to its spec; keys must be unique within the agent.
func (v *validator) validateTools(path string, val any) []*ResourceSpec {
	list, ok := val.([]any)
	if !ok {
		v.addf(path, "must be a list")
		return nil
	}
	if len(list) == 0 {
		v.addf(path, "must not be empty")
		return nil
	}
	seen := map[string]bool{}
	out := make([]*ResourceSpec, 0, len(list))
	for i, entry := range list {
		entryPath := fmt.Sprintf("%s[%d]", path, i)
		key, body, ok := v.singleKeyEntry(entryPath, entry)
		if !ok {
			continue
		}
		if seen[key] {
			v.addf(entryPath, "duplicate resource key %q", key)
			continue
		}
		seen[key] = true
		v.checkIdentifier(entryPath, key)
		out = append(out, v.validateResource(entryPath, key, body))
	}
	return out
}

func (v *validator) validateResource(path, key string, body map[string]any) *ResourceSpec {
	r := &ResourceSpec{Key: key}
	r.Name = v.requireString(path+".name", body["name"])
	if n := utf8.RuneCountInString(r.Name); n > MaxResourceNameLength {
		v.addf(path+".name", "must be at most %d characters, got %d", MaxResourceNameLength, n)
	}
	r.Slug = Slugify(r.Name)
	r.Description = v.requireString(path+".description", body["description"])
	r.Source = v.validateSource(path+".source", body["source"], true)
	r.Parameters = v.validateParameters(path+".parameters", body["parameters"])
	return r
}

func (v *validator) validateSource(path string, val any, allowPathTest bool) SourceSpec {
	if val == nil {
		v.addf(path, "missing required field")
		return SourceSpec{}
	}
	body, ok := val.(map[string]any)
	if !ok {
		v.addf(path, "must be a mapping")
		return SourceSpec{}
	}
	src := SourceSpec{
		Path:       v.requireString(path+".path", body["path"]),
		Entrypoint: v.requireString(path+".entrypoint", body["entrypoint"]),
	}
	if src.Entrypoint != "" && !entrypointPattern.MatchString(src.Entrypoint) {
		v.addf(path+".entrypoint", "must be a two-part 'module.Target' reference")
	}
	if allowPathTest {
		src.PathTest = v.optionalString(path+".path_test", body["path_test"])
	} else if _, ok := body["path_test"]; ok {
		v.addf(path+".path_test", "not allowed here")
	}
	return src
}

func (v *validator) validateParameters(path string, val any) []ParameterSpec {
	if val == nil {
		return nil
	}
	list, ok := val.([]any)
	if !ok {
		v.addf(path, "must be a list")
		return nil
	}
	seen := map[string]bool{}
	out := make([]ParameterSpec, 0, len(list))
	for i, entry := range list {
		entryPath := fmt.Sprintf("%s[%d]", path, i)
		name, body, ok := v.singleKeyEntry(entryPath, entry)
		if !ok {
			continue
		}
		if seen[name] {
			v.addf(entryPath, "duplicate parameter %q", name)
			continue
		}
		seen[name] = true
		p := ParameterSpec{Name: name}
		p.Description = v.requireString(entryPath+".description", body["description"])
		p.Type = v.requireString(entryPath+".type", body["type"])
		if p.Type != "" && !contains(ParameterTypes, p.Type) {
			v.addf(entryPath+".type", "must be one of: %s", strings.Join(ParameterTypes, ", "))
		}
		p.Required = v.optionalBool(entryPath+".required", body["required"], false)
		p.ContactField = v.optionalBool(entryPath+".contact_field", body["contact_field"], false)
		if p.ContactField && !ContactFieldNamePattern.MatchString(name) {
			v.addf(entryPath, "contact field parameter name must match %s", ContactFieldNamePattern)
		}
		p.Default = body["default"]
		out = append(out, p)
	}
	return out
}

func (v *validator) validateRules(path string, val any) map[string]*RuleSpec {
	body, ok := val.(map[string]any)
	if !ok {
		v.addf(path, "must be a mapping of rule key to rule")
		return nil
	}
	if len(body) == 0 {
		v.addf(path, "must not be empty")
		return nil
	}
	out := make(map[string]*RuleSpec, len(body))
	for key, rawRule := range body {
		rulePath := path + "." + key
		spec, ok := rawRule.(map[string]any)
		if !ok {
			v.addf(rulePath, "must be a mapping")
			continue
		}
		v.checkIdentifier(rulePath, key)
		out[key] = v.validateRule(rulePath, key, spec)
	}
	return out
}

func (v *validator) validateRule(path, key string, body map[string]any) *RuleSpec {
	r := &RuleSpec{ResourceSpec: ResourceSpec{Key: key}}
	r.DisplayName = v.requireString(path+".display_name", body["display_name"])
	if n := utf8.RuneCountInString(r.DisplayName); n > MaxResourceNameLength {
		v.addf(path+".display_name", "must be at most %d characters, got %d", MaxResourceNameLength, n)
	}
	r.Name = r.DisplayName
	r.Slug = Slugify(r.DisplayName)
	r.Template = v.requireString(path+".template", body["template"])
	// Templates become external template names on the platform.
	if strings.ContainsAny(r.Template, " \t\n") {
		v.addf(path+".template", "must not contain whitespace")
	}
	r.StartCondition = v.requireString(path+".start_condition", body["start_condition"])
	r.Source = v.validateSource(path+".source", body["source"], true)
	r.Parameters = v.validateParameters(path+".parameters", body["parameters"])
	return r
}

func (v *validator) validatePreProcessing(path string, val any) *PreProcessingSpec {
	body, ok := val.(map[string]any)
	if !ok {
		v.addf(path, "must be a mapping")
		return nil
	}
	return &PreProcessingSpec{
		Source:             v.validateSource(path+".source", body["source"], false),
		ResultExamplesFile: v.optionalString(path+".result_examples_file", body["result_examples_file"]),
	}
}

// singleKeyEntry unwraps the {key: {...}} shape used by tool, parameter and
// credential list entries.
func (v *validator) singleKeyEntry(path string, entry any) (string, map[string]any, bool) {
	m, ok := entry.(map[string]any)
	if !ok {
		v.addf(path, "must be a mapping")
		return "", nil, false
	}
	if len(m) != 1 {
		v.addf(path, "must have exactly one key, got %d", len(m))
		return "", nil, false
	}
	for key, val := range m {
		body, ok := val.(map[string]any)
		if !ok {
			v.addf(path+"."+key, "must be a mapping")
			return "", nil, false
		}
		return key, body, true
	}
	return "", nil, false
}

// checkIdentifier rejects keys that cannot serve as external identifiers.
func (v *validator) checkIdentifier(path, key string) {
	if strings.ContainsAny(key, " \t\n") {
		v.addf(path, "key %q must not contain whitespace", key)
	}
}

func contains(set []string, s string) bool {
	for _, entry := range set {
		if entry == s {
			return true
		}
	}
	return false
}

func toInt(val any) (int, bool) {
	switch n := val.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
