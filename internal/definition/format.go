package definition

// PushPayload renders the definition into the structure the platform push
// endpoint expects: agents keyed by id, each carrying its slug and its
// resources as an array of objects with key, slug, name, source, description
// and parameters.
func (d *Definition) PushPayload() map[string]any {
	agents := make(map[string]any, len(d.Agents))
	for id, agent := range d.Agents {
		entry := map[string]any{
			"name":        agent.Name,
			"slug":        agent.Slug,
			"description": agent.Description,
		}
		if len(agent.Instructions) > 0 {
			entry["instructions"] = agent.Instructions
		}
		if len(agent.Guardrails) > 0 {
			entry["guardrails"] = agent.Guardrails
		}
		if len(agent.Credentials) > 0 {
			creds := make([]map[string]any, 0, len(agent.Credentials))
			for _, c := range agent.Credentials {
				creds = append(creds, map[string]any{
					"key":             c.Key,
					"label":           c.Label,
					"placeholder":     c.Placeholder,
					"is_confidential": c.IsConfidential,
				})
			}
			entry["credentials"] = creds
		}
		if len(agent.Constants) > 0 {
			consts := make(map[string]any, len(agent.Constants))
			for key, c := range agent.Constants {
				constEntry := map[string]any{
					"type":     c.Type,
					"label":    c.Label,
					"default":  c.Default,
					"required": c.Required,
				}
				if c.Type == "text" {
					constEntry["max_length"] = c.MaxLength
				}
				if len(c.Options) > 0 {
					options := make([]map[string]any, 0, len(c.Options))
					for _, o := range c.Options {
						options = append(options, map[string]any{"label": o.Label, "value": o.Value})
					}
					constEntry["options"] = options
				}
				consts[key] = constEntry
			}
			entry["constants"] = consts
		}

		switch agent.Kind {
		case KindPassive:
			tools := make([]map[string]any, 0, len(agent.Tools))
			for _, t := range agent.Tools {
				tools = append(tools, formatResource(t))
			}
			entry["tools"] = tools
		case KindActive:
			rules := make(map[string]any, len(agent.Rules))
			for key, r := range agent.Rules {
				rule := formatResource(&r.ResourceSpec)
				rule["display_name"] = r.DisplayName
				rule["template"] = r.Template
				rule["start_condition"] = r.StartCondition
				rules[key] = rule
			}
			entry["rules"] = rules
			if agent.PreProcessing != nil {
				pp := map[string]any{
					"source": formatSource(agent.PreProcessing.Source),
				}
				if agent.PreProcessing.ResultExamplesFile != "" {
					pp["result_examples_file"] = agent.PreProcessing.ResultExamplesFile
				}
				entry["pre_processing"] = pp
			}
		}
		agents[id] = entry
	}
	return map[string]any{"agents": agents}
}

func formatResource(r *ResourceSpec) map[string]any {
	entry := map[string]any{
		"key":         r.Key,
		"slug":        r.Slug,
		"name":        r.Name,
		"description": r.Description,
		"source":      formatSource(r.Source),
	}
	if len(r.Parameters) > 0 {
		params := make([]map[string]any, 0, len(r.Parameters))
		for _, p := range r.Parameters {
			param := map[string]any{
				"name":          p.Name,
				"description":   p.Description,
				"type":          p.Type,
				"required":      p.Required,
				"contact_field": p.ContactField,
			}
			if p.Default != nil {
				param["default"] = p.Default
			}
			params = append(params, param)
		}
		entry["parameters"] = params
	}
	return entry
}

func formatSource(s SourceSpec) map[string]any {
	src := map[string]any{
		"path":       s.Path,
		"entrypoint": s.Entrypoint,
	}
	if s.PathTest != "" {
		src["path_test"] = s.PathTest
	}
	return src
}
