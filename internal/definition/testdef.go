package definition

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TestCase is one named entry of a test fixture: the parameter and credential
// values to invoke a resource with. Both maps may be empty.
type TestCase struct {
	ID          string
	Parameters  map[string]any
	Credentials map[string]string
}

// TestDefinition is a parsed test fixture. Cases preserve the order they were
// declared in, which is also the order results are reported in.
type TestDefinition struct {
	Cases []TestCase
}

// LoadTestDefinition reads and parses a test fixture file of the shape
// tests.<id>.{parameters{}, credentials{}}.
func LoadTestDefinition(path string) (*TestDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test definition file: %w", err)
	}

	// Decode through yaml.Node to keep the declared test order; a plain map
	// would lose it.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse test definition file: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, fmt.Errorf("test definition file %s is empty", path)
	}

	doc := root.Content[0]
	tests := mappingValue(doc, "tests")
	if tests == nil {
		return nil, fmt.Errorf("test definition file %s is missing the 'tests' key", path)
	}
	if tests.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("'tests' must be a mapping of test id to test case")
	}

	td := &TestDefinition{}
	seen := map[string]bool{}
	for i := 0; i+1 < len(tests.Content); i += 2 {
		id := tests.Content[i].Value
		if seen[id] {
			return nil, fmt.Errorf("duplicate test case %q", id)
		}
		seen[id] = true

		var body struct {
			Parameters  map[string]any    `yaml:"parameters"`
			Credentials map[string]string `yaml:"credentials"`
		}
		if err := tests.Content[i+1].Decode(&body); err != nil {
			return nil, fmt.Errorf("invalid test case %q: %w", id, err)
		}
		td.Cases = append(td.Cases, TestCase{
			ID:          id,
			Parameters:  body.Parameters,
			Credentials: body.Credentials,
		})
	}
	if len(td.Cases) == 0 {
		return nil, fmt.Errorf("test definition file %s declares no test cases", path)
	}
	return td, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
