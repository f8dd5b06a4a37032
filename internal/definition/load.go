package definition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads, parses and validates an agent definition file. The returned
// Definition is fully typed; any schema violation, including the cross-file
// pre-processing examples check, is reported as a *ValidationError carrying
// every violation found.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse definition file: %w", err)
	}

	def, verr := Validate(doc)
	if verr != nil {
		return nil, verr
	}

	// Cross-file checks need the definition's directory as the base for
	// relative paths. They are kept out of Validate so it stays free of I/O.
	if errs := checkExampleFiles(def, filepath.Dir(path)); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return def, nil
}

// checkExampleFiles verifies that every declared result_examples_file parses
// as a JSON array of objects each carrying "urn" and "data".
func checkExampleFiles(def *Definition, baseDir string) []FieldError {
	var errs []FieldError
	for id, agent := range def.Agents {
		if agent.PreProcessing == nil || agent.PreProcessing.ResultExamplesFile == "" {
			continue
		}
		path := "agents." + id + ".pre_processing.result_examples_file"
		file := agent.PreProcessing.ResultExamplesFile
		if !filepath.IsAbs(file) {
			file = filepath.Join(baseDir, file)
		}

		data, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("cannot read %q: %v", agent.PreProcessing.ResultExamplesFile, err)})
			continue
		}
		var examples []map[string]any
		if err := json.Unmarshal(data, &examples); err != nil {
			errs = append(errs, FieldError{Path: path, Message: "must be a JSON array of objects"})
			continue
		}
		for i, example := range examples {
			if _, ok := example["urn"]; !ok {
				errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("example at index %d is missing 'urn'", i)})
			}
			if _, ok := example["data"]; !ok {
				errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf("example at index %d is missing 'data'", i)})
			}
		}
	}
	return errs
}
