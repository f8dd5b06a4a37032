// Package scaffold writes the starter project files created by `agentcli
// init`: a sample definition plus one working tool with its test fixture.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed templates
var templates embed.FS

// DefinitionFileName is the sample definition written to the project root.
const DefinitionFileName = "agent_definition.yaml"

const toolDir = "tools/order_status"

// Created lists files written by Generate, relative to the base directory.
var Created = []string{
	DefinitionFileName,
	toolDir + "/main.py",
	toolDir + "/test_definition.yaml",
}

// Generate writes the sample project into baseDir. Existing files are left
// untouched and reported as an error so init never clobbers real work.
func Generate(baseDir string) error {
	plan := map[string]string{
		"templates/agent_definition.yaml": filepath.Join(baseDir, DefinitionFileName),
		"templates/main.py":               filepath.Join(baseDir, toolDir, "main.py"),
		"templates/test_definition.yaml":  filepath.Join(baseDir, toolDir, "test_definition.yaml"),
	}

	for _, dest := range plan {
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", dest)
		}
	}

	for src, dest := range plan {
		content, err := templates.ReadFile(src)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", src, err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, content, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
	}
	return nil
}
