package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"agentcli/internal/definition"
)

func TestGenerateWritesWorkingSample(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, Generate(base))

	for _, rel := range Created {
		_, err := os.Stat(filepath.Join(base, rel))
		assert.NoError(t, err, rel)
	}

	// The sample definition must pass our own validator.
	content, err := os.ReadFile(filepath.Join(base, DefinitionFileName))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(content, &doc))
	def, verr := definition.Validate(doc)
	require.Nil(t, verr)
	require.Contains(t, def.Agents, "sample_agent")

	// And the sample fixture must parse as a test definition.
	td, err := definition.LoadTestDefinition(filepath.Join(base, "tools/order_status/test_definition.yaml"))
	require.NoError(t, err)
	assert.Len(t, td.Cases, 2)
}

func TestGenerateRefusesToOverwrite(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, DefinitionFileName), []byte("mine"), 0644))

	err := Generate(base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")

	// The existing file survived.
	content, err := os.ReadFile(filepath.Join(base, DefinitionFileName))
	require.NoError(t, err)
	assert.Equal(t, "mine", string(content))
}
