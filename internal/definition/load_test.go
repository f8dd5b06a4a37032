package definition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const activeAgentDefinition = `
agents:
  order_agent:
    name: Order Agent
    description: Reacts to order status changes
    rules:
      order_shipped:
        display_name: Order Shipped
        template: order_shipped
        start_condition: When the order has been shipped
        source:
          path: rules/order_shipped
          entrypoint: main.OrderShipped
    pre_processing:
      source:
        path: preprocessing
        entrypoint: main.PreProcess
      result_examples_file: examples.json
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidatesExampleFiles(t *testing.T) {
	dir := t.TempDir()
	defPath := writeFile(t, dir, "agents.yaml", activeAgentDefinition)

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(defPath)
		require.Error(t, err)
		verr, ok := err.(*ValidationError)
		require.True(t, ok)
		assert.Contains(t, verr.Errors[0].Path, "result_examples_file")
	})

	t.Run("not an array", func(t *testing.T) {
		writeFile(t, dir, "examples.json", `{"urn": "x"}`)
		_, err := Load(defPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JSON array")
	})

	t.Run("entry missing urn and data", func(t *testing.T) {
		writeFile(t, dir, "examples.json", `[{"urn": "tel:123", "data": {}}, {"other": 1}]`)
		_, err := Load(defPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index 1 is missing 'urn'")
		assert.Contains(t, err.Error(), "index 1 is missing 'data'")
	})

	t.Run("well formed", func(t *testing.T) {
		writeFile(t, dir, "examples.json", `[{"urn": "tel:123", "data": {"status": "shipped"}}]`)
		def, err := Load(defPath)
		require.NoError(t, err)
		assert.Equal(t, KindActive, def.Agent("order_agent").Kind)
	})
}

func TestLoadRejectsUnparsableYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "agents.yaml", "agents: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
