package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"agentcli/internal/definition"
)

const passiveDefinition = `
agents:
  cep_agent:
    name: CEP Agent
    description: Looks up Brazilian postal codes
    tools:
      - get_address:
          name: Get Address
          description: Fetches an address by CEP
          source:
            path: tools/get_address
            entrypoint: main.GetAddress
          parameters:
            - cep:
                description: The postal code to look up
                type: string
                required: true
`

const activeDefinition = `
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
      order_delayed:
        display_name: Order Delayed
        template: order_delayed
        start_condition: When the order is delayed
        source:
          path: rules/order_delayed
          entrypoint: main.OrderDelayed
`

func parseDefinition(t *testing.T, source string) *definition.Definition {
	t.Helper()
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(source), &doc))
	def, verr := definition.Validate(doc)
	require.Nil(t, verr)
	return def
}

func stageResource(t *testing.T, baseDir, relDir, module string, withFixture bool) {
	t.Helper()
	dir := filepath.Join(baseDir, relDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, module+".py"), []byte("# tool code\n"), 0o644))
	if withFixture {
		fixture := "tests:\n  test_1:\n    parameters:\n      cep: \"01311-000\"\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFixtureName), []byte(fixture), 0o644))
	}
}

func TestResolveTool(t *testing.T) {
	def := parseDefinition(t, passiveDefinition)
	baseDir := t.TempDir()
	stageResource(t, baseDir, "tools/get_address", "main", true)

	resolved, err := Resolve(def, baseDir, "cep_agent", "get_address", "")
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	r := resolved[0]
	assert.Equal(t, "cep_agent", r.AgentID)
	assert.Equal(t, "get_address", r.Key)
	assert.Equal(t, "main", r.Module)
	assert.Equal(t, "GetAddress", r.Target)
	assert.Equal(t, filepath.Join(baseDir, "tools/get_address"), r.SourceDir)
	assert.Equal(t, filepath.Join(r.SourceDir, DefaultFixtureName), r.FixturePath)
}

func TestResolveUnknownAgentDoesNotTouchFilesystem(t *testing.T) {
	def := parseDefinition(t, passiveDefinition)

	// A base dir that does not exist: resolution must fail on the agent
	// lookup alone, before any stat call could matter.
	_, err := Resolve(def, "/nonexistent/base", "cep_agnet", "get_address", "")
	require.Error(t, err)

	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, AgentNotFound, rerr.Kind)
	assert.Equal(t, "cep_agent", rerr.Suggestion)
	assert.Contains(t, rerr.Error(), "did you mean")
}

func TestResolveUnknownResource(t *testing.T) {
	def := parseDefinition(t, passiveDefinition)

	_, err := Resolve(def, t.TempDir(), "cep_agent", "get_adress", "")
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ResourceNotFound, rerr.Kind)
	assert.Equal(t, "get_address", rerr.Suggestion)
}

func TestResolvePassiveAgentRequiresResource(t *testing.T) {
	def := parseDefinition(t, passiveDefinition)

	_, err := Resolve(def, t.TempDir(), "cep_agent", "", "")
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, ResourceRequired, rerr.Kind)
	assert.Contains(t, rerr.Error(), "get_address")
}

func TestResolveActiveAgentBatchMode(t *testing.T) {
	def := parseDefinition(t, activeDefinition)
	baseDir := t.TempDir()
	stageResource(t, baseDir, "rules/order_shipped", "main", true)
	stageResource(t, baseDir, "rules/order_delayed", "main", true)

	resolved, err := Resolve(def, baseDir, "order_agent", "", "")
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	// Stable key order.
	assert.Equal(t, "order_delayed", resolved[0].Key)
	assert.Equal(t, "order_shipped", resolved[1].Key)
	require.NotNil(t, resolved[0].Rule)
	assert.Equal(t, "Order Delayed", resolved[0].Rule.DisplayName)
}

func TestResolveMissingSourcePath(t *testing.T) {
	def := parseDefinition(t, passiveDefinition)

	_, err := Resolve(def, t.TempDir(), "cep_agent", "get_address", "")
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, SourcePathMissing, rerr.Kind)
}

func TestResolveMissingModuleFile(t *testing.T) {
	def := parseDefinition(t, passiveDefinition)
	baseDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(baseDir, "tools/get_address"), 0o755))

	_, err := Resolve(def, baseDir, "cep_agent", "get_address", "")
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, SourcePathMissing, rerr.Kind)
	assert.Contains(t, rerr.Error(), "main.py")
}

func TestResolveAdHocSkipsFixtureDiscovery(t *testing.T) {
	def := parseDefinition(t, passiveDefinition)
	baseDir := t.TempDir()
	stageResource(t, baseDir, "tools/get_address", "main", false)

	resolved, err := ResolveAdHoc(def, baseDir, "cep_agent", "get_address")
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Empty(t, resolved[0].FixturePath)
	// Source checks still apply.
	assert.Equal(t, filepath.Join(baseDir, "tools/get_address"), resolved[0].SourceDir)
}

func TestResolveFixtureFallbacks(t *testing.T) {
	def := parseDefinition(t, passiveDefinition)
	baseDir := t.TempDir()
	stageResource(t, baseDir, "tools/get_address", "main", false)

	t.Run("missing fixture", func(t *testing.T) {
		_, err := Resolve(def, baseDir, "cep_agent", "get_address", "")
		var rerr *Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, TestFixtureMissing, rerr.Kind)
		assert.Contains(t, rerr.Error(), "-f/--file")
	})

	t.Run("explicit override wins", func(t *testing.T) {
		override := filepath.Join(baseDir, "custom_tests.yaml")
		require.NoError(t, os.WriteFile(override, []byte("tests: {}\n"), 0o644))

		resolved, err := Resolve(def, baseDir, "cep_agent", "get_address", override)
		require.NoError(t, err)
		assert.Equal(t, override, resolved[0].FixturePath)
	})

	t.Run("missing override is an error", func(t *testing.T) {
		_, err := Resolve(def, baseDir, "cep_agent", "get_address", filepath.Join(baseDir, "nope.yaml"))
		var rerr *Error
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, TestFixtureMissing, rerr.Kind)
	})
}
