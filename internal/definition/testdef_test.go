package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTestDefinition(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "test_definition.yaml", `
tests:
  test_3:
    parameters:
      cep: "01311-000"
    credentials:
      api_key: local-key
  test_1:
    parameters:
      cep: "22041-080"
  test_2: {}
`)
	td, err := LoadTestDefinition(path)
	require.NoError(t, err)
	require.Len(t, td.Cases, 3)

	// Declared order, not lexical order.
	assert.Equal(t, "test_3", td.Cases[0].ID)
	assert.Equal(t, "test_1", td.Cases[1].ID)
	assert.Equal(t, "test_2", td.Cases[2].ID)

	assert.Equal(t, "01311-000", td.Cases[0].Parameters["cep"])
	assert.Equal(t, "local-key", td.Cases[0].Credentials["api_key"])
	assert.Empty(t, td.Cases[2].Parameters)
}

func TestLoadTestDefinitionMissingTestsKey(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "cases: {}")
	_, err := LoadTestDefinition(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'tests'")
}

func TestLoadTestDefinitionEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.yaml", "tests: {}")
	_, err := LoadTestDefinition(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no test cases")
}
