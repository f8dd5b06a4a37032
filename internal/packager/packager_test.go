package packager

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func archiveNames(t *testing.T, archivePath string) []string {
	t.Helper()
	r, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func TestArchiveCollectsSourceTree(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "get_address.py"), "def run():\n    pass\n")
	writeFile(t, filepath.Join(src, "requirements.txt"), "requests\n")
	writeFile(t, filepath.Join(src, "helpers", "format.py"), "X = 1\n")

	archivePath, err := Archive("get_address", src, t.TempDir())
	require.NoError(t, err)

	names := archiveNames(t, archivePath)
	assert.ElementsMatch(t, []string{
		"get_address.py",
		"requirements.txt",
		"helpers/format.py",
	}, names)
}

func TestArchiveSkipsCachesAndStaleArchives(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "tool.py"), "pass\n")
	writeFile(t, filepath.Join(src, "__pycache__", "tool.cpython-312.pyc"), "binary")
	writeFile(t, filepath.Join(src, "tool.zip"), "stale")

	archivePath, err := Archive("tool", src, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []string{"tool.py"}, archiveNames(t, archivePath))
}

func TestArchiveMissingSourceFolder(t *testing.T) {
	_, err := Archive("tool", filepath.Join(t.TempDir(), "nope"), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
