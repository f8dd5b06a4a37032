// Package packager builds the zip archives of resource source folders that
// get uploaded alongside a definition.
package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// skipDirs are build artifacts that never belong in an upload.
var skipDirs = map[string]bool{
	"__pycache__":   true,
	".git":          true,
	".pytest_cache": true,
}

// Archive zips the contents of sourceDir into destDir/<resourceKey>.zip and
// returns the archive path. Entry names are relative to sourceDir. An
// existing archive is replaced.
func Archive(resourceKey, sourceDir, destDir string) (string, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return "", fmt.Errorf("source folder %s not found: %w", sourceDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source path %s is not a folder", sourceDir)
	}

	archivePath := filepath.Join(destDir, resourceKey+".zip")
	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive %s: %w", archivePath, err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		// An archive left behind by a previous run must not nest itself.
		if strings.HasSuffix(d.Name(), ".zip") {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		entry, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", rel, err)
		}
		src, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		defer src.Close()
		_, err = io.Copy(entry, src)
		return err
	})
	if err != nil {
		w.Close()
		return "", fmt.Errorf("failed to archive %s: %w", sourceDir, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	return archivePath, nil
}
