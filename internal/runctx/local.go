package runctx

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	// CredentialsFileName is the local secrets file in a resource's source
	// directory, key=value per line.
	CredentialsFileName = ".env"
	// GlobalsFileName is the local constants file, same format.
	GlobalsFileName = ".globals"
)

// Local holds the values read from a resource's local override files. Both
// maps are empty when the files do not exist; the files are a development
// convenience, not a requirement.
type Local struct {
	Credentials map[string]string
	Globals     map[string]string
}

// LoadLocal reads the .env and .globals files from the resource's source
// directory. Unreadable or malformed files are treated as absent, matching
// the merge semantics of an optional layer.
func LoadLocal(sourceDir string) Local {
	return Local{
		Credentials: readKeyValueFile(filepath.Join(sourceDir, CredentialsFileName)),
		Globals:     readKeyValueFile(filepath.Join(sourceDir, GlobalsFileName)),
	}
}

func readKeyValueFile(path string) map[string]string {
	if _, err := os.Stat(path); err != nil {
		return map[string]string{}
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return map[string]string{}
	}
	return values
}
