// Package store persists CLI session state (auth token, active project,
// endpoint overrides) in a YAML file under the user's home directory.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the store location relative to the home directory.
const DefaultFileName = ".agentcli.yaml"

const envPrefix = "AGENTCLI"

// Defaults for the hosted platform. Every one of them can be overridden in
// the store file or through AGENTCLI_* environment variables.
const (
	DefaultCLIBaseURL       = "https://cli.cloud.weni.ai"
	DefaultPlatformBaseURL  = "https://api.weni.ai"
	DefaultKeycloakURL      = "https://accounts.weni.ai/auth"
	DefaultKeycloakRealm    = "weni"
	DefaultKeycloakClientID = "weni-cli"
)

// Data is the persisted structure of the store file.
type Data struct {
	Token            string `yaml:"token,omitempty"`
	ProjectUUID      string `yaml:"project_uuid,omitempty"`
	CLIBaseURL       string `yaml:"cli_base_url,omitempty"`
	PlatformBaseURL  string `yaml:"platform_base_url,omitempty"`
	KeycloakURL      string `yaml:"keycloak_url,omitempty"`
	KeycloakRealm    string `yaml:"keycloak_realm,omitempty"`
	KeycloakClientID string `yaml:"keycloak_client_id,omitempty"`
}

// envOverrides are read on every Settings call so a single invocation can be
// pointed at a staging environment without touching the store file.
type envOverrides struct {
	Token            string `envconfig:"TOKEN"`
	ProjectUUID      string `envconfig:"PROJECT_UUID"`
	CLIBaseURL       string `envconfig:"CLI_BASE_URL"`
	PlatformBaseURL  string `envconfig:"PLATFORM_BASE_URL"`
	KeycloakURL      string `envconfig:"KEYCLOAK_URL"`
	KeycloakRealm    string `envconfig:"KEYCLOAK_REALM"`
	KeycloakClientID string `envconfig:"KEYCLOAK_CLIENT_ID"`
}

// Settings is the effective configuration after merging defaults, the store
// file, and environment overrides, in that order.
type Settings struct {
	Token            string
	ProjectUUID      string
	CLIBaseURL       string
	PlatformBaseURL  string
	KeycloakURL      string
	KeycloakRealm    string
	KeycloakClientID string
}

// Store reads and writes the session file.
type Store struct {
	filePath string
}

// New creates a store backed by filePath.
func New(filePath string) *Store {
	return &Store{filePath: filePath}
}

// NewDefault places the store file in the user's home directory.
func NewDefault() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return New(filepath.Join(home, DefaultFileName)), nil
}

// Load reads the store file. A missing file yields empty data.
func (s *Store) Load() (*Data, error) {
	content, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return &Data{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var data Data
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal store file: %w", err)
	}
	return &data, nil
}

// Save writes the store file, creating its directory if needed. The file
// holds a bearer token, hence the restrictive mode.
func (s *Store) Save(data *Data) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal store file: %w", err)
	}
	if err := os.WriteFile(s.filePath, content, 0600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return nil
}

// SetToken stores a fresh access token.
func (s *Store) SetToken(token string) error {
	return s.update(func(d *Data) { d.Token = token })
}

// SetProjectUUID stores the active project.
func (s *Store) SetProjectUUID(uuid string) error {
	return s.update(func(d *Data) { d.ProjectUUID = uuid })
}

func (s *Store) update(apply func(*Data)) error {
	data, err := s.Load()
	if err != nil {
		return err
	}
	apply(data)
	return s.Save(data)
}

// Settings resolves the effective configuration: built-in defaults, then the
// store file, then AGENTCLI_* environment variables.
func (s *Store) Settings() (*Settings, error) {
	data, err := s.Load()
	if err != nil {
		return nil, err
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	settings := &Settings{
		Token:            pick(env.Token, data.Token, ""),
		ProjectUUID:      pick(env.ProjectUUID, data.ProjectUUID, ""),
		CLIBaseURL:       pick(env.CLIBaseURL, data.CLIBaseURL, DefaultCLIBaseURL),
		PlatformBaseURL:  pick(env.PlatformBaseURL, data.PlatformBaseURL, DefaultPlatformBaseURL),
		KeycloakURL:      pick(env.KeycloakURL, data.KeycloakURL, DefaultKeycloakURL),
		KeycloakRealm:    pick(env.KeycloakRealm, data.KeycloakRealm, DefaultKeycloakRealm),
		KeycloakClientID: pick(env.KeycloakClientID, data.KeycloakClientID, DefaultKeycloakClientID),
	}
	return settings, nil
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
