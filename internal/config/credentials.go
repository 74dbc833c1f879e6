package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credentials is the cached login state written after a successful token
// exchange. Stored as TOML next to the configuration file, mode 0600.
type Credentials struct {
	Account CredentialsAccount `toml:"account"`
}

// CredentialsAccount holds the cached token for one account.
type CredentialsAccount struct {
	Username string `toml:"username"`
	Token    string `toml:"token"`
}

// DefaultCredentialsPath returns the conventional credentials file location.
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sshweaver-credentials.toml"
	}
	return filepath.Join(home, ".config", "sshweaver", "credentials.toml")
}

// LoadCredentials reads cached credentials from path. A missing file is not
// an error; it returns empty credentials.
func LoadCredentials(path string) (*Credentials, error) {
	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		if os.IsNotExist(err) {
			return &Credentials{}, nil
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return &creds, nil
}

// SaveCredentials writes creds to path with owner-only permissions,
// creating the parent directory if needed.
func SaveCredentials(path string, creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening credentials file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(creds); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}
