package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apierrors "github.com/lmarques/tutorchat/internal/errors"
)

// Credentials holds the bearer tokens issued by the backend's /token
// endpoint. The refresh token outlives the access token and is used to
// retry once after a 401.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	Username     string    `json:"username,omitempty"`
}

// GetCredentialsPath returns the path to the credentials file
func GetCredentialsPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "credentials.json"), nil
}

// ValidateCredentials checks that creds carry a usable access token.
func ValidateCredentials(creds *Credentials) error {
	if creds == nil || creds.AccessToken == "" {
		return apierrors.ErrNotLoggedIn
	}
	return nil
}

// LoadCredentials loads stored credentials from disk. A missing file means
// the user has never logged in and maps to ErrNotLoggedIn.
func LoadCredentials() (*Credentials, error) {
	path, err := GetCredentialsPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	if err := ValidateCredentials(&creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

// SaveCredentials writes credentials to disk with owner-only permissions.
func SaveCredentials(creds *Credentials) error {
	if err := ValidateCredentials(creds); err != nil {
		return err
	}

	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	path := filepath.Join(configDir, "credentials.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}

// ClearCredentials removes stored credentials. Removing a file that is
// already gone is not an error.
func ClearCredentials() error {
	path, err := GetCredentialsPath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}

	return nil
}
