package commands

import (
	"fmt"
	"time"

	"github.com/lmarques/tutorchat/internal/api"
	"github.com/lmarques/tutorchat/internal/config"
)

// backendURL resolves the backend base URL from the flag or config.
func backendURL(cfg config.Config) string {
	if backendFlag != "" {
		return backendFlag
	}
	return cfg.BackendURL
}

// newBackendClient loads config and stored credentials and builds an
// authenticated client. Returns ErrNotLoggedIn (wrapped) when no valid
// credentials are on disk.
func newBackendClient() (*api.Client, config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to load config: %w", err)
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, cfg, err
	}
	if err := config.ValidateCredentials(creds); err != nil {
		return nil, cfg, err
	}

	base := backendURL(cfg)
	tokens := api.NewCredentialsTokenSource(base, creds)

	client, err := api.NewClient(base, tokens,
		api.WithTimeout(time.Duration(cfg.RequestTimeoutSecs)*time.Second))
	if err != nil {
		return nil, cfg, err
	}

	return client, cfg, nil
}
