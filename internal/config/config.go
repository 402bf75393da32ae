// Package config handles configuration and stored credentials for tutorchat.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style"`             // "dark", "light", or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji"`      // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"` // Preserve original line breaks
	RenderMath       bool   `json:"render_math"`       // Rewrite LaTeX delimiters for terminal display
}

// Config represents the user configuration
type Config struct {
	// BackendURL is the base URL of the tutoring backend.
	BackendURL string `json:"backend_url"`
	// Typewriter enables character-by-character reveal of replies in the
	// chat TUI. When disabled, replies appear at once.
	Typewriter bool `json:"typewriter"`
	// TypewriterIntervalMs is the delay between revealed characters.
	TypewriterIntervalMs int `json:"typewriter_interval_ms"`
	// RequestTimeoutSecs bounds every backend call. Expiry is reported as
	// a generic failure, not an auth failure.
	RequestTimeoutSecs int            `json:"request_timeout_secs"`
	CopyToClipboard    bool           `json:"copy_to_clipboard"`
	TUITheme           string         `json:"tui_theme,omitempty"`
	Markdown           MarkdownConfig `json:"markdown,omitempty"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		RenderMath:       true,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BackendURL:           "http://localhost:8000",
		Typewriter:           true,
		TypewriterIntervalMs: 8,
		RequestTimeoutSecs:   30,
		CopyToClipboard:      false,
		TUITheme:             "tokyonight",
		Markdown:             DefaultMarkdownConfig(),
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tutorchat"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory holds credentials
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// LoadConfig loads the configuration from disk
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if config doesn't exist
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	return normalize(cfg), nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// normalize clamps persisted values that would misbehave at runtime.
func normalize(cfg Config) Config {
	if cfg.BackendURL == "" {
		cfg.BackendURL = DefaultConfig().BackendURL
	}
	if cfg.TypewriterIntervalMs <= 0 {
		cfg.TypewriterIntervalMs = DefaultConfig().TypewriterIntervalMs
	}
	if cfg.RequestTimeoutSecs <= 0 {
		cfg.RequestTimeoutSecs = DefaultConfig().RequestTimeoutSecs
	}
	return cfg
}
