package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lmarques/tutorchat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show the current configuration, or change a setting with
'config set <key> <value>'.

Keys:
  backend_url             Backend base URL
  typewriter              Animated reveal of replies (true/false)
  typewriter_interval_ms  Delay between revealed characters
  request_timeout_secs    Per-request deadline
  copy_to_clipboard       Copy replies to the clipboard (true/false)
  tui_theme               Chat color theme (tokyonight, dark)
  markdown.style          Glamour style for reply rendering
  markdown.emoji          Convert :emoji: codes (true/false)
  markdown.math           Rewrite LaTeX math for the terminal (true/false)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigSet(args[0], args[1])
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("backend_url             %s\n", cfg.BackendURL)
	fmt.Printf("typewriter              %t\n", cfg.Typewriter)
	fmt.Printf("typewriter_interval_ms  %d\n", cfg.TypewriterIntervalMs)
	fmt.Printf("request_timeout_secs    %d\n", cfg.RequestTimeoutSecs)
	fmt.Printf("copy_to_clipboard       %t\n", cfg.CopyToClipboard)
	fmt.Printf("tui_theme               %s\n", cfg.TUITheme)
	fmt.Printf("markdown.style          %s\n", cfg.Markdown.Style)
	fmt.Printf("markdown.emoji          %t\n", cfg.Markdown.EnableEmoji)
	fmt.Printf("markdown.preserve_newlines  %t\n", cfg.Markdown.PreserveNewLines)
	fmt.Printf("markdown.math           %t\n", cfg.Markdown.RenderMath)
	return nil
}

func runConfigSet(key, value string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	switch key {
	case "backend_url":
		cfg.BackendURL = value
	case "typewriter":
		cfg.Typewriter, err = parseBool(value)
	case "typewriter_interval_ms":
		cfg.TypewriterIntervalMs, err = parsePositiveInt(value)
	case "request_timeout_secs":
		cfg.RequestTimeoutSecs, err = parsePositiveInt(value)
	case "copy_to_clipboard":
		cfg.CopyToClipboard, err = parseBool(value)
	case "tui_theme":
		cfg.TUITheme = value
	case "markdown.style":
		cfg.Markdown.Style = value
	case "markdown.emoji":
		cfg.Markdown.EnableEmoji, err = parseBool(value)
	case "markdown.preserve_newlines":
		cfg.Markdown.PreserveNewLines, err = parseBool(value)
	case "markdown.math":
		cfg.Markdown.RenderMath, err = parseBool(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return err
	}

	if err := config.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

func parseBool(value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("expected true or false, got %q", value)
	}
	return b, nil
}

func parsePositiveInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("expected a positive number, got %q", value)
	}
	return n, nil
}
