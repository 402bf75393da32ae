package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"

	"github.com/lmarques/tutorchat/internal/render"
)

// Styles matching the chat TUI
var (
	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	assistantBubbleStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Foreground(colorText).
				Padding(0, 1).
				MarginTop(1).
				MarginBottom(1)
)

// runQuery sends a single question in a fresh conversation and prints the
// reply. If rawOutput is true, only the raw reply text is printed.
func runQuery(prompt string, rawOutput bool) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}

	client, cfg, err := newBackendClient()
	if err != nil {
		if !rawOutput {
			fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Not ready"))
		}
		return err
	}
	defer client.Close()

	var spin *spinner
	if !rawOutput {
		spin = newSpinner("Asking your tutor")
		spin.start()
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.RequestTimeoutSecs)*time.Second)
	defer cancel()

	// Empty chat id: the backend starts a fresh conversation implicitly.
	result, err := client.SendMessage(ctx, "", prompt)
	if err != nil {
		if !rawOutput {
			spin.stopWithError()
			fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Request failed"))
		}
		return err
	}
	if !rawOutput {
		spin.stopWithSuccess("Done")
	}

	text := result.AssistantReply()

	// Raw output mode: only the reply text
	if rawOutput {
		if outputFlag != "" {
			return os.WriteFile(outputFlag, []byte(text), 0o644)
		}
		fmt.Print(text)
		return nil
	}

	fmt.Fprintln(os.Stderr)

	if cfg.CopyToClipboard {
		if err := clipboard.WriteAll(text); err != nil {
			warnMsg := lipgloss.NewStyle().Foreground(colorFailure).Render(
				fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err),
			)
			fmt.Fprintln(os.Stderr, warnMsg)
		} else {
			clipMsg := lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ Copied to clipboard")
			fmt.Fprintln(os.Stderr, clipMsg)
		}
	}

	if outputFlag != "" {
		if err := os.WriteFile(outputFlag, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		successMsg := lipgloss.NewStyle().Foreground(colorSuccess).Render(
			fmt.Sprintf("✓ Reply saved to %s", outputFlag),
		)
		fmt.Fprintln(os.Stderr, successMsg)
		return nil
	}

	termWidth := getTerminalWidth()
	bubbleWidth := termWidth - 4
	if bubbleWidth < 40 {
		bubbleWidth = 40
	}
	if bubbleWidth > 120 {
		bubbleWidth = 120
	}
	contentWidth := bubbleWidth - 4

	label := assistantLabelStyle.Render("✦ Tutor")
	fmt.Println(label)

	renderOpts := render.FromConfig(cfg.Markdown, contentWidth)
	rendered, err := render.Markdown(text, renderOpts)
	if err != nil {
		rendered = text
	}
	rendered = strings.TrimRight(rendered, "\n")

	bubble := assistantBubbleStyle.Width(bubbleWidth).Render(rendered)
	fmt.Println(bubble)

	return nil
}
