package commands

import (
	"github.com/spf13/cobra"

	"github.com/lmarques/tutorchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	Long: `Start the interactive chat session with your tutor.

Messages are sent to the tutoring backend and the full conversation
history stays on the server. Press Tab to browse past conversations,
Ctrl+N to start a new one, and Esc or Ctrl+C to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func runChat() error {
	client, cfg, err := newBackendClient()
	if err != nil {
		PrintError(err)
		return err
	}
	defer client.Close()

	return tui.Run(client, cfg, true)
}

// PrintError prints a formatted error for command-level failures.
func PrintError(err error) {
	if err == nil {
		return
	}
	tui.PrintError(err)
}
