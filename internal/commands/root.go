// Package commands provides the CLI commands for tutorchat.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	backendFlag string
	outputFlag  string
	fileFlag    string
	rawFlag     bool

	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tutorchat [prompt]",
	Short: "Terminal client for the ALAASKA tutoring backend",
	Long: `tutorchat is a terminal client for the ALAASKA learning assistant.
It talks to the tutoring backend over its REST API and keeps a local
archive of your conversations.

Examples:
  tutorchat login                       Sign in to the backend
  tutorchat chat                        Start the interactive chat
  tutorchat "Explain recursion"         Send a single question
  tutorchat -f prompt.md                Read the question from a file
  cat prompt.md | tutorchat             Read the question from stdin
  tutorchat "Hello" -o reply.md         Save the reply to a file
  tutorchat conversations list          List your conversations`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("tutorchat %s (built %s)\n", Version, BuildTime)
			return nil
		}

		stat, _ := os.Stdin.Stat()
		hasStdin := (stat.Mode() & os.ModeCharDevice) == 0

		if fileFlag != "" {
			data, err := os.ReadFile(fileFlag)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			return runQuery(string(data), rawFlag || !isStdoutTTY())
		}

		if hasStdin {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			return runQuery(string(data), rawFlag || !isStdoutTTY())
		}

		if len(args) > 0 {
			return runQuery(args[0], rawFlag || !isStdoutTTY())
		}

		// No input - show help
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Backend URL (overrides config)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Save reply to file")
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read prompt from file")
	rootCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print the raw reply without decoration")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(configCmd)
}
