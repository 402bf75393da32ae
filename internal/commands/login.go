package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lmarques/tutorchat/internal/api"
	"github.com/lmarques/tutorchat/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Sign in to the tutoring backend",
	Long: `Sign in to the tutoring backend with your username and password.

The issued tokens are stored under ~/.tutorchat with owner-only
permissions. Expired sessions are refreshed automatically; when the
refresh token expires too, run login again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearCredentials(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Username: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	spin := newSpinner("Signing in")
	spin.start()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.RequestTimeoutSecs)*time.Second)
	defer cancel()

	creds, err := api.Login(ctx, backendURL(cfg), username, password)
	if err != nil {
		spin.stopWithError()
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Login failed"))
		return err
	}

	spin.stopWithSuccess(fmt.Sprintf("Signed in as %s", creds.Username))
	return nil
}

// readPassword reads a password without echo when stdin is a terminal, and
// falls back to a plain line read otherwise (pipes, scripts).
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
