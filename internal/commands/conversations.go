package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lmarques/tutorchat/internal/config"
	"github.com/lmarques/tutorchat/internal/history"
	"github.com/lmarques/tutorchat/internal/models"
	"github.com/lmarques/tutorchat/internal/render"
)

var (
	exportFormatFlag  string
	searchContentFlag bool
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage your conversations",
	Long: `List, show, delete, sync and export your conversations.

list, show and delete talk to the backend. sync mirrors every
conversation into the local archive under ~/.tutorchat/history so
export and search work offline.`,
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations on the backend",
	RunE:  runConversationsList,
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Show a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsShow,
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsDelete,
}

var conversationsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror all conversations into the local archive",
	RunE:  runConversationsSync,
}

var conversationsExportCmd = &cobra.Command{
	Use:   "export <chat-id>",
	Short: "Export an archived conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsExport,
}

var conversationsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the local archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsSearch,
}

func init() {
	conversationsExportCmd.Flags().StringVar(&exportFormatFlag, "format", "markdown", "Export format (markdown, json)")
	conversationsSearchCmd.Flags().BoolVar(&searchContentFlag, "content", false, "Search message content, not just summaries")

	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	conversationsCmd.AddCommand(conversationsSyncCmd)
	conversationsCmd.AddCommand(conversationsExportCmd)
	conversationsCmd.AddCommand(conversationsSearchCmd)
}

func requestContext(cfg config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(),
		time.Duration(cfg.RequestTimeoutSecs)*time.Second)
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	client, cfg, err := newBackendClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := requestContext(cfg)
	defer cancel()

	conversations, err := client.ListConversations(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Failed to list conversations"))
		return err
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHAT ID\tSUMMARY\tUPDATED")
	_, _ = fmt.Fprintln(w, "-------\t-------\t-------")

	for _, conv := range conversations {
		summary := conv.Summary
		if len(summary) > 48 {
			summary = summary[:48] + "..."
		}
		if conv.IsAssignmentChat {
			summary += " [assignment]"
		}
		updated := ""
		if !conv.UpdatedAt.IsZero() {
			updated = history.FormatRelativeTime(conv.UpdatedAt)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", conv.ChatID, summary, updated)
	}

	return w.Flush()
}

func runConversationsShow(cmd *cobra.Command, args []string) error {
	client, cfg, err := newBackendClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := requestContext(cfg)
	defer cancel()

	msgs, err := client.Conversation(ctx, args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Failed to load conversation"))
		return err
	}

	printTranscript(cfg, models.VisibleMessages(msgs))
	return nil
}

func printTranscript(cfg config.Config, msgs []models.Message) {
	termWidth := getTerminalWidth()
	contentWidth := termWidth - 8
	if contentWidth < 40 {
		contentWidth = 40
	}

	for i, msg := range msgs {
		if i > 0 {
			fmt.Println()
		}
		if msg.Role == models.RoleUser {
			fmt.Printf("You:\n%s\n", indent(msg.Content, "  "))
			continue
		}

		fmt.Println("Tutor:")
		body := msg.Content
		if isStdoutTTY() {
			rendered, err := render.Markdown(body, render.FromConfig(cfg.Markdown, contentWidth))
			if err == nil {
				body = strings.TrimRight(rendered, "\n")
			}
		}
		fmt.Println(indent(body, "  "))
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func runConversationsDelete(cmd *cobra.Command, args []string) error {
	client, cfg, err := newBackendClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := requestContext(cfg)
	defer cancel()

	if err := client.DeleteConversation(ctx, args[0]); err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Failed to delete"))
		return err
	}

	// The local mirror follows; a missing archive is fine.
	if store, err := history.DefaultStore(); err == nil {
		_ = store.Delete(args[0])
	}

	fmt.Printf("Deleted conversation: %s\n", args[0])
	return nil
}

func runConversationsSync(cmd *cobra.Command, args []string) error {
	client, cfg, err := newBackendClient()
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := history.DefaultStore()
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	spin := newSpinner("Syncing conversations")
	spin.start()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.RequestTimeoutSecs)*time.Second*5)
	defer cancel()

	conversations, err := client.ListConversations(ctx)
	if err != nil {
		spin.stopWithError()
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Failed to list conversations"))
		return err
	}

	synced := 0
	var failed []string
	for _, conv := range conversations {
		msgs, err := client.Conversation(ctx, conv.ChatID)
		if err != nil {
			failed = append(failed, conv.ChatID)
			continue
		}
		if _, err := store.Save(conv, msgs); err != nil {
			failed = append(failed, conv.ChatID)
			continue
		}
		synced++
	}

	spin.stopWithSuccess(fmt.Sprintf("Synced %d of %d conversations", synced, len(conversations)))
	for _, id := range failed {
		fmt.Fprintf(os.Stderr, "  failed: %s\n", id)
	}
	return nil
}

func runConversationsExport(cmd *cobra.Command, args []string) error {
	store, err := history.DefaultStore()
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	var data []byte
	switch history.ExportFormat(exportFormatFlag) {
	case history.ExportFormatMarkdown:
		out, err := store.ExportToMarkdown(args[0])
		if err != nil {
			return exportError(err)
		}
		data = []byte(out)
	case history.ExportFormatJSON:
		out, err := store.ExportToJSON(args[0])
		if err != nil {
			return exportError(err)
		}
		data = out
	default:
		return fmt.Errorf("unknown export format %q (markdown, json)", exportFormatFlag)
	}

	if outputFlag != "" {
		if err := os.WriteFile(outputFlag, data, 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Printf("Exported to %s\n", outputFlag)
		return nil
	}

	fmt.Print(string(data))
	return nil
}

func exportError(err error) error {
	return fmt.Errorf("export failed (run 'tutorchat conversations sync' first): %w", err)
}

func runConversationsSearch(cmd *cobra.Command, args []string) error {
	store, err := history.DefaultStore()
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	results, err := store.Search(args[0], searchContentFlag)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matches in the local archive.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHAT ID\tMATCH\tSNIPPET")
	for _, r := range results {
		snippet := strings.ReplaceAll(r.MatchSnippet, "\n", " ")
		if len(snippet) > 60 {
			snippet = snippet[:60] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Archive.ChatID, r.MatchField, snippet)
	}
	return w.Flush()
}
