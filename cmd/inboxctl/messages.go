package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-triage/internal/suggest"
)

var (
	messagesLimit int
	messagesJSON  bool
)

var messagesCmd = &cobra.Command{
	Use:   "messages <chat-id>",
	Short: "Show the recent messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runMessages),
}

func init() {
	messagesCmd.Flags().IntVarP(&messagesLimit, "limit", "n", 0, "Number of messages to fetch (default from MESSAGE_LIMIT)")
	messagesCmd.Flags().BoolVar(&messagesJSON, "json", false, "Print the messages as JSON")
	rootCmd.AddCommand(messagesCmd)
}

func runMessages(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	limit := a.cfg.MessageLimit
	if messagesLimit > 0 {
		limit = messagesLimit
	}

	page, err := a.repo.ListMessages(ctx, args[0], limit)
	if err != nil {
		return fmt.Errorf("error loading messages: %w", err)
	}

	out := cmd.OutOrStdout()
	if messagesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(page.Items)
	}

	if len(page.Items) == 0 {
		fmt.Fprintln(out, "No messages.")
		return nil
	}
	fmt.Fprintln(out, suggest.Transcript(page.Items, now()))
	return nil
}
