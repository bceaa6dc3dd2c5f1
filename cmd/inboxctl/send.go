package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <chat-id> <text>...",
	Short: "Send a message to a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE:  withApp(runSend),
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	text := strings.Join(args[1:], " ")

	res, err := a.repo.SendMessage(ctx, args[0], text)
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}

	if res.PendingMessageID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Sent (pending message %s).\n", res.PendingMessageID)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Sent.")
	}
	return nil
}
