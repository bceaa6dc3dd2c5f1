package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-triage/internal/inbox"
	"github.com/capitalize-ai/inbox-triage/internal/model"
)

var unarchive bool

var archiveCmd = &cobra.Command{
	Use:   "archive <chat-id>...",
	Short: "Archive conversations",
	Long: `Archives each conversation in turn. Failures are reported and the
remaining conversations are still processed. Use --undo to unarchive.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runArchive),
}

func init() {
	archiveCmd.Flags().BoolVar(&unarchive, "undo", false, "Unarchive instead")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	out := cmd.OutOrStdout()
	list := inbox.NewListController(a.repo, model.ListConversationsOptions{}, nil, a.logger)

	failed := 0
	for _, chatID := range args {
		var err error
		if unarchive {
			err = a.repo.SetArchived(ctx, chatID, false)
		} else {
			err = list.Archive(ctx, chatID)
		}
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", chatID, err)
			continue
		}
		if unarchive {
			fmt.Fprintf(out, "Unarchived %s\n", chatID)
		} else {
			fmt.Fprintf(out, "Archived %s\n", chatID)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d conversations failed", failed, len(args))
	}
	return nil
}
