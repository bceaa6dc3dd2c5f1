package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-triage/internal/suggest"
)

var suggestSend bool

var suggestCmd = &cobra.Command{
	Use:   "suggest <chat-id>",
	Short: "Draft a reply for a conversation",
	Long: `Asks the configured language model for a reply based on the recent
history of the conversation. With --send the suggestion is sent as-is.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runSuggest),
}

func init() {
	suggestCmd.Flags().BoolVar(&suggestSend, "send", false, "Send the suggestion immediately")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	chatID := args[0]

	assembler := suggest.NewAssembler(a.repo, a.generator, a.cfg.SuggestionWindow, a.logger)
	text, err := assembler.Suggest(ctx, chatID)
	if errors.Is(err, suggest.ErrNoGenerator) {
		return errors.New("no LLM API key configured (set OPENAI_API_KEY or ANTHROPIC_API_KEY)")
	}
	if err != nil {
		return fmt.Errorf("error generating suggestion: %w", err)
	}
	if text == "" {
		return errors.New("the model returned an empty suggestion")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, text)

	if !suggestSend {
		return nil
	}
	if _, err := a.repo.SendMessage(ctx, chatID, text); err != nil {
		return fmt.Errorf("error sending suggestion: %w", err)
	}
	fmt.Fprintln(out, "Sent.")
	return nil
}
