package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-triage/internal/config"
)

var (
	setupFile         string
	setupBeeperToken  string
	setupOpenAIKey    string
	setupAnthropicKey string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Save connector and model credentials to .env.local",
	Long: `Writes the given credentials to the local env file. Keys that are
already present in the file are left untouched, so running setup twice is
safe.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupFile, "file", config.LocalEnvFile, "Env file to update")
	setupCmd.Flags().StringVar(&setupBeeperToken, "beeper-token", "", "Beeper Desktop API access token")
	setupCmd.Flags().StringVar(&setupOpenAIKey, "openai-key", "", "OpenAI API key")
	setupCmd.Flags().StringVar(&setupAnthropicKey, "anthropic-key", "", "Anthropic API key")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	entries := map[string]string{
		"BEEPER_ACCESS_TOKEN": strings.TrimSpace(setupBeeperToken),
		"OPENAI_API_KEY":      strings.TrimSpace(setupOpenAIKey),
		"ANTHROPIC_API_KEY":   strings.TrimSpace(setupAnthropicKey),
	}
	if entries["BEEPER_ACCESS_TOKEN"] == "" && entries["OPENAI_API_KEY"] == "" && entries["ANTHROPIC_API_KEY"] == "" {
		return errors.New("nothing to save; pass --beeper-token, --openai-key or --anthropic-key")
	}

	added, err := config.AddMissing(setupFile, entries)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(added) == 0 {
		fmt.Fprintf(out, "%s already has these keys; nothing changed.\n", setupFile)
		return nil
	}
	fmt.Fprintf(out, "Added %s to %s\n", strings.Join(added, ", "), setupFile)
	return nil
}
