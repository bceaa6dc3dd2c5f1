package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/inbox-triage/internal/inbox"
	"github.com/capitalize-ai/inbox-triage/internal/model"
	"github.com/capitalize-ai/inbox-triage/internal/suggest"
)

var (
	listFilter string
	listLimit  int
	listMuted  bool
	listJSON   bool
)

// now is replaced in tests.
var now = time.Now

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Long: `Lists recent conversations. By default only conversations that are
unread or still waiting on a reply from you are shown; use --filter all to
see everything.`,
	Args: cobra.NoArgs,
	RunE: withApp(runList),
}

func init() {
	listCmd.Flags().StringVarP(&listFilter, "filter", "f", string(model.FilterUnresponded), "Filter: unresponded or all")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Number of conversations to fetch (default from CONVERSATION_LIMIT)")
	listCmd.Flags().BoolVar(&listMuted, "muted", false, "Include muted conversations")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print the rows as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
	filter, ok := model.ParseFilter(listFilter)
	if !ok {
		return fmt.Errorf("unknown filter %q (want unresponded or all)", listFilter)
	}

	opts := model.ListConversationsOptions{
		IncludeMuted: listMuted || a.cfg.IncludeMuted,
		Limit:        a.cfg.ConversationLimit,
	}
	if listLimit > 0 {
		opts.Limit = listLimit
	}

	list := inbox.NewListController(a.repo, opts, nil, a.logger)
	if err := list.SetFilter(filter); err != nil {
		return err
	}
	if err := list.Refresh(ctx); err != nil {
		return fmt.Errorf("error loading conversations: %w", err)
	}

	st := list.Snapshot()
	out := cmd.OutOrStdout()

	if listJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Rows)
	}

	if len(st.Rows) == 0 {
		fmt.Fprintln(out, "Nothing to triage.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFLAGS\tNAME\tWHEN\tLAST MESSAGE")
	for _, row := range st.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			row.ID, rowFlags(row), row.Name, suggest.FormatElapsed(now().Sub(row.DisplayTimestamp())), preview(row.LastMessage, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d of %d conversations", len(st.Rows), st.Total)
	if st.HasMore {
		fmt.Fprint(out, " (more available)")
	}
	fmt.Fprintln(out)
	return nil
}

// rowFlags renders U for unread and R for waiting on a reply.
func rowFlags(row inbox.Row) string {
	flags := ""
	if row.Unread {
		flags += "U"
	}
	if row.Unresponded {
		flags += "R"
	}
	if flags == "" {
		flags = "-"
	}
	return flags
}

func preview(msg *model.Message, width int) string {
	if msg == nil {
		return ""
	}
	text := []rune(msg.Text)
	if len(text) > width {
		return string(text[:width-1]) + "…"
	}
	return string(text)
}
