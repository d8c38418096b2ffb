package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imperium-ai/imperium/internal/application/command"
	"github.com/imperium-ai/imperium/internal/application/query"
	"github.com/imperium-ai/imperium/internal/domain/journal"
)

var (
	journalType  string
	journalLimit int
	journalFull  bool
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Read and write your journal",
}

var journalListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List entries, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := activeUser()
		if err != nil {
			return err
		}
		entries, err := current.queries.journal.Handle(cmd.Context(), query.ListJournalQuery{
			UserID: id,
			Type:   journal.EntryType(journalType),
			Limit:  journalLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "Your journal is empty.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %s  [%s] %s\n", e.ID, e.CreatedAt.In(current.clock.Location()).Format("2006-01-02"), e.Type, e.Title)
			if journalFull {
				fmt.Fprintf(out, "\n%s\n\n", e.Content)
			}
		}
		return nil
	},
}

var journalAddCmd = &cobra.Command{
	Use:   "add [title] [content...]",
	Short: "Save an insight",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := activeUser()
		if err != nil {
			return err
		}
		e, err := current.commands.Journal.SaveInsight(cmd.Context(), command.SaveInsightCommand{
			UserID:  id,
			Title:   args[0],
			Content: strings.Join(args[1:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved entry %s\n", e.ID)
		return nil
	},
}

var journalRemoveCmd = &cobra.Command{
	Use:     "rm [entry-id]",
	Aliases: []string{"delete"},
	Short:   "Delete an entry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := activeUser()
		if err != nil {
			return err
		}
		if err := current.commands.Journal.Delete(cmd.Context(), command.DeleteJournalEntryCommand{UserID: id, EntryID: args[0]}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %s\n", args[0])
		return nil
	},
}

func init() {
	journalListCmd.Flags().StringVar(&journalType, "type", "", "filter: mentor_feedback, council_verdict, saved_insight")
	journalListCmd.Flags().IntVar(&journalLimit, "limit", 20, "maximum number of entries")
	journalListCmd.Flags().BoolVar(&journalFull, "full", false, "print entry contents")

	journalCmd.AddCommand(journalListCmd, journalAddCmd, journalRemoveCmd)
}
