package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imperium-ai/imperium/internal/application/command"
	"github.com/imperium-ai/imperium/internal/domain/mentor"
)

var (
	councilTasks   bool
	councilJournal bool
	councilHistory bool
)

var councilCmd = &cobra.Command{
	Use:   "council [dilemma]",
	Short: "Summon the council of mentors (once per day)",
	Long: `Every mentor answers your dilemma and the council issues a verdict.
The council convenes once per calendar day.`,
	RunE: runCouncil,
}

func init() {
	councilCmd.Flags().BoolVar(&councilTasks, "tasks", false, "add the verdict's tasks to your task list")
	councilCmd.Flags().BoolVar(&councilJournal, "save", false, "save the verdict to your journal")
	councilCmd.Flags().BoolVar(&councilHistory, "history", false, "list past council sessions instead")
}

func runCouncil(cmd *cobra.Command, args []string) error {
	id, err := activeUser()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if councilHistory {
		cases, err := current.queries.cases.Handle(cmd.Context(), id, 20)
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			fmt.Fprintln(out, "The council has not convened yet.")
		}
		for _, c := range cases {
			fmt.Fprintf(out, "%s  %s\n", c.CreatedAt.In(current.clock.Location()).Format("2006-01-02 15:04"), c.Dilemma)
		}
		return nil
	}

	res, err := current.commands.SummonCouncil.Handle(cmd.Context(), command.SummonCouncilCommand{
		UserID:        id,
		Dilemma:       strings.Join(args, " "),
		CreateTasks:   councilTasks,
		SaveToJournal: councilJournal,
	})
	if err != nil {
		return err
	}

	for _, v := range res.Case.Views {
		m := mentor.Resolve(v.Mentor)
		fmt.Fprintf(out, "%s %s\n%s\n\n", m.Icon, m.Name, v.Text)
	}
	fmt.Fprintf(out, "⚖️ Verdict\n%s\n\n", res.Case.Verdict)

	if len(res.Tasks) > 0 {
		fmt.Fprintln(out, "Tasks added:")
		for _, t := range res.Tasks {
			fmt.Fprintf(out, "  %s  %s\n", t.ID, t.Title)
		}
	}
	if res.JournalEntry != nil {
		fmt.Fprintf(out, "Saved to journal: %s\n", res.JournalEntry.Title)
	}
	printOutcome(out, res.Outcome)
	fmt.Fprintf(out, "The council reconvenes %s.\n", res.NextAvailable.Format("2006-01-02 15:04 MST"))
	return nil
}
