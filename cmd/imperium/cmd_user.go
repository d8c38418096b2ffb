package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imperium-ai/imperium/internal/application/command"
	"github.com/imperium-ai/imperium/internal/application/query"
	"github.com/imperium-ai/imperium/internal/domain/mentor"
)

var registerMentor string

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a progression record and make it the active profile",
	Long: `Creates a new user with 0 XP, the Initiate rank and no streak.

Mentors: machiavelli (default), napoleon, aurelius.`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

var mentorCmd = &cobra.Command{
	Use:   "mentor [machiavelli|napoleon|aurelius]",
	Short: "Show the mentors or switch your primary mentor",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMentor,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show XP, rank, streak and council availability",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	registerCmd.Flags().StringVarP(&registerMentor, "mentor", "m", "", "primary mentor")
}

func runRegister(cmd *cobra.Command, _ []string) error {
	res, err := current.commands.RegisterUser.Handle(cmd.Context(), command.RegisterUserCommand{
		UserID: userFlag,
		Mentor: strings.ToLower(registerMentor),
	})
	if err != nil {
		return err
	}
	if err := saveProfile(res.User.ID); err != nil {
		return err
	}

	m := mentor.Resolve(mentor.ID(res.User.Mentor))
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Welcome to IMPERIUM.\n\n")
	fmt.Fprintf(out, "User:   %s\n", res.User.ID)
	fmt.Fprintf(out, "Rank:   %s\n", res.User.CurrentRank())
	fmt.Fprintf(out, "Mentor: %s %s, %s\n", m.Icon, m.Name, m.Title)
	fmt.Fprintf(out, "\n%q\n", m.Quote)
	return nil
}

func runMentor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, m := range mentor.All() {
			fmt.Fprintf(out, "%s %-12s %s, %s\n   %s\n", m.Icon, m.ID, m.Name, m.Title, m.Description)
		}
		return nil
	}

	id, err := activeUser()
	if err != nil {
		return err
	}
	u, err := current.commands.ChangeMentor.Handle(cmd.Context(), command.ChangeMentorCommand{
		UserID: id,
		Mentor: strings.ToLower(args[0]),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Your mentor is now %s.\n", mentor.Resolve(mentor.ID(u.Mentor)).Name)
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	id, err := activeUser()
	if err != nil {
		return err
	}
	p, err := current.queries.progress.Handle(cmd.Context(), query.GetProgressQuery{UserID: id})
	if err != nil {
		return err
	}
	printProgress(cmd.OutOrStdout(), p)
	return nil
}

func printProgress(out io.Writer, p *query.ProgressDTO) {
	fmt.Fprintf(out, "%s  ·  mentor %s\n\n", p.UserID, p.MentorName)
	fmt.Fprintf(out, "Rank:     %s (%d XP)\n", p.Rank, p.InfluenceXP)
	if p.XPToNext != nil {
		fmt.Fprintf(out, "Next:     %s in %d XP  %s %d%%\n", p.NextRank, *p.XPToNext, progressBar(p.PercentWithinTier, 20), p.PercentWithinTier)
	} else {
		fmt.Fprintf(out, "Next:     top rank reached\n")
	}
	fmt.Fprintf(out, "Streak:   %s\n", p.StreakLabel)

	if p.CanSummonCouncil {
		fmt.Fprintf(out, "Council:  available now\n")
	} else {
		fmt.Fprintf(out, "Council:  available %s\n", p.CouncilAvailableAt.Format("2006-01-02 15:04 MST"))
	}

	fmt.Fprintf(out, "Trials:   %d/%d completed\n", p.TrialsCompleted, p.TrialsTotal)
	fmt.Fprintf(out, "Tasks:    %d todo, %d done, %d skipped", p.TasksTodo, p.TasksDone, p.TasksSkipped)
	if p.TasksOverdue > 0 {
		fmt.Fprintf(out, " (%d overdue)", p.TasksOverdue)
	}
	fmt.Fprintln(out)
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
