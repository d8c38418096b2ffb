package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/imperium-ai/imperium/internal/application/command"
	"github.com/imperium-ai/imperium/internal/application/query"
	"github.com/imperium-ai/imperium/internal/domain/task"
)

var (
	taskDue         string
	taskDescription string
	taskStatus      string
	taskLimit       int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage daily tasks",
	Long: `Daily tasks. Completing a task grants XP and counts for the streak;
skipping grants nothing.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := activeUser()
		if err != nil {
			return err
		}
		t, err := current.commands.Tasks.Create(cmd.Context(), command.CreateTaskCommand{
			UserID:      id,
			Title:       strings.Join(args, " "),
			Description: taskDescription,
			DueDate:     taskDue,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added task %s: %s\n", t.ID, t.Title)
		return nil
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Complete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := activeUser()
		if err != nil {
			return err
		}
		res, err := current.commands.Tasks.Complete(cmd.Context(), command.TaskCommand{UserID: id, TaskID: args[0]})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Completed: %s\n", res.Task.Title)
		printOutcome(out, res.Outcome)
		return nil
	},
}

var taskSkipCmd = &cobra.Command{
	Use:   "skip [task-id]",
	Short: "Skip a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := activeUser()
		if err != nil {
			return err
		}
		t, err := current.commands.Tasks.Skip(cmd.Context(), command.TaskCommand{UserID: id, TaskID: args[0]})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Skipped: %s\n", t.Title)
		return nil
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:     "rm [task-id]",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := activeUser()
		if err != nil {
			return err
		}
		if err := current.commands.Tasks.Delete(cmd.Context(), command.TaskCommand{UserID: id, TaskID: args[0]}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := activeUser()
		if err != nil {
			return err
		}
		tasks, err := current.queries.tasks.Handle(cmd.Context(), query.ListTasksQuery{
			UserID: id,
			Status: task.Status(taskStatus),
			Limit:  taskLimit,
		})
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tDUE\tSOURCE\tTITLE")
		for _, t := range tasks {
			due := t.DueDate
			if t.Overdue {
				due += " !"
			}
			source := t.Source
			if t.SourceName != "" {
				source = t.SourceName
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, due, source, t.Title)
		}
		return w.Flush()
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "due date, YYYY-MM-DD")
	taskAddCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "task description")
	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "filter by status: todo, done, skipped")
	taskListCmd.Flags().IntVar(&taskLimit, "limit", 0, "maximum number of tasks")

	taskCmd.AddCommand(taskAddCmd, taskDoneCmd, taskSkipCmd, taskRemoveCmd, taskListCmd)
}

// printOutcome reports XP, rank and streak changes of a reward.
func printOutcome(out io.Writer, o command.RewardOutcome) {
	if xp := o.XPAwarded(); xp > 0 {
		fmt.Fprintf(out, "+%d XP (total %d)\n", xp, o.After.InfluenceXP())
	}
	if o.RankChanged() {
		fmt.Fprintf(out, "Rank up: %s -> %s\n", o.Before.CurrentRank(), o.After.CurrentRank())
	}
	if o.After.StreakDays != o.Before.StreakDays {
		fmt.Fprintf(out, "Streak: %d day(s)\n", o.After.StreakDays)
	}
}
