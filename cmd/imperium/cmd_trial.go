package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/imperium-ai/imperium/internal/application/command"
	"github.com/imperium-ai/imperium/internal/application/query"
	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/trial"
)

var trialAnswers []string

var trialCmd = &cobra.Command{
	Use:   "trial",
	Short: "Study the curriculum and take trials",
	Long: `Trials unlock in order: each one requires the previous trial to be
passed. The first pass of a trial earns its XP reward.`,
}

var trialPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show every trial with its status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, err := activeUser()
		if err != nil {
			return err
		}
		path, err := current.queries.path.Handle(cmd.Context(), query.GetTrialPathQuery{UserID: id})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tBEST\tTRIES\tXP\tTITLE")
		for _, t := range path.Trials {
			fmt.Fprintf(w, "%d\t%s\t%d%%\t%d\t%d\t%s\n", t.ID, t.Status, t.BestScore, t.Attempts, t.XPReward, t.Title)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d completed\n", path.Completed, len(path.Trials))
		return nil
	},
}

var trialShowCmd = &cobra.Command{
	Use:   "show [trial-id]",
	Short: "Read a trial's lesson and questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tid, err := parseTrialID(args[0])
		if err != nil {
			return err
		}
		t, err := current.queries.path.GetTrial(tid)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n\n%s\n\n", t.Title, strings.TrimSpace(t.LessonContent))
		fmt.Fprintf(out, "Pass mark %d%%, reward %d XP\n\n", t.Threshold(), t.Reward())
		printQuestions(out, t.Questions)
		return nil
	},
}

var trialSubmitCmd = &cobra.Command{
	Use:   "submit [trial-id]",
	Short: "Answer a trial's questions",
	Long: `Submits answers to a trial. Pass every answer as --answer QID=TEXT, or
omit --answer to be asked each question in turn.

Example:
  imperium trial submit 1 --answer 1="Inherited Wealth" --answer 3=True ...`,
	Args: cobra.ExactArgs(1),
	RunE: runTrialSubmit,
}

func init() {
	trialSubmitCmd.Flags().StringArrayVarP(&trialAnswers, "answer", "a", nil, "answer as QID=TEXT (repeatable)")
	trialCmd.AddCommand(trialPathCmd, trialShowCmd, trialSubmitCmd)
}

func runTrialSubmit(cmd *cobra.Command, args []string) error {
	id, err := activeUser()
	if err != nil {
		return err
	}
	tid, err := parseTrialID(args[0])
	if err != nil {
		return err
	}

	var answers trial.Answers
	if len(trialAnswers) > 0 {
		answers, err = parseAnswers(trialAnswers)
	} else {
		answers, err = promptAnswers(cmd.InOrStdin(), cmd.OutOrStdout(), tid)
	}
	if err != nil {
		return err
	}

	res, err := current.commands.SubmitTrial.Handle(cmd.Context(), command.SubmitTrialCommand{
		UserID:  id,
		TrialID: tid,
		Answers: answers,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	verdict := "FAILED"
	if res.Result.Passed {
		verdict = "PASSED"
	}
	fmt.Fprintf(out, "%s: %d%% (%d/%d correct)\n", verdict, res.Result.Score, res.Result.Correct, res.Result.Total)
	printOutcome(out, res.Outcome)
	if res.Result.Passed && !res.FirstPass {
		fmt.Fprintln(out, "Already completed, no XP this time.")
	}
	if res.Feedback != "" {
		fmt.Fprintf(out, "\n%s\n", res.Feedback)
	}
	return nil
}

func parseTrialID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, shared.Errorf("cli", "parseTrialID", shared.ErrInvalidArgument, "invalid trial id %q", s)
	}
	return id, nil
}

// parseAnswers reads QID=TEXT pairs.
func parseAnswers(pairs []string) (trial.Answers, error) {
	answers := make(trial.Answers, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, shared.Errorf("cli", "parseAnswers", shared.ErrInvalidArgument, "answer %q must be QID=TEXT", p)
		}
		qid, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, shared.Errorf("cli", "parseAnswers", shared.ErrInvalidArgument, "invalid question id in %q", p)
		}
		answers[qid] = v
	}
	return answers, nil
}

// promptAnswers asks each question on out and reads option numbers or
// free text from in.
func promptAnswers(in io.Reader, out io.Writer, tid int) (trial.Answers, error) {
	t, err := current.queries.path.GetTrial(tid)
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(in)
	answers := make(trial.Answers, len(t.Questions))
	for i, q := range t.Questions {
		fmt.Fprintf(out, "%d. %s\n", i+1, q.Text)
		for j, o := range q.Options {
			fmt.Fprintf(out, "   %d) %s\n", j+1, o)
		}
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			break
		}
		reply := strings.TrimSpace(sc.Text())
		if n, err := strconv.Atoi(reply); err == nil && n >= 1 && n <= len(q.Options) {
			reply = q.Options[n-1]
		}
		answers[q.ID] = reply
		fmt.Fprintln(out)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	return answers, nil
}

func printQuestions(out io.Writer, qs []trial.Question) {
	for i, q := range qs {
		fmt.Fprintf(out, "%d. [q%d] %s\n", i+1, q.ID, q.Text)
		for _, o := range q.Options {
			fmt.Fprintf(out, "   - %s\n", o)
		}
	}
}
