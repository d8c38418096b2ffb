package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/internal/domain/trial"
	"github.com/imperium-ai/imperium/pkg/logger"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", shared.NewDomainError("cli", "op", shared.ErrInvalidArgument, "bad"), 2},
		{"incomplete", shared.ErrIncompleteSubmission, 2},
		{"gate", shared.NewDomainError("council", "Summon", shared.ErrGateExceeded, "tomorrow"), 3},
		{"locked", shared.NewDomainError("trial", "Submit", shared.ErrLocked, "locked"), 3},
		{"not found", shared.NewDomainError("task", "Get", shared.ErrNotFound, "missing"), 4},
		{"other", errors.New("disk full"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExecute_ClosesAppWhenCommandFails(t *testing.T) {
	closed := 0
	cmd := &cobra.Command{
		Use:           "fail",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			current = &app{log: logger.Nop(), closers: []func() error{
				func() error { closed++; return nil },
			}}
			return shared.NewDomainError("council", "Summon", shared.ErrGateExceeded, "the council has already convened today")
		},
	}
	cmd.SetArgs([]string{})

	var stderr bytes.Buffer
	code := execute(context.Background(), cmd, &stderr)

	assert.Equal(t, 3, code)
	assert.Equal(t, 1, closed)
	assert.Nil(t, current)
	assert.Equal(t, "error: the council has already convened today\n", stderr.String())
}

func TestExecute_Success(t *testing.T) {
	cmd := &cobra.Command{Use: "ok", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.SetArgs([]string{})

	var stderr bytes.Buffer
	assert.Zero(t, execute(context.Background(), cmd, &stderr))
	assert.Empty(t, stderr.String())
}

func TestParseAnswers(t *testing.T) {
	got, err := parseAnswers([]string{"1=Inherited Wealth", " 3 =True", "4=a=b"})
	require.NoError(t, err)
	assert.Equal(t, trial.Answers{1: "Inherited Wealth", 3: "True", 4: "a=b"}, got)

	_, err = parseAnswers([]string{"no-separator"})
	assert.True(t, shared.IsValidation(err))

	_, err = parseAnswers([]string{"x=1"})
	assert.True(t, shared.IsValidation(err))
}

func TestParseTrialID(t *testing.T) {
	id, err := parseTrialID("7")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	for _, bad := range []string{"0", "-1", "seven"} {
		_, err := parseTrialID(bad)
		assert.Error(t, err, bad)
	}
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[----------]", progressBar(0, 10))
	assert.Equal(t, "[#####-----]", progressBar(50, 10))
	assert.Equal(t, "[##########]", progressBar(150, 10))
}

func TestPrintQuestions(t *testing.T) {
	var buf bytes.Buffer
	printQuestions(&buf, []trial.Question{{ID: 3, Text: "Is fortune fickle?", Options: []string{"True", "False"}}})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "1. [q3] Is fortune fickle?"))
	assert.Contains(t, out, "   - False")
}
