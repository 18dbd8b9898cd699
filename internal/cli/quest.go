package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/questcore/internal/app"
	"github.com/roach88/questcore/internal/stats"
)

// QuestOutcomeView is the CLI rendering of a recorded completion.
type QuestOutcomeView struct {
	CompletionID string `json:"completionId"`
	UserID       string `json:"userId"`
	app.Outcome
}

// WriteText renders the outcome for humans.
func (v QuestOutcomeView) WriteText(w io.Writer) {
	if v.Duplicate {
		fmt.Fprintf(w, "%s: already recorded for %s\n", v.CompletionID, v.UserID)
		return
	}
	fmt.Fprintf(w, "%s: recorded for %s (%g quests, %g XP)\n",
		v.CompletionID, v.UserID,
		v.Snapshot.Number(stats.QuestsCompleted), v.Snapshot.Number(stats.TotalXP))
	for _, b := range v.NewlyUnlocked {
		fmt.Fprintf(w, "  badge unlocked: %s (%s, +%d XP)\n", b.Name, b.Rarity, b.XPReward)
	}
	for _, g := range v.Goals {
		switch {
		case g.Result.GoalCompleted:
			fmt.Fprintf(w, "  goal %s completed (+%d XP)\n", g.GoalID, g.XPReward)
		case g.Result.Updated:
			fmt.Fprintf(w, "  goal %s +%g %s\n", g.GoalID, g.Delta, g.Metric)
		default:
			fmt.Fprintf(w, "  goal %s not updated (%s)\n", g.GoalID, g.Result.Reason)
		}
	}
}

// QuestCompleteOptions holds flags for quest complete.
type QuestCompleteOptions struct {
	*RootOptions
	ID         string
	User       string
	Quest      string
	XP         int
	Difficulty string
	At         string
}

// NewQuestCommand creates the quest command group.
func NewQuestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quest",
		Short: "Record quest completions",
	}
	cmd.AddCommand(newQuestCompleteCommand(rootOpts))
	return cmd
}

func newQuestCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QuestCompleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Record an approved quest completion",
		Long: `Record an approved quest completion.

The completion updates the user's stats, unlocks any badges it earns and
feeds every active goal the user takes part in. Recording the same
completion id twice has no further effect.

Example:
  questcore quest complete --id c-101 --user alice --quest dishes --xp 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuestComplete(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "completion id")
	cmd.Flags().StringVar(&opts.User, "user", "", "user id")
	cmd.Flags().StringVar(&opts.Quest, "quest", "", "quest id")
	cmd.Flags().IntVar(&opts.XP, "xp", 0, "XP earned")
	cmd.Flags().StringVar(&opts.Difficulty, "difficulty", "", "quest difficulty")
	cmd.Flags().StringVar(&opts.At, "at", "", "completion time, RFC 3339 (default now)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runQuestComplete(opts *QuestCompleteOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	at := time.Now()
	if opts.At != "" {
		t, err := time.Parse(time.RFC3339, opts.At)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "invalid --at", err, nil)
		}
		at = t
	}
	if opts.XP < 0 {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--xp must not be negative", nil, nil)
	}

	return withService(cmd, opts.RootOptions, f, func(ctx context.Context, svc *app.Service) error {
		out, err := svc.RecordQuestCompletion(ctx, stats.Completion{
			ID:          opts.ID,
			UserID:      opts.User,
			QuestID:     opts.Quest,
			XP:          opts.XP,
			Difficulty:  opts.Difficulty,
			CompletedAt: at,
		})
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to record completion", err, nil)
		}
		return f.Success(QuestOutcomeView{CompletionID: opts.ID, UserID: opts.User, Outcome: out})
	})
}
