package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/questcore/internal/app"
	"github.com/roach88/questcore/internal/goal"
	"github.com/roach88/questcore/internal/store"
)

// GoalView is the CLI rendering of a goal.
type GoalView struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Type         goal.Type     `json:"type"`
	Metric       goal.Metric   `json:"metric"`
	Target       float64       `json:"target"`
	Difficulty   string        `json:"difficulty"`
	Status       goal.Status   `json:"status"`
	Participants []string      `json:"participants"`
	Progress     goal.Progress `json:"progress,omitempty"`
	XPReward     int           `json:"xpReward"`
	StartDate    *time.Time    `json:"startDate,omitempty"`
	EndDate      *time.Time    `json:"endDate,omitempty"`
	ParentGoalID string        `json:"parentGoalId,omitempty"`
	NextGoalID   string        `json:"nextGoalId,omitempty"`
}

func newGoalView(g *goal.Goal) GoalView {
	return GoalView{
		ID:           g.ID,
		Title:        g.Title,
		Type:         g.Type,
		Metric:       g.Metric,
		Target:       g.Target,
		Difficulty:   string(g.Difficulty),
		Status:       g.Status,
		Participants: g.Participants,
		Progress:     g.Progress,
		XPReward:     g.CalculateXPReward(),
		StartDate:    g.StartDate,
		EndDate:      g.EndDate,
		ParentGoalID: g.ParentGoalID,
	}
}

// WriteText renders the goal for humans.
func (v GoalView) WriteText(w io.Writer) {
	fmt.Fprintf(w, "%s  %s\n", v.ID, v.Title)
	fmt.Fprintf(w, "  type:         %s (%s, target %g)\n", v.Type, v.Metric, v.Target)
	fmt.Fprintf(w, "  status:       %s\n", v.Status)
	fmt.Fprintf(w, "  participants: %s\n", strings.Join(v.Participants, ", "))
	fmt.Fprintf(w, "  xp reward:    %d (%s)\n", v.XPReward, v.Difficulty)
	if v.EndDate != nil {
		fmt.Fprintf(w, "  ends:         %s\n", v.EndDate.Format(time.RFC3339))
	}
	if v.NextGoalID != "" {
		fmt.Fprintf(w, "  next goal:    %s\n", v.NextGoalID)
	}
}

// ContributionView is the CLI rendering of a progress update.
type ContributionView struct {
	GoalID string            `json:"goalId"`
	Status goal.Status       `json:"status"`
	Result goal.UpdateResult `json:"result"`
}

// WriteText renders the update for humans.
func (v ContributionView) WriteText(w io.Writer) {
	r := v.Result
	if !r.Updated {
		fmt.Fprintf(w, "%s: not updated (%s)\n", v.GoalID, r.Reason)
		return
	}
	fmt.Fprintf(w, "%s: updated, status %s\n", v.GoalID, v.Status)
	if r.MilestoneReached != nil {
		fmt.Fprintf(w, "  milestone reached: %g%%\n", r.MilestoneReached.Threshold)
	}
	if r.GoalCompleted {
		fmt.Fprintln(w, "  goal completed")
	}
	if r.NextGoal != nil {
		fmt.Fprintf(w, "  next goal: %s\n", r.NextGoal.ID)
	}
}

// NewGoalCommand creates the goal command group.
func NewGoalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Create and drive family goals",
	}

	cmd.AddCommand(newGoalCreateCommand(rootOpts))
	cmd.AddCommand(newGoalShowCommand(rootOpts))
	cmd.AddCommand(newGoalContributeCommand(rootOpts))
	cmd.AddCommand(newGoalTransitionCommand(rootOpts, "start", "Activate a draft goal"))
	cmd.AddCommand(newGoalTransitionCommand(rootOpts, "pause", "Suspend an active goal"))
	cmd.AddCommand(newGoalTransitionCommand(rootOpts, "resume", "Reactivate a paused goal"))
	cmd.AddCommand(newGoalTransitionCommand(rootOpts, "cancel", "Cancel an unfinished goal"))
	cmd.AddCommand(newGoalTransitionCommand(rootOpts, "complete", "Complete a goal by hand"))
	return cmd
}

// GoalCreateOptions holds flags for goal create.
type GoalCreateOptions struct {
	*RootOptions
	Title        string
	Description  string
	Family       string
	CreatedBy    string
	Type         string
	Metric       string
	Target       float64
	Difficulty   string
	Participants []string
	Milestones   []float64
	Recurring    string
	DurationDays int
	Days         int
	Start        bool
}

func newGoalCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GoalCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft goal",
		Long: `Create a goal in draft status.

Examples:
  questcore goal create --title "Kitchen crew" --type collective \
    --metric quest_count --target 20 --participant alice --participant bob
  questcore goal create --title "Race" --type competitive --metric xp_total \
    --target 500 --participant alice,bob --difficulty hard --start`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoalCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "goal title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "goal description")
	cmd.Flags().StringVar(&opts.Family, "family", "", "family id")
	cmd.Flags().StringVar(&opts.CreatedBy, "created-by", "", "creator id")
	cmd.Flags().StringVar(&opts.Type, "type", string(goal.TypeCollective), "collective|individual|competitive|cooperative")
	cmd.Flags().StringVar(&opts.Metric, "metric", string(goal.MetricQuestCount), "quest_count|xp_total|streak_days|badges_earned|custom")
	cmd.Flags().Float64Var(&opts.Target, "target", 0, "target value")
	cmd.Flags().StringVar(&opts.Difficulty, "difficulty", "", "easy|medium|hard|epic (default medium)")
	cmd.Flags().StringSliceVar(&opts.Participants, "participant", nil, "participant id (repeatable)")
	cmd.Flags().Float64SliceVar(&opts.Milestones, "milestone", nil, "milestone threshold percentage (repeatable)")
	cmd.Flags().StringVar(&opts.Recurring, "recurring", "", "daily|weekly|monthly")
	cmd.Flags().IntVar(&opts.DurationDays, "duration-days", 0, "length of each recurring goal in days (default 7)")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "end the goal this many days after creation (default 7 after start)")
	cmd.Flags().BoolVar(&opts.Start, "start", false, "start the goal immediately")

	return cmd
}

func (o *GoalCreateOptions) params(now time.Time) goal.Params {
	p := goal.Params{
		Title:        o.Title,
		Description:  o.Description,
		FamilyID:     o.Family,
		CreatedBy:    o.CreatedBy,
		Type:         goal.Type(o.Type),
		Metric:       goal.Metric(o.Metric),
		Target:       o.Target,
		Difficulty:   goal.Difficulty(o.Difficulty),
		Participants: o.Participants,
	}
	for _, th := range o.Milestones {
		p.Milestones = append(p.Milestones, goal.Milestone{Threshold: th})
	}
	if o.Recurring != "" {
		p.Recurring = &goal.RecurringPattern{
			Type:         goal.RecurrenceType(o.Recurring),
			DurationDays: o.DurationDays,
		}
	}
	if o.Days > 0 {
		end := now.AddDate(0, 0, o.Days)
		p.EndDate = &end
	}
	return p
}

func runGoalCreate(opts *GoalCreateOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	return withService(cmd, opts.RootOptions, f, func(ctx context.Context, svc *app.Service) error {
		g, v, err := svc.CreateGoal(ctx, opts.params(time.Now()))
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to create goal", err, nil)
		}
		if !v.IsValid {
			return f.Fail(ExitCommandError, ErrCodeValidation, "goal validation failed", nil, v.Errors)
		}
		f.VerboseLog("created goal %s", g.ID)

		if opts.Start {
			g, err = svc.StartGoal(ctx, g.ID)
			if err != nil {
				return goalFailure(f, "failed to start goal", err)
			}
		}
		return f.Success(newGoalView(g))
	})
}

func newGoalShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <goal-id>",
		Short: "Show a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withService(cmd, rootOpts, f, func(ctx context.Context, svc *app.Service) error {
				g, err := svc.LoadGoal(ctx, args[0])
				if err != nil {
					return goalFailure(f, "failed to load goal", err)
				}
				return f.Success(newGoalView(g))
			})
		},
	}
}

// GoalTransitionOptions holds flags for lifecycle commands.
type GoalTransitionOptions struct {
	*RootOptions
	Reason string
	By     string
}

func newGoalTransitionCommand(rootOpts *RootOptions, op, short string) *cobra.Command {
	opts := &GoalTransitionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   op + " <goal-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoalTransition(opts, op, args[0], cmd)
		},
	}

	switch op {
	case "pause", "cancel":
		cmd.Flags().StringVar(&opts.Reason, "reason", "", "why the goal is "+op+"d")
		fallthrough
	case "resume":
		cmd.Flags().StringVar(&opts.By, "by", "", "who made the change")
	}
	return cmd
}

func runGoalTransition(opts *GoalTransitionOptions, op, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	return withService(cmd, opts.RootOptions, f, func(ctx context.Context, svc *app.Service) error {
		var (
			g    *goal.Goal
			next *goal.Goal
			err  error
		)
		switch op {
		case "start":
			g, err = svc.StartGoal(ctx, id)
		case "pause":
			g, err = svc.PauseGoal(ctx, id, opts.Reason, opts.By)
		case "resume":
			g, err = svc.ResumeGoal(ctx, id, opts.By)
		case "cancel":
			g, err = svc.CancelGoal(ctx, id, opts.Reason, opts.By)
		case "complete":
			g, next, err = svc.CompleteGoal(ctx, id, map[string]any{"trigger": "manual"})
		}
		if err != nil {
			return goalFailure(f, fmt.Sprintf("failed to %s goal", op), err)
		}

		view := newGoalView(g)
		if next != nil {
			view.NextGoalID = next.ID
		}
		return f.Success(view)
	})
}

// GoalContributeOptions holds flags for goal contribute.
type GoalContributeOptions struct {
	*RootOptions
	Participant string
	Value       float64
}

func newGoalContributeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GoalContributeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "contribute <goal-id>",
		Short: "Record progress from a participant",
		Long: `Record progress from a participant.

A rejected update (goal not active, not a participant, goal expired,
invalid value) is printed and exits with code 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoalContribute(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Participant, "participant", "", "participant id")
	cmd.Flags().Float64Var(&opts.Value, "value", 1, "progress amount")
	_ = cmd.MarkFlagRequired("participant")

	return cmd
}

func runGoalContribute(opts *GoalContributeOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	return withService(cmd, opts.RootOptions, f, func(ctx context.Context, svc *app.Service) error {
		res, g, err := svc.Contribute(ctx, id, opts.Participant, opts.Value, map[string]any{"source": "cli"})
		if err != nil {
			return goalFailure(f, "failed to update goal", err)
		}

		view := ContributionView{GoalID: id, Status: g.Status, Result: res}
		if !res.Updated {
			return f.Fail(ExitFailure, ErrCodeRejected, "update rejected", errors.New(res.Reason), view)
		}
		return f.Success(view)
	})
}

// goalFailure maps service errors to exit codes.
func goalFailure(f *OutputFormatter, message string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return f.Fail(ExitCommandError, ErrCodeNotFound, message, err, nil)
	case goal.IsInvalidState(err):
		return f.Fail(ExitFailure, ErrCodeInvalidState, message, err, nil)
	default:
		return f.Fail(ExitCommandError, ErrCodeStore, message, err, nil)
	}
}
