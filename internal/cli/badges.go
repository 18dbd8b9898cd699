package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/questcore/internal/app"
	"github.com/roach88/questcore/internal/badge"
)

// BadgeList is the CLI rendering of a badge query.
type BadgeList struct {
	UserID string        `json:"userId"`
	Badges []badge.Badge `json:"badges"`
}

// WriteText renders one line per badge.
func (l BadgeList) WriteText(w io.Writer) {
	if len(l.Badges) == 0 {
		fmt.Fprintln(w, "No badges.")
		return
	}
	for _, b := range l.Badges {
		mark := " "
		if b.IsUnlocked {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %-16s %-10s %-9s %3.0f%%  %s\n",
			mark, b.ID, b.Category, b.Rarity, b.Progress, b.Name)
	}
}

// BadgesListOptions holds flags for badges list.
type BadgesListOptions struct {
	*RootOptions
	User     string
	Category string
	Rarity   string
	Unlocked bool
	Locked   bool
	Next     int
	Recent   bool
}

// NewBadgesCommand creates the badges command group.
func NewBadgesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badges",
		Short: "Query a user's badges",
	}
	cmd.AddCommand(newBadgesListCommand(rootOpts))
	return cmd
}

func newBadgesListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BadgesListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's badges",
		Long: `List a user's badges in catalog order.

Filters combine: --category and --rarity narrow the list, then
--unlocked, --locked, --next or --recent select from it.

Examples:
  questcore badges list --user alice
  questcore badges list --user alice --category streak --locked
  questcore badges list --user alice --next 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBadgesList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "user id")
	cmd.Flags().StringVar(&opts.Category, "category", "", "only badges in this category")
	cmd.Flags().StringVar(&opts.Rarity, "rarity", "", "only badges of this rarity")
	cmd.Flags().BoolVar(&opts.Unlocked, "unlocked", false, "only unlocked badges")
	cmd.Flags().BoolVar(&opts.Locked, "locked", false, "only locked badges")
	cmd.Flags().IntVar(&opts.Next, "next", 0, "the N locked badges closest to unlocking")
	cmd.Flags().BoolVar(&opts.Recent, "recent", false, "badges unlocked in the last 7 days")
	_ = cmd.MarkFlagRequired("user")
	cmd.MarkFlagsMutuallyExclusive("unlocked", "locked", "next", "recent")

	return cmd
}

func runBadgesList(opts *BadgesListOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	return withService(cmd, opts.RootOptions, f, func(ctx context.Context, svc *app.Service) error {
		badges, err := svc.Badges(ctx, opts.User)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to load badges", err, nil)
		}
		return f.Success(BadgeList{UserID: opts.User, Badges: opts.apply(badges, time.Now())})
	})
}

func (o *BadgesListOptions) apply(badges []badge.Badge, now time.Time) []badge.Badge {
	if o.Category != "" {
		badges = badge.ByCategory(badges, badge.Category(o.Category))
	}
	if o.Rarity != "" {
		badges = badge.ByRarity(badges, badge.Rarity(o.Rarity))
	}
	switch {
	case o.Unlocked:
		badges = badge.Unlocked(badges)
	case o.Locked:
		badges = badge.Locked(badges)
	case o.Next > 0:
		badges = badge.NextToUnlock(badges, o.Next)
	case o.Recent:
		badges = badge.RecentlyUnlocked(badges, now)
	}
	if badges == nil {
		badges = []badge.Badge{}
	}
	return badges
}
