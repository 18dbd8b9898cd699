package badge

import (
	"fmt"

	"github.com/roach88/questcore/internal/stats"
)

// Category groups badges for display.
type Category string

const (
	CategoryMilestone Category = "milestone"
	CategoryXP        Category = "xp"
	CategoryStreak    Category = "streak"
	CategoryLevel     Category = "level"
	CategoryFamily    Category = "family"
	CategorySpecial   Category = "special"
)

// Rarity ranks how hard a badge is to earn.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// ValidRarities lists the accepted rarities in ascending order.
var ValidRarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}

// Definition is the immutable catalog entry for a badge.
type Definition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
	Category    Category  `json:"category"`
	Rarity      Rarity    `json:"rarity"`
	XPReward    int       `json:"xpReward"`
	Condition   Condition `json:"condition"`
}

// Catalog is an ordered, validated set of definitions. It is never mutated
// after construction and is safe to share between goroutines.
type Catalog struct {
	defs []Definition
	byID map[string]int
}

// NewCatalog validates defs and returns a catalog preserving their order.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]Definition, len(defs)),
		byID: make(map[string]int, len(defs)),
	}
	copy(c.defs, defs)

	for i, d := range c.defs {
		if d.ID == "" {
			return nil, fmt.Errorf("badge %d: id is required", i)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("badge %q: duplicate id", d.ID)
		}
		if d.XPReward < 0 {
			return nil, fmt.Errorf("badge %q: xp reward must not be negative", d.ID)
		}
		if !validRarity(d.Rarity) {
			return nil, fmt.Errorf("badge %q: unknown rarity %q", d.ID, d.Rarity)
		}
		if err := d.Condition.Validate(); err != nil {
			return nil, fmt.Errorf("badge %q: %w", d.ID, err)
		}
		c.byID[d.ID] = i
	}
	return c, nil
}

// MustCatalog is NewCatalog that panics on invalid input. For static tables.
func MustCatalog(defs []Definition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// Definitions returns a copy of the catalog in order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Lookup returns the definition for id.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

func validRarity(r Rarity) bool {
	for _, v := range ValidRarities {
		if v == r {
			return true
		}
	}
	return false
}

var defaultCatalog = MustCatalog([]Definition{
	{ID: "first_quest", Name: "First Steps", Description: "Complete your first quest", Icon: "footprints",
		Category: CategoryMilestone, Rarity: RarityCommon, XPReward: 25, Condition: AtLeast(stats.QuestsCompleted, 1)},
	{ID: "quest_10", Name: "Helping Hand", Description: "Complete 10 quests", Icon: "hand",
		Category: CategoryMilestone, Rarity: RarityCommon, XPReward: 50, Condition: AtLeast(stats.QuestsCompleted, 10)},
	{ID: "quest_50", Name: "Quest Champion", Description: "Complete 50 quests", Icon: "trophy",
		Category: CategoryMilestone, Rarity: RarityRare, XPReward: 250, Condition: AtLeast(stats.QuestsCompleted, 50)},
	{ID: "quest_100", Name: "Household Hero", Description: "Complete 100 quests", Icon: "shield",
		Category: CategoryMilestone, Rarity: RarityEpic, XPReward: 500, Condition: AtLeast(stats.QuestsCompleted, 100)},
	{ID: "xp_1000", Name: "Rising Star", Description: "Earn 1,000 XP", Icon: "star",
		Category: CategoryXP, Rarity: RarityUncommon, XPReward: 100, Condition: AtLeast(stats.TotalXP, 1000)},
	{ID: "xp_5000", Name: "Shooting Star", Description: "Earn 5,000 XP", Icon: "sparkles",
		Category: CategoryXP, Rarity: RarityEpic, XPReward: 400, Condition: AtLeast(stats.TotalXP, 5000)},
	{ID: "level_5", Name: "Apprentice", Description: "Reach level 5", Icon: "medal",
		Category: CategoryLevel, Rarity: RarityUncommon, XPReward: 75, Condition: AtLeast(stats.Level, 5)},
	{ID: "level_10", Name: "Expert", Description: "Reach level 10", Icon: "crown",
		Category: CategoryLevel, Rarity: RarityRare, XPReward: 200, Condition: AtLeast(stats.Level, 10)},
	{ID: "streak_3", Name: "On a Roll", Description: "Complete quests 3 days in a row", Icon: "flame",
		Category: CategoryStreak, Rarity: RarityCommon, XPReward: 30, Condition: AtLeast(stats.CurrentStreak, 3)},
	{ID: "streak_7", Name: "Week Warrior", Description: "Complete quests 7 days in a row", Icon: "calendar",
		Category: CategoryStreak, Rarity: RarityUncommon, XPReward: 100, Condition: AtLeast(stats.CurrentStreak, 7)},
	{ID: "streak_30", Name: "Unstoppable", Description: "Keep a 30 day streak", Icon: "zap",
		Category: CategoryStreak, Rarity: RarityLegendary, XPReward: 1000, Condition: AtLeast(stats.LongestStreak, 30)},
	{ID: "family_goal_1", Name: "Team Player", Description: "Complete a family goal", Icon: "users",
		Category: CategoryFamily, Rarity: RarityCommon, XPReward: 75, Condition: AtLeast(stats.FamilyGoalsCompleted, 1)},
	{ID: "family_goal_5", Name: "Family Champion", Description: "Complete 5 family goals", Icon: "home",
		Category: CategoryFamily, Rarity: RarityEpic, XPReward: 300, Condition: AtLeast(stats.FamilyGoalsCompleted, 5)},
	{ID: "weekend_warrior", Name: "Weekend Warrior", Description: "Complete 10 quests on weekends", Icon: "sun",
		Category: CategorySpecial, Rarity: RarityUncommon, XPReward: 80, Condition: AtLeast(stats.WeekendQuests, 10)},
	{ID: "hard_worker", Name: "Hard Worker", Description: "Complete 10 hard quests", Icon: "hammer",
		Category: CategorySpecial, Rarity: RarityRare, XPReward: 150, Condition: AtLeast(stats.HardQuestsCompleted, 10)},
	{ID: "early_bird", Name: "Early Bird", Description: "Complete a quest before 7am", Icon: "sunrise",
		Category: CategorySpecial, Rarity: RarityUncommon, XPReward: 40, Condition: FlagSet(stats.EarlyMorningQuest)},
	{ID: "night_owl", Name: "Night Owl", Description: "Complete a quest after 10pm", Icon: "moon",
		Category: CategorySpecial, Rarity: RarityUncommon, XPReward: 40, Condition: FlagSet(stats.LateNightQuest)},
})

// DefaultCatalog returns the built-in badge catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}
