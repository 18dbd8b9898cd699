package badge

import (
	"time"

	"github.com/roach88/questcore/internal/stats"
)

// Record is a user's mutable state for one catalog badge.
type Record struct {
	BadgeID    string     `json:"badgeId"`
	IsUnlocked bool       `json:"isUnlocked"`
	Progress   float64    `json:"progress"`
	DateEarned *time.Time `json:"dateEarned,omitempty"`
}

// Badge joins a catalog definition with a user's record.
type Badge struct {
	Definition
	Record
}

// UnlockResult is the outcome of CheckBadgeUnlocks.
type UnlockResult struct {
	// AllBadges is the full collection after evaluation, catalog order first.
	AllBadges []Record `json:"allBadges"`

	// NewlyUnlocked lists badges unlocked by this call, in catalog order.
	NewlyUnlocked []Badge `json:"newlyUnlocked"`

	// TotalXPReward is the sum of XPReward over NewlyUnlocked.
	TotalXPReward int `json:"totalXPReward"`
}

// Engine evaluates a catalog against stats snapshots.
type Engine struct {
	catalog *Catalog
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used to stamp dateEarned. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine over catalog. A nil catalog means DefaultCatalog.
func NewEngine(catalog *Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	e := &Engine{catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// InitializeUserBadges returns one locked record per catalog entry.
func (e *Engine) InitializeUserBadges() []Record {
	records := make([]Record, 0, e.catalog.Len())
	for _, d := range e.catalog.defs {
		records = append(records, Record{BadgeID: d.ID})
	}
	return records
}

// CalculateProgress returns 0-100 for how close s is to unlocking def.
func (e *Engine) CalculateProgress(def Definition, s stats.Snapshot) float64 {
	return def.Condition.Progress(s)
}

// CheckBadgeUnlocks evaluates every locked badge against s.
//
// Unlocked records are copied through untouched, so repeated calls with the
// same snapshot are idempotent and an unlock can never be reverted. Catalog
// badges missing from records are evaluated as if locked. Records whose id
// is not in the catalog are kept, unchanged, after the catalog entries.
//
// The input slice is not modified.
func (e *Engine) CheckBadgeUnlocks(s stats.Snapshot, records []Record) UnlockResult {
	existing := make(map[string]Record, len(records))
	for _, r := range records {
		if _, seen := existing[r.BadgeID]; !seen {
			existing[r.BadgeID] = r
		}
	}

	result := UnlockResult{
		AllBadges:     make([]Record, 0, len(records)),
		NewlyUnlocked: []Badge{},
	}

	var now time.Time
	for _, def := range e.catalog.defs {
		rec, ok := existing[def.ID]
		if !ok {
			rec = Record{BadgeID: def.ID}
		}

		if !rec.IsUnlocked {
			rec.Progress = def.Condition.Progress(s)
			if def.Condition.Satisfied(s) {
				if now.IsZero() {
					now = e.now()
				}
				earned := now
				rec.IsUnlocked = true
				rec.Progress = 100
				rec.DateEarned = &earned
				result.NewlyUnlocked = append(result.NewlyUnlocked, Badge{Definition: def, Record: rec})
				result.TotalXPReward += def.XPReward
			}
		}
		result.AllBadges = append(result.AllBadges, rec)
	}

	for _, r := range records {
		if _, known := e.catalog.byID[r.BadgeID]; !known {
			result.AllBadges = append(result.AllBadges, r)
		}
	}

	return result
}

// Join pairs records with their definitions, in catalog order. Records for
// unknown ids are dropped; catalog badges without a record are omitted.
func (e *Engine) Join(records []Record) []Badge {
	byID := make(map[string]Record, len(records))
	for _, r := range records {
		byID[r.BadgeID] = r
	}

	out := make([]Badge, 0, len(records))
	for _, def := range e.catalog.defs {
		if r, ok := byID[def.ID]; ok {
			out = append(out, Badge{Definition: def, Record: r})
		}
	}
	return out
}

// CountUnlocked returns how many records are unlocked. Feeds the
// badgesEarned counter of a stats snapshot.
func CountUnlocked(records []Record) int {
	n := 0
	for _, r := range records {
		if r.IsUnlocked {
			n++
		}
	}
	return n
}
