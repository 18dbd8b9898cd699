package badge

import (
	"sort"
	"time"
)

// RecentWindow is how far back RecentlyUnlocked looks.
const RecentWindow = 7 * 24 * time.Hour

func filter(badges []Badge, keep func(Badge) bool) []Badge {
	out := []Badge{}
	for _, b := range badges {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// ByCategory returns badges in category c.
func ByCategory(badges []Badge, c Category) []Badge {
	return filter(badges, func(b Badge) bool { return b.Category == c })
}

// ByRarity returns badges of rarity r.
func ByRarity(badges []Badge, r Rarity) []Badge {
	return filter(badges, func(b Badge) bool { return b.Rarity == r })
}

// Unlocked returns the unlocked subset.
func Unlocked(badges []Badge) []Badge {
	return filter(badges, func(b Badge) bool { return b.IsUnlocked })
}

// Locked returns the locked subset.
func Locked(badges []Badge) []Badge {
	return filter(badges, func(b Badge) bool { return !b.IsUnlocked })
}

// NextToUnlock returns up to n locked badges with the highest progress.
// Ties keep their input order.
func NextToUnlock(badges []Badge, n int) []Badge {
	locked := Locked(badges)
	sort.SliceStable(locked, func(i, j int) bool {
		return locked[i].Progress > locked[j].Progress
	})
	if n < 0 {
		n = 0
	}
	if len(locked) > n {
		locked = locked[:n]
	}
	return locked
}

// RecentlyUnlocked returns badges earned within RecentWindow before now.
func RecentlyUnlocked(badges []Badge, now time.Time) []Badge {
	cutoff := now.Add(-RecentWindow)
	return filter(badges, func(b Badge) bool {
		return b.IsUnlocked && b.DateEarned != nil && !b.DateEarned.Before(cutoff)
	})
}
