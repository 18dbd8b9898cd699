package goal

// CalculateXPReward returns floor(200 * multiplier * bonus). The bonus is
// 1.2 for a collective goal whose total reached target, 1.3 for an
// individual goal every participant finished, and 1.0 otherwise.
func (g *Goal) CalculateXPReward() int {
	mult, ok := multiplierTenths[g.Difficulty]
	if !ok {
		mult = 10
	}
	return BaseXPReward * mult * g.completionBonusTenths() / 100
}

func (g *Goal) completionBonusTenths() int {
	switch p := g.Progress.(type) {
	case *CollectiveProgress:
		if p.Total >= g.Target {
			return 12
		}
	case *IndividualProgress:
		if p.Target > 0 && p.Completed == p.Target {
			return 13
		}
	}
	return 10
}
