package domain

// xpPerLevel is the flat XP cost of each level.
const xpPerLevel = 100

// RewardDelta is the game-state mutation a verdict maps to.
type RewardDelta struct {
	Gold int
	XP   int
	HP   int
}

// RuleFor returns the fixed reward rule for a verdict: a correct answer pays
// gold and XP, an incorrect one costs HP. The table is a business rule, not
// derived from question content.
func RuleFor(v Verdict) RewardDelta {
	switch v {
	case VerdictCorrect:
		return RewardDelta{Gold: 10, XP: 20}
	case VerdictIncorrect:
		return RewardDelta{HP: -10}
	default:
		return RewardDelta{}
	}
}

// ApplyDelta returns a copy of p with the delta applied. HP is clamped to
// [0, MaxHP] and the level is recomputed from total XP, so the function is a
// pure state transition usable for both apply and rollback-by-snapshot.
func ApplyDelta(p Participant, d RewardDelta) Participant {
	p.Gold += d.Gold
	if p.Gold < 0 {
		p.Gold = 0
	}
	p.XP += d.XP
	if p.XP < 0 {
		p.XP = 0
	}
	p.HP += d.HP
	if p.HP < 0 {
		p.HP = 0
	}
	if p.HP > p.MaxHP {
		p.HP = p.MaxHP
	}
	p.Level = p.XP/xpPerLevel + 1
	return p
}
