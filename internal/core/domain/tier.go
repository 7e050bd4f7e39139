package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tier decides how many screens a session may show at once.
type Tier string

const (
	TierFree    Tier = "free"
	TierTrial   Tier = "trial"
	TierPremium Tier = "premium"
)

func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case "", TierFree:
		return TierFree, nil
	case TierTrial:
		return TierTrial, nil
	case TierPremium:
		return TierPremium, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// EffectiveTier downgrades a trial whose end date has passed.
func EffectiveTier(tier Tier, trialEndsAt, now time.Time) Tier {
	if tier == TierTrial && !trialEndsAt.IsZero() && !trialEndsAt.After(now) {
		return TierFree
	}
	return tier
}

type TierCapacities struct {
	Free    int
	Trial   int
	Premium int
}

func DefaultTierCapacities() TierCapacities {
	return TierCapacities{Free: 2, Trial: 4, Premium: 8}
}

func (c TierCapacities) For(tier Tier) int {
	switch tier {
	case TierPremium:
		return c.Premium
	case TierTrial:
		return c.Trial
	default:
		return c.Free
	}
}
