package risk

import (
	"github.com/warden-io/warden/model"
)

// Classifier maps an action and its declared side-effect category to a
// fixed risk tier. The mapping is a static policy table, never learned;
// per-action overrides come from configuration.
type Classifier struct {
	overrides map[string]model.RiskTier
}

var categoryTiers = map[model.SideEffect]model.RiskTier{
	model.SIDE_EFFECT_READ_ONLY:     model.RISK_LOW,
	model.SIDE_EFFECT_INTERNAL:      model.RISK_MEDIUM,
	model.SIDE_EFFECT_EXTERNAL_COMM: model.RISK_HIGH,
	model.SIDE_EFFECT_DESTRUCTIVE:   model.RISK_CRITICAL,
}

func NewClassifier(overrides map[string]string) *Classifier {
	c := &Classifier{overrides: make(map[string]model.RiskTier)}
	for action, tier := range overrides {
		c.overrides[action] = tierFromString(tier)
	}
	return c
}

// Classify never fails; an action with no override and no recognized
// category lands on high so unknown actions gate rather than run free.
func (c *Classifier) Classify(action string, effect model.SideEffect) model.RiskTier {
	if tier, ok := c.overrides[action]; ok {
		return tier
	}
	if tier, ok := categoryTiers[effect]; ok {
		return tier
	}
	return model.RISK_HIGH
}

func tierFromString(s string) model.RiskTier {
	switch s {
	case "low":
		return model.RISK_LOW
	case "medium":
		return model.RISK_MEDIUM
	case "critical":
		return model.RISK_CRITICAL
	default:
		return model.RISK_HIGH
	}
}
