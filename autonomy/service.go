package autonomy

import (
	"context"

	"github.com/warden-io/warden/config"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"go.uber.org/zap"
)

// Service is the learned trust model: a per-(workspace, action) confidence
// record deciding whether an action may run without human sign-off.
type Service struct {
	storage persistence.AutonomyStorage
	conf    config.AutonomyConfig
}

func NewService(storage persistence.AutonomyStorage, conf config.AutonomyConfig) *Service {
	return &Service{
		storage: storage,
		conf:    conf,
	}
}

// IsAutoExecutable is true for low-tier actions, and for higher tiers only
// when the stored preference has autoExecute set. Critical actions can be
// pinned to always gate via configuration.
func (s *Service) IsAutoExecutable(ctx context.Context, workspace string, action string, tier model.RiskTier) bool {
	if tier == model.RISK_LOW {
		return true
	}
	if tier == model.RISK_CRITICAL && s.conf.CriticalRequiresApproval {
		return false
	}
	pref, err := s.storage.Get(ctx, workspace, action)
	if err != nil {
		// first encounter, nothing learned yet
		return false
	}
	return pref.AutoExecute
}

// RecordDecision feeds one human approval or rejection into the model.
// Confidence moves by a capped additive rule: consistent approval is
// rewarded, any rejection penalized, always clamped to [0, 100]. The
// auto-execute flag is promoted once confidence and sample size clear the
// configured thresholds, and dropped when a rejection pulls confidence
// back under the bar.
func (s *Service) RecordDecision(ctx context.Context, workspace string, action string, approved bool) (*model.AutonomyPreference, error) {
	pref, err := s.storage.Update(ctx, workspace, action, func(pref *model.AutonomyPreference) {
		if approved {
			pref.ApprovalCount++
			pref.Confidence = clamp(pref.Confidence + s.conf.ApprovalReward)
			if pref.Confidence >= s.conf.PromotionConfidence && pref.ApprovalCount >= s.conf.PromotionMinApprovals {
				pref.AutoExecute = true
			}
		} else {
			pref.RejectionCount++
			pref.Confidence = clamp(pref.Confidence - s.conf.RejectionPenalty)
			if pref.Confidence < s.conf.PromotionConfidence {
				pref.AutoExecute = false
			}
		}
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("autonomy decision recorded",
		zap.String("workspace", workspace),
		zap.String("action", action),
		zap.Bool("approved", approved),
		zap.Int("confidence", pref.Confidence),
		zap.Bool("autoExecute", pref.AutoExecute))
	return pref, nil
}

// SetAutoExecute is the explicit human override, independent of learned
// confidence.
func (s *Service) SetAutoExecute(ctx context.Context, workspace string, action string, enabled bool) (*model.AutonomyPreference, error) {
	return s.storage.Update(ctx, workspace, action, func(pref *model.AutonomyPreference) {
		pref.AutoExecute = enabled
	})
}

func (s *Service) ListPreferences(ctx context.Context, workspace string) ([]model.AutonomyPreference, error) {
	return s.storage.List(ctx, workspace)
}

// ResetAll is a deliberate full re-learning event for the workspace: zero
// counts, neutral confidence, autoExecute off everywhere.
func (s *Service) ResetAll(ctx context.Context, workspace string) (int, error) {
	cleared, err := s.storage.ResetAll(ctx, workspace)
	if err != nil {
		return 0, err
	}
	logger.Info("autonomy preferences reset", zap.String("workspace", workspace), zap.Int("cleared", cleared))
	return cleared, nil
}

func clamp(confidence int) int {
	if confidence > 100 {
		return 100
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}
