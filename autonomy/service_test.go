package autonomy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/warden-io/warden/config"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence/inmem"
)

func newTestService() *Service {
	return NewService(inmem.NewStorage().Autonomy(), config.Default().Autonomy)
}

func TestAutonomy(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, s *Service){
		"test low tier always auto executes":      testLowTierAuto,
		"test unseen action gates":                testUnseenActionGates,
		"test promotion needs confidence and use": testPromotion,
		"test rejection demotes":                  testRejectionDemotes,
		"test confidence clamped":                 testConfidenceClamped,
		"test critical pinned to approval":        testCriticalPinned,
		"test explicit override":                  testExplicitOverride,
		"test reset clears learning":              testResetClearsLearning,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newTestService())
		})
	}
}

func testLowTierAuto(t *testing.T, s *Service) {
	require.True(t, s.IsAutoExecutable(context.Background(), "ws-1", "read-doc", model.RISK_LOW))
}

func testUnseenActionGates(t *testing.T, s *Service) {
	require.False(t, s.IsAutoExecutable(context.Background(), "ws-1", "send-email", model.RISK_MEDIUM))
}

func testPromotion(t *testing.T, s *Service) {
	ctx := context.Background()
	// defaults: +8 per approval, promotion at confidence 60 with 5 approvals
	for i := 0; i < 4; i++ {
		pref, err := s.RecordDecision(ctx, "ws-1", "send-email", true)
		require.NoError(t, err)
		require.False(t, pref.AutoExecute)
	}
	pref, err := s.RecordDecision(ctx, "ws-1", "send-email", true)
	require.NoError(t, err)
	require.True(t, pref.AutoExecute)
	require.Equal(t, 90, pref.Confidence)
	require.True(t, s.IsAutoExecutable(ctx, "ws-1", "send-email", model.RISK_MEDIUM))
}

func testRejectionDemotes(t *testing.T, s *Service) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.RecordDecision(ctx, "ws-1", "send-email", true)
		require.NoError(t, err)
	}
	// 90 -> 75 -> 60: still promoted, one more drops under the bar
	pref, _ := s.RecordDecision(ctx, "ws-1", "send-email", false)
	require.True(t, pref.AutoExecute)
	pref, _ = s.RecordDecision(ctx, "ws-1", "send-email", false)
	require.True(t, pref.AutoExecute)
	pref, _ = s.RecordDecision(ctx, "ws-1", "send-email", false)
	require.False(t, pref.AutoExecute)
	require.Equal(t, 45, pref.Confidence)
}

func testConfidenceClamped(t *testing.T, s *Service) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		pref, err := s.RecordDecision(ctx, "ws-1", "send-email", true)
		require.NoError(t, err)
		require.LessOrEqual(t, pref.Confidence, 100)
	}
	for i := 0; i < 20; i++ {
		pref, err := s.RecordDecision(ctx, "ws-1", "send-email", false)
		require.NoError(t, err)
		require.GreaterOrEqual(t, pref.Confidence, 0)
	}
}

func testCriticalPinned(t *testing.T, s *Service) {
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := s.RecordDecision(ctx, "ws-1", "issue-refund", true)
		require.NoError(t, err)
	}
	// fully promoted, critical still gates under the default config
	require.False(t, s.IsAutoExecutable(ctx, "ws-1", "issue-refund", model.RISK_CRITICAL))
	require.True(t, s.IsAutoExecutable(ctx, "ws-1", "issue-refund", model.RISK_HIGH))
}

func testExplicitOverride(t *testing.T, s *Service) {
	ctx := context.Background()
	pref, err := s.SetAutoExecute(ctx, "ws-1", "send-email", true)
	require.NoError(t, err)
	require.True(t, pref.AutoExecute)
	require.Equal(t, model.NEUTRAL_CONFIDENCE, pref.Confidence)
	require.True(t, s.IsAutoExecutable(ctx, "ws-1", "send-email", model.RISK_HIGH))
}

func testResetClearsLearning(t *testing.T, s *Service) {
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := s.RecordDecision(ctx, "ws-1", "send-email", true)
		require.NoError(t, err)
	}
	_, err := s.RecordDecision(ctx, "ws-1", "update-crm", true)
	require.NoError(t, err)

	cleared, err := s.ResetAll(ctx, "ws-1")
	require.NoError(t, err)
	require.Equal(t, 2, cleared)

	require.False(t, s.IsAutoExecutable(ctx, "ws-1", "send-email", model.RISK_MEDIUM))
	prefs, err := s.ListPreferences(ctx, "ws-1")
	require.NoError(t, err)
	for _, pref := range prefs {
		require.Equal(t, model.NEUTRAL_CONFIDENCE, pref.Confidence)
		require.Zero(t, pref.ApprovalCount)
		require.Zero(t, pref.RejectionCount)
		require.False(t, pref.AutoExecute)
	}
}
