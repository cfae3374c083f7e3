package config

type StorageType string

const (
	STORAGE_TYPE_REDIS StorageType = "redis"
	STORAGE_TYPE_INMEM StorageType = "memory"
)

type Config struct {
	RedisConfig      RedisStorageConfig
	HttpPort         int
	StorageType      StorageType
	DispatchCapacity int
	Autonomy         AutonomyConfig
	Engine           EngineConfig
	AuditLogFile     string
	// RiskOverrides maps an action identifier to a tier name, taking
	// precedence over the side-effect classification.
	RiskOverrides map[string]string
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

// AutonomyConfig holds the tunables of the learned trust model. Promotion
// thresholds are configuration, not constants, so operators can retune the
// trust boundary without a deploy.
type AutonomyConfig struct {
	ApprovalReward           int
	RejectionPenalty         int
	PromotionConfidence      int
	PromotionMinApprovals    int
	CriticalRequiresApproval bool
}

type EngineConfig struct {
	// MaxAttemptsPerExecution bounds total step attempts in one execution
	// as a guard against graphs edited into cycles after save validation.
	MaxAttemptsPerExecution int
	ApprovalExpirySeconds   int
}

func Default() Config {
	return Config{
		HttpPort:         8080,
		StorageType:      STORAGE_TYPE_INMEM,
		DispatchCapacity: 512,
		Autonomy: AutonomyConfig{
			ApprovalReward:           8,
			RejectionPenalty:         15,
			PromotionConfidence:      60,
			PromotionMinApprovals:    5,
			CriticalRequiresApproval: true,
		},
		Engine: EngineConfig{
			MaxAttemptsPerExecution: 1000,
			ApprovalExpirySeconds:   0,
		},
	}
}
