package model

type RiskTier int

const (
	RISK_LOW RiskTier = iota
	RISK_MEDIUM
	RISK_HIGH
	RISK_CRITICAL
)

func (t RiskTier) String() string {
	switch t {
	case RISK_LOW:
		return "low"
	case RISK_MEDIUM:
		return "medium"
	case RISK_HIGH:
		return "high"
	case RISK_CRITICAL:
		return "critical"
	}
	return "unknown"
}

func (t RiskTier) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func ParseRiskTier(s string) (RiskTier, bool) {
	switch s {
	case "low":
		return RISK_LOW, true
	case "medium":
		return RISK_MEDIUM, true
	case "high":
		return RISK_HIGH, true
	case "critical":
		return RISK_CRITICAL, true
	}
	return RISK_LOW, false
}

func (t *RiskTier) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"medium"`:
		*t = RISK_MEDIUM
	case `"high"`:
		*t = RISK_HIGH
	case `"critical"`:
		*t = RISK_CRITICAL
	default:
		*t = RISK_LOW
	}
	return nil
}

// SideEffect is the declared side-effect category of an agent action.
type SideEffect string

const (
	SIDE_EFFECT_READ_ONLY     SideEffect = "read-only"
	SIDE_EFFECT_INTERNAL      SideEffect = "internal-write"
	SIDE_EFFECT_EXTERNAL_COMM SideEffect = "external-communication"
	SIDE_EFFECT_DESTRUCTIVE   SideEffect = "destructive-financial"
)
