package types //nolint:revive // package name is intentional

// CapabilityDescriptor is returned by GET /v1/chat/completions.
type CapabilityDescriptor struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
	Features  Features          `json:"features"`
}

// Features lists what the completion endpoint supports.
type Features struct {
	MultiLanguage         bool `json:"multi_language"`
	CulturalContext       bool `json:"cultural_context"`
	IndianRegionalSupport bool `json:"indian_regional_support"`
}
