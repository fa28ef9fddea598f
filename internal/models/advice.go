package models

// Advice AI 写作建议
type Advice struct {
	Summary        string   `json:"summary"`
	Tags           []string `json:"tags"`
	ImprovementTip string   `json:"improvementTip"`
}
