package model

import "time"

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// PersonaDocument is the synthesized customer persona for a job.
type PersonaDocument struct {
	Content          string      `json:"content"`
	Confidence       Confidence  `json:"confidence"`
	Quality          float64     `json:"quality"`
	Model            string      `json:"model,omitempty"`
	SourcesUsed      []SourceKey `json:"sourcesUsed"`
	PromptTokens     int         `json:"promptTokens,omitempty"`
	CompletionTokens int         `json:"completionTokens,omitempty"`
	GeneratedAt      time.Time   `json:"generatedAt"`
}

// SynthesisInput is everything a synthesizer sees for one job.
type SynthesisInput struct {
	JobID    string
	Keywords []string
	Website  string
	Results  map[SourceKey]*CollectorResult
}

// SourcesWithData lists sources whose results carry items, in stable order.
func (in SynthesisInput) SourcesWithData(order []SourceKey) []SourceKey {
	var out []SourceKey
	for _, k := range order {
		if r := in.Results[k]; r != nil && r.Succeeded && r.HasActualData && len(r.Items) > 0 {
			out = append(out, k)
		}
	}
	return out
}
