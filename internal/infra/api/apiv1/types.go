package apiv1

import (
	"encoding/json"
	"strings"
	"time"

	"persona-research/internal/domain/model"
)

// KeywordList accepts either a JSON array or a single delimited string.
type KeywordList []string

func (k *KeywordList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*k = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*k = model.ParseKeywords(s)
	return nil
}

type CreateJobRequest struct {
	WebsiteURL     string      `json:"websiteUrl"`
	MarketplaceURL string      `json:"marketplaceUrl"`
	AmazonURL      string      `json:"amazonUrl"` // older clients
	Keywords       KeywordList `json:"keywords"`
	CompetitorURLs []string    `json:"competitorUrls"`
}

func (r CreateJobRequest) Inputs() model.UserInputs {
	market := r.MarketplaceURL
	if strings.TrimSpace(market) == "" {
		market = r.AmazonURL
	}
	return model.UserInputs{
		WebsiteURL:     r.WebsiteURL,
		MarketplaceURL: market,
		Keywords:       r.Keywords,
		CompetitorURLs: r.CompetitorURLs,
	}
}

type CreateJobResponse struct {
	JobID  string          `json:"jobId"`
	Status model.JobStatus `json:"status"`
}

type JobDTO struct {
	JobID       string                 `json:"jobId"`
	Status      model.JobStatus        `json:"status"`
	Inputs      model.UserInputs       `json:"inputs"`
	Sources     []model.SourceKey      `json:"dispatchedSources"`
	Persona     *model.PersonaDocument `json:"persona,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
}

func toJobDTO(j *model.Job) JobDTO {
	sources := j.Dispatched
	if sources == nil {
		sources = []model.SourceKey{}
	}
	return JobDTO{
		JobID:       j.ID,
		Status:      j.Status,
		Inputs:      j.Inputs,
		Sources:     sources,
		Persona:     j.Persona,
		Error:       j.LastError,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		CompletedAt: j.CompletedAt,
	}
}

type DebugResponse struct {
	Status      *model.JobStatusView                       `json:"status"`
	Results     map[model.SourceKey]*model.CollectorResult `json:"results"`
	GeneratedAt time.Time                                  `json:"generatedAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
