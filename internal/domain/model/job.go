package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"persona-research/internal/domain"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusProcessing, JobStatusFailed},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether a job may move from one status to another.
// Terminal statuses have no outgoing edges.
func CanTransition(from, to JobStatus) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UserInputs is the research request as submitted.
type UserInputs struct {
	WebsiteURL     string   `json:"websiteUrl"`
	MarketplaceURL string   `json:"marketplaceUrl,omitempty"`
	Keywords       []string `json:"keywords"`
	CompetitorURLs []string `json:"competitorUrls,omitempty"`
}

// Job is one research request and its lifecycle.
type Job struct {
	ID          string
	Status      JobStatus
	Inputs      UserInputs
	Dispatched  []SourceKey
	Persona     *PersonaDocument
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewJob validates the inputs and constructs a queued job with a fresh id.
func NewJob(in UserInputs) (*Job, error) {
	norm, err := NormalizeInputs(in)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Job{
		ID:        ulid.Make().String(),
		Status:    JobStatusQueued,
		Inputs:    norm,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition moves the job to the given status, stamping CompletedAt on terminal states.
func (j *Job) Transition(to JobStatus, now time.Time) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = now
	if to.IsTerminal() {
		t := now
		j.CompletedAt = &t
	}
	return nil
}

// ApplicableSources lists every collector slot the job's inputs call for.
// The marketplace slot is present only when a marketplace URL was supplied.
func (j *Job) ApplicableSources() []SourceKey {
	out := []SourceKey{SourceWebsite}
	if j.Inputs.MarketplaceURL != "" {
		out = append(out, SourceMarketplace)
	}
	out = append(out, SourceDiscussion, SourceVideo)
	for i := range j.Inputs.CompetitorURLs {
		out = append(out, CompetitorSource(i+1))
	}
	return out
}

// KnownSources lists every slot the status view reports for this job,
// whether or not it was dispatched.
func (j *Job) KnownSources() []SourceKey {
	out := append([]SourceKey{}, CoreSources...)
	out = append(out, SourcePersona)
	for i := range j.Inputs.CompetitorURLs {
		out = append(out, CompetitorSource(i+1))
	}
	return out
}

func (j *Job) WasDispatched(k SourceKey) bool {
	for _, d := range j.Dispatched {
		if d == k {
			return true
		}
	}
	return false
}

// NormalizeInputs trims and validates raw inputs.
func NormalizeInputs(in UserInputs) (UserInputs, error) {
	var out UserInputs
	site, err := normalizeURL(in.WebsiteURL)
	if err != nil {
		return out, fmt.Errorf("%w: websiteUrl: %v", domain.ErrInvalidArgument, err)
	}
	out.WebsiteURL = site

	if strings.TrimSpace(in.MarketplaceURL) != "" {
		m, err := normalizeURL(in.MarketplaceURL)
		if err != nil {
			return out, fmt.Errorf("%w: marketplaceUrl: %v", domain.ErrInvalidArgument, err)
		}
		out.MarketplaceURL = m
	}

	for i, raw := range in.CompetitorURLs {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		c, err := normalizeURL(raw)
		if err != nil {
			return out, fmt.Errorf("%w: competitorUrls[%d]: %v", domain.ErrInvalidArgument, i, err)
		}
		out.CompetitorURLs = append(out.CompetitorURLs, c)
	}

	out.Keywords = ParseKeywords(strings.Join(in.Keywords, ","))
	if len(out.Keywords) == 0 {
		return out, fmt.Errorf("%w: keywords: at least one keyword is required", domain.ErrInvalidArgument)
	}
	return out, nil
}

// ParseKeywords splits free text on commas, semicolons, pipes and newlines,
// dropping blanks and case-insensitive duplicates while keeping first-seen order.
func ParseKeywords(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', ';', '|', '\n', '\r':
			return true
		}
		return false
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		kw := strings.Join(strings.Fields(f), " ")
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func normalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("is required")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	return u.String(), nil
}
