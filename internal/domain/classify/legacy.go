package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"persona-research/internal/domain/model"
)

// Record is a stored collector outcome in one of the shapes the cache may
// hold. Older writers did not record an explicit data-presence flag; their
// shapes are normalized here and nowhere else.
type Record interface {
	shape() string
}

// Current is a result already carrying an explicit data-presence flag.
type Current struct {
	Result *model.CollectorResult
}

// Untagged is the current shape written without the hasActualData flag.
type Untagged struct {
	Result *model.CollectorResult
}

// ReviewsCollected is the marketplace shape {success, reviewsCollected, reviews}.
type ReviewsCollected struct {
	Success          *bool    `json:"success"`
	ReviewsCollected int      `json:"reviewsCollected"`
	Reviews          []string `json:"reviews"`
	Error            string   `json:"error"`
	Method           string   `json:"extractionMethod"`
}

// WebsiteInsights is the website shape carrying extracted insight lists.
type WebsiteInsights struct {
	Success           *bool    `json:"success"`
	Reviews           []string `json:"reviews"`
	ValuePropositions []string `json:"valuePropositions"`
	Features          []string `json:"features"`
	PainPoints        []string `json:"painPoints"`
	Error             string   `json:"error"`
	Method            string   `json:"extractionMethod"`
}

// HTTPStatus is the bare upstream-response shape {statusCode, itemCount}.
type HTTPStatus struct {
	StatusCode int    `json:"statusCode"`
	ItemCount  int    `json:"itemCount"`
	Error      string `json:"error"`
}

func (Current) shape() string          { return "current" }
func (Untagged) shape() string         { return "untagged" }
func (ReviewsCollected) shape() string { return "reviews_collected" }
func (WebsiteInsights) shape() string  { return "website_insights" }
func (HTTPStatus) shape() string       { return "http_status" }

var ErrUnknownShape = errors.New("unrecognized collector record shape")

// Normalize turns any record into a CollectorResult with an explicit
// data-presence flag. A nil record yields nil.
func Normalize(jobID string, src model.SourceKey, rec Record) *model.CollectorResult {
	switch r := rec.(type) {
	case nil:
		return nil
	case Current:
		return r.Result
	case *Current:
		if r == nil {
			return nil
		}
		return r.Result
	case Untagged:
		return normalizeUntagged(r.Result)
	case ReviewsCollected:
		return normalizeReviews(jobID, src, r)
	case WebsiteInsights:
		return normalizeInsights(jobID, src, r)
	case HTTPStatus:
		return normalizeHTTP(jobID, src, r)
	default:
		return &model.CollectorResult{
			JobID:  jobID,
			Source: src,
			Error:  fmt.Sprintf("%v: %T", ErrUnknownShape, rec),
		}
	}
}

func normalizeUntagged(r *model.CollectorResult) *model.CollectorResult {
	if r == nil {
		return nil
	}
	out := *r
	out.HasActualData = out.Succeeded && out.Error == "" && len(out.Items) > 0
	return &out
}

func normalizeReviews(jobID string, src model.SourceKey, r ReviewsCollected) *model.CollectorResult {
	out := &model.CollectorResult{
		JobID:            jobID,
		Source:           src,
		Succeeded:        succeeded(r.Success, r.Error),
		ExtractionMethod: orDefault(r.Method, "legacy_reviews"),
		Error:            r.Error,
	}
	for _, text := range r.Reviews {
		if strings.TrimSpace(text) != "" {
			out.Items = append(out.Items, model.Item{Text: text, Kind: "review"})
		}
	}
	// the tally is informational; only carried reviews count as data
	out.Metadata.ItemCount = max(r.ReviewsCollected, len(out.Items))
	out.HasActualData = out.Succeeded && len(out.Items) > 0
	return out
}

func normalizeInsights(jobID string, src model.SourceKey, r WebsiteInsights) *model.CollectorResult {
	out := &model.CollectorResult{
		JobID:            jobID,
		Source:           src,
		Succeeded:        succeeded(r.Success, r.Error),
		ExtractionMethod: orDefault(r.Method, "legacy_insights"),
		Error:            r.Error,
	}
	add := func(kind string, list []string) {
		for _, text := range list {
			if strings.TrimSpace(text) != "" {
				out.Items = append(out.Items, model.Item{Text: text, Kind: kind})
			}
		}
	}
	add("value_proposition", r.ValuePropositions)
	add("feature", r.Features)
	add("review", r.Reviews)
	add("pain_point", r.PainPoints)
	out.Metadata.ItemCount = len(out.Items)
	out.HasActualData = out.Succeeded && len(out.Items) > 0
	return out
}

func normalizeHTTP(jobID string, src model.SourceKey, r HTTPStatus) *model.CollectorResult {
	ok := r.StatusCode >= 200 && r.StatusCode < 300 && r.Error == ""
	out := &model.CollectorResult{
		JobID:            jobID,
		Source:           src,
		Succeeded:        ok,
		ExtractionMethod: "legacy_http",
		Error:            r.Error,
	}
	if !ok && out.Error == "" {
		out.Error = fmt.Sprintf("upstream responded with status %d", r.StatusCode)
	}
	if ok {
		out.Metadata.ItemCount = r.ItemCount
	}
	return out
}

// Decode recognizes the shape of a stored JSON record.
func Decode(raw []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode collector record: %w", err)
	}
	has := func(k string) bool { _, ok := fields[k]; return ok }

	switch {
	case has("hasActualData"):
		var r model.CollectorResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode current record: %w", err)
		}
		return Current{Result: &r}, nil
	case has("succeeded") || has("items"):
		var r model.CollectorResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode untagged record: %w", err)
		}
		return Untagged{Result: &r}, nil
	case has("reviewsCollected"):
		var r ReviewsCollected
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode reviews record: %w", err)
		}
		return r, nil
	case has("valuePropositions") || has("features") || has("painPoints") || has("reviews"):
		var r WebsiteInsights
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode insights record: %w", err)
		}
		return r, nil
	case has("statusCode"):
		var r HTTPStatus
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode http record: %w", err)
		}
		return r, nil
	}
	return nil, ErrUnknownShape
}

// DecodeResult decodes and normalizes a stored record in one step.
func DecodeResult(jobID string, src model.SourceKey, raw []byte) (*model.CollectorResult, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrUnknownShape
	}
	rec, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	res := Normalize(jobID, src, rec)
	if res == nil {
		return nil, ErrUnknownShape
	}
	if res.JobID == "" {
		res.JobID = jobID
	}
	if res.Source == "" {
		res.Source = src
	}
	return res, nil
}

func succeeded(flag *bool, errMsg string) bool {
	if errMsg != "" {
		return false
	}
	if flag == nil {
		return true
	}
	return *flag
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
