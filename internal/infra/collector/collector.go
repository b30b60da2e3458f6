package collector

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"persona-research/internal/domain"
	"persona-research/internal/domain/classify"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
	"persona-research/internal/infra/metrics"
)

func requireJob(req adapter.CollectRequest) error {
	if strings.TrimSpace(req.JobID) == "" {
		return fmt.Errorf("%w: source %s", domain.ErrMissingJobID, req.Source)
	}
	return nil
}

// finish tags languages, stamps counts and records run metrics.
func finish(res *model.CollectorResult, tagger Tagger, calls int) *model.CollectorResult {
	if tagger != nil && len(res.Items) > 0 {
		if hist := tagger.Tag(res.Items); len(hist) > 0 {
			res.Metadata.Languages = hist
		}
	}
	res.Metadata.ItemCount = len(res.Items)
	if res.Metadata.Extra == nil {
		res.Metadata.Extra = map[string]string{}
	}
	res.Metadata.Extra["requests"] = fmt.Sprint(calls)
	if res.Metadata.FinishedAt.IsZero() {
		res.Metadata.FinishedAt = time.Now().UTC()
	}
	metrics.ObserveCollector(string(res.Source), string(classify.Classify(res)), len(res.Items),
		res.Metadata.FinishedAt.Sub(res.Metadata.StartedAt))
	return res
}

// cleanText collapses whitespace and trims.
func cleanText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// dedupe drops items whose normalized text was already seen.
func dedupe(items []model.Item) []model.Item {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		key := strings.ToLower(it.Text)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
