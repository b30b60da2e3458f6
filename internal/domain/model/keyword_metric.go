package model

type ExtractionStatus string

const (
	ExtractionSuccess ExtractionStatus = "success"
	ExtractionPartial ExtractionStatus = "partial"
	ExtractionNoData  ExtractionStatus = "no_data"
	ExtractionFailed  ExtractionStatus = "failed"
)

// KeywordMetric is the outcome of one keyword's search within a multi-keyword collector.
type KeywordMetric struct {
	Keyword              string           `json:"keyword"`
	ItemsFound           int              `json:"itemsFound"`
	SubResourcesSearched int              `json:"subResourcesSearched"`
	Status               ExtractionStatus `json:"extractionStatus"`
	Error                string           `json:"error,omitempty"`
}

// StatusFor derives a keyword's extraction status from what it found and
// whether any step of its search failed.
func StatusFor(itemsFound int, err error) ExtractionStatus {
	switch {
	case err != nil && itemsFound > 0:
		return ExtractionPartial
	case err != nil:
		return ExtractionFailed
	case itemsFound == 0:
		return ExtractionNoData
	default:
		return ExtractionSuccess
	}
}

// AnyKeywordData reports whether at least one keyword produced items.
func AnyKeywordData(metrics []KeywordMetric) bool {
	for _, m := range metrics {
		if m.ItemsFound > 0 {
			return true
		}
	}
	return false
}

// AllKeywordsFailed reports whether every keyword ended in failure.
func AllKeywordsFailed(metrics []KeywordMetric) bool {
	if len(metrics) == 0 {
		return false
	}
	for _, m := range metrics {
		if m.Status != ExtractionFailed {
			return false
		}
	}
	return true
}
