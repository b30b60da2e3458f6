// Package classify maps collector outcomes to user-facing source statuses.
// Everything here is pure: no I/O, no errors, no panics.
package classify

import "persona-research/internal/domain/model"

// Classify applies the status rules in order:
//
//  1. no result                  -> not_started
//  2. error recorded or !succeeded -> failed
//  3. data present               -> completed
//  4. explicitly no data         -> completed_no_data
//
// A result that claims data but carries no items is reported as
// completed_no_data so the status view never shows an empty source as completed.
func Classify(r *model.CollectorResult) model.ClassifiedStatus {
	if r == nil {
		return model.StatusNotStarted
	}
	if r.Error != "" || !r.Succeeded {
		return model.StatusFailed
	}
	if r.HasActualData && len(r.Items) > 0 {
		return model.StatusCompleted
	}
	return model.StatusCompletedNoData
}

// ClassifyInFlight is Classify for a source that may still be running: a
// missing result for a dispatched, unresolved source reads as processing.
func ClassifyInFlight(r *model.CollectorResult, inFlight bool) model.ClassifiedStatus {
	if r == nil && inFlight {
		return model.StatusProcessing
	}
	return Classify(r)
}

// ClassifyRecord normalizes any known record shape and classifies it.
func ClassifyRecord(jobID string, src model.SourceKey, rec Record) model.ClassifiedStatus {
	return Classify(Normalize(jobID, src, rec))
}
