//go:build !integration

package classify

import (
	"errors"
	"testing"

	"persona-research/internal/domain/model"
)

func boolPtr(b bool) *bool { return &b }

func TestClassify(t *testing.T) {
	items := []model.Item{{Text: "great sheets"}}

	cases := []struct {
		name string
		in   *model.CollectorResult
		want model.ClassifiedStatus
	}{
		{"absent result", nil, model.StatusNotStarted},
		{"error recorded", &model.CollectorResult{Succeeded: true, Error: "boom"}, model.StatusFailed},
		{"not succeeded", &model.CollectorResult{Succeeded: false}, model.StatusFailed},
		{"error wins over data", &model.CollectorResult{Succeeded: true, HasActualData: true, Items: items, Error: "partial"}, model.StatusFailed},
		{"data present", &model.CollectorResult{Succeeded: true, HasActualData: true, Items: items}, model.StatusCompleted},
		{"explicit no data", &model.CollectorResult{Succeeded: true, HasActualData: false}, model.StatusCompletedNoData},
		{"data claimed without items", &model.CollectorResult{Succeeded: true, HasActualData: true}, model.StatusCompletedNoData},
		{"count only tally", &model.CollectorResult{Succeeded: true, HasActualData: true, Metadata: model.ResultMetadata{ItemCount: 3}}, model.StatusCompletedNoData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.in); got != tc.want {
				t.Errorf("Classify() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifyInFlight(t *testing.T) {
	if got := ClassifyInFlight(nil, true); got != model.StatusProcessing {
		t.Errorf("expected processing for running source, got %q", got)
	}
	if got := ClassifyInFlight(nil, false); got != model.StatusNotStarted {
		t.Errorf("expected not_started for idle source, got %q", got)
	}
	done := &model.CollectorResult{Succeeded: true}
	if got := ClassifyInFlight(done, true); got != model.StatusCompletedNoData {
		t.Errorf("a written result must win over in-flight state, got %q", got)
	}
}

func TestClassifyRecord_LegacyShapes(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		want model.ClassifiedStatus
	}{
		{"reviews with texts", ReviewsCollected{Success: boolPtr(true), ReviewsCollected: 2, Reviews: []string{"cooler nights", "no more static"}}, model.StatusCompleted},
		{"reviews count without texts", ReviewsCollected{Success: boolPtr(true), ReviewsCollected: 12}, model.StatusCompletedNoData},
		{"reviews zero", ReviewsCollected{Success: boolPtr(true), ReviewsCollected: 0}, model.StatusCompletedNoData},
		{"reviews failed flag", ReviewsCollected{Success: boolPtr(false), ReviewsCollected: 4}, model.StatusFailed},
		{"reviews error only", ReviewsCollected{Error: "captcha"}, model.StatusFailed},
		{"insights with features", WebsiteInsights{Features: []string{"organic cotton"}}, model.StatusCompleted},
		{"insights empty", WebsiteInsights{Success: boolPtr(true)}, model.StatusCompletedNoData},
		{"http ok with count only", HTTPStatus{StatusCode: 200, ItemCount: 2}, model.StatusCompletedNoData},
		{"http ok empty", HTTPStatus{StatusCode: 204}, model.StatusCompletedNoData},
		{"http rate limited", HTTPStatus{StatusCode: 429}, model.StatusFailed},
		{"untagged with items", Untagged{Result: &model.CollectorResult{Succeeded: true, Items: []model.Item{{Text: "x"}}}}, model.StatusCompleted},
		{"untagged empty", Untagged{Result: &model.CollectorResult{Succeeded: true}}, model.StatusCompletedNoData},
		{"nil record", nil, model.StatusNotStarted},
		{"nil current", Current{}, model.StatusNotStarted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyRecord("job-1", model.SourceMarketplace, tc.rec); got != tc.want {
				t.Errorf("ClassifyRecord() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalize_UnknownPointerShapeDoesNotPanic(t *testing.T) {
	var rec *ReviewsCollected
	got := Normalize("job-1", model.SourceMarketplace, rec)
	if got == nil || got.Error == "" {
		t.Fatalf("expected an error result for unknown shape, got %+v", got)
	}
	if Classify(got) != model.StatusFailed {
		t.Errorf("expected failed classification, got %q", Classify(got))
	}
}

func TestDecode(t *testing.T) {
	t.Run("current shape keeps explicit flag", func(t *testing.T) {
		raw := []byte(`{"jobId":"j","sourceKey":"website","succeeded":true,"hasActualData":false,"items":[]}`)
		rec, err := Decode(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := rec.(Current); !ok {
			t.Fatalf("expected Current, got %T", rec)
		}
	})

	t.Run("reviews shape", func(t *testing.T) {
		res, err := DecodeResult("j", model.SourceMarketplace, []byte(`{"success":true,"reviewsCollected":7}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.HasActualData || len(res.Items) != 0 || res.Metadata.ItemCount != 7 {
			t.Errorf("expected the tally kept in metadata without a data claim, got %+v", res)
		}
		if err := res.Validate(); err != nil {
			t.Errorf("normalized result should validate: %v", err)
		}
		if Classify(res) != model.StatusCompletedNoData {
			t.Errorf("expected completed_no_data, got %q", Classify(res))
		}
		if res.JobID != "j" || res.Source != model.SourceMarketplace {
			t.Errorf("expected identity to be filled, got %q/%q", res.JobID, res.Source)
		}
	})

	t.Run("insights shape", func(t *testing.T) {
		res, err := DecodeResult("j", model.SourceWebsite, []byte(`{"success":true,"valuePropositions":["sleep better"],"painPoints":["static"]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Items) != 2 || Classify(res) != model.StatusCompleted {
			t.Errorf("expected two insight items classified completed, got %+v", res)
		}
	})

	t.Run("http shape", func(t *testing.T) {
		res, err := DecodeResult("j", model.SourceVideo, []byte(`{"statusCode":503}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if Classify(res) != model.StatusFailed {
			t.Errorf("expected failed, got %q", Classify(res))
		}
	})

	t.Run("count-only shapes never claim data", func(t *testing.T) {
		raws := map[model.SourceKey]string{
			model.SourceMarketplace: `{"success":true,"reviewsCollected":7}`,
			model.SourceVideo:       `{"statusCode":200,"itemCount":5}`,
			model.SourceDiscussion:  `{"succeeded":true,"metadata":{"itemCount":4}}`,
		}
		for src, raw := range raws {
			res, err := DecodeResult("j", src, []byte(raw))
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", src, err)
			}
			if res.HasActualData && len(res.Items) == 0 {
				t.Errorf("%s: data claimed with zero items", src)
			}
			if got := Classify(res); got != model.StatusCompletedNoData {
				t.Errorf("%s: expected completed_no_data, got %q", src, got)
			}
		}
	})

	t.Run("unknown shape", func(t *testing.T) {
		_, err := Decode([]byte(`{"foo":1}`))
		if !errors.Is(err, ErrUnknownShape) {
			t.Errorf("expected ErrUnknownShape, got %v", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := Decode([]byte(`{`)); err == nil {
			t.Error("expected error for malformed json")
		}
	})
}
