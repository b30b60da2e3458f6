//go:build !integration

package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
)

const productPage = `<!doctype html><html><head>
<meta name="description" content="Grounding sheets that help you sleep deeper every night">
<script>var x = "ignored";</script></head>
<body>
<section class="hero"><h1>Reconnect with the earth while you sleep</h1></section>
<section class="features"><ul>
  <li>Organic cotton with woven silver thread</li>
  <li>Machine washable up to 100 cycles</li>
</ul></section>
<div class="testimonial">I finally wake up without the stiffness I had for years.</div>
<p>Tired of restless nights and waking up sore? Our sheets are made to help.</p>
</body></html>`

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (r *fakeRenderer) Render(ctx context.Context, url string) (string, error) {
	r.calls++
	return r.html, r.err
}

func TestWebsiteCollector_ExtractsInsights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(productPage))
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	c := NewWebsiteCollector(f, nil, nil, 50, nopLogger())

	res, err := c.Collect(context.Background(), adapter.CollectRequest{JobID: "job-1", Source: model.SourceWebsite, URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Succeeded || !res.HasActualData {
		t.Fatalf("expected data, got %+v", res)
	}
	if res.ExtractionMethod != MethodStaticHTML {
		t.Errorf("expected static_html, got %s", res.ExtractionMethod)
	}
	kinds := map[string]int{}
	for _, it := range res.Items {
		kinds[it.Kind]++
		if strings.Contains(it.Text, "ignored") {
			t.Error("script content must not be extracted")
		}
	}
	for _, k := range []string{KindValueProp, KindFeature, KindReview, KindPainPoint} {
		if kinds[k] == 0 {
			t.Errorf("expected at least one %s item, got %v", k, kinds)
		}
	}
}

func TestWebsiteCollector_CompetitorSlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(productPage))
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	c := NewWebsiteCollector(f, nil, nil, 50, nopLogger())
	res, _ := c.Collect(context.Background(), adapter.CollectRequest{JobID: "job-1", Source: model.CompetitorSource(2), URL: srv.URL})
	if res.Source != "competitor_2" {
		t.Errorf("expected competitor_2 source, got %s", res.Source)
	}
}

func TestWebsiteCollector_EmptyPageIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="app"></div></body></html>`))
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	res, _ := NewWebsiteCollector(f, nil, nil, 50, nopLogger()).
		Collect(context.Background(), adapter.CollectRequest{JobID: "job-1", URL: srv.URL})
	if !res.Succeeded || res.HasActualData || len(res.Items) != 0 {
		t.Errorf("expected succeeded without data, got %+v", res)
	}
}

func TestWebsiteCollector_RenderFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="app"></div></body></html>`))
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	r := &fakeRenderer{html: productPage}
	res, _ := NewWebsiteCollector(f, r, nil, 50, nopLogger()).
		Collect(context.Background(), adapter.CollectRequest{JobID: "job-1", URL: srv.URL})
	if r.calls != 1 {
		t.Fatalf("expected renderer to be used once, got %d", r.calls)
	}
	if res.ExtractionMethod != MethodRenderedHTML || !res.HasActualData {
		t.Errorf("expected rendered data, got %+v", res)
	}
}

func TestWebsiteCollector_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	res, err := NewWebsiteCollector(f, nil, nil, 50, nopLogger()).
		Collect(context.Background(), adapter.CollectRequest{JobID: "job-1", URL: srv.URL})
	if err != nil {
		t.Fatalf("upstream failures must not be raised, got %v", err)
	}
	if res.Succeeded || res.HasActualData || !strings.Contains(res.Error, "503") {
		t.Errorf("expected failed result mentioning 503, got %+v", res)
	}
}

func TestWebsiteCollector_MissingJobID(t *testing.T) {
	f, _ := newTestFetcher()
	_, err := NewWebsiteCollector(f, nil, nil, 50, nopLogger()).
		Collect(context.Background(), adapter.CollectRequest{URL: "https://a.test"})
	if !errors.Is(err, domain.ErrMissingJobID) {
		t.Errorf("expected ErrMissingJobID, got %v", err)
	}
}
