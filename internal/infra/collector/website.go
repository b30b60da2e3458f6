package collector

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"

	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
	"persona-research/internal/infra/logging"
)

var _ adapter.Collector = (*WebsiteCollector)(nil)

const (
	MethodStaticHTML   = "static_html"
	MethodReadability  = "readability"
	MethodRenderedHTML = "rendered_html"
)

const (
	KindValueProp  = "value_proposition"
	KindFeature    = "feature"
	KindReview     = "review"
	KindPainPoint  = "pain_point"
	KindContent    = "content"
	minInsightLen  = 12
	maxInsightLen  = 400
	minContentLen  = 60
	maxContentRuns = 40
)

var painCue = regexp.MustCompile(`(?i)\b(struggl\w*|tired of|problem\w*|pain\w*|frustrat\w*|can't|cannot|difficult\w*|trouble\w*|worr\w*|annoy\w*|hate)\b`)

// WebsiteCollector extracts value propositions, features, testimonials and
// pain points from a product site. It serves both the website slot and each
// competitor slot.
type WebsiteCollector struct {
	fetcher  *Fetcher
	renderer Renderer
	tagger   Tagger
	maxItems int
	log      zerolog.Logger
}

// NewWebsiteCollector wires the collector; renderer and tagger may be nil.
func NewWebsiteCollector(f *Fetcher, renderer Renderer, tagger Tagger, maxItems int, logger *zerolog.Logger) *WebsiteCollector {
	if maxItems <= 0 {
		maxItems = 60
	}
	return &WebsiteCollector{
		fetcher:  f,
		renderer: renderer,
		tagger:   tagger,
		maxItems: maxItems,
		log:      logger.With().Str("component", "WebsiteCollector").Logger(),
	}
}

func (c *WebsiteCollector) Name() string { return "website" }

func (c *WebsiteCollector) Collect(ctx context.Context, req adapter.CollectRequest) (*model.CollectorResult, error) {
	if err := requireJob(req); err != nil {
		return nil, err
	}
	started := time.Now()
	src := req.Source
	if src == "" {
		src = model.SourceWebsite
	}
	l := logging.With(logging.WithSource(logging.WithJobID(ctx, req.JobID), string(src)), &c.log)
	sess := c.fetcher.Session(c.Name())

	pageURL, err := url.Parse(req.URL)
	if err != nil || pageURL.Host == "" {
		return finish(model.NewFailedResult(req.JobID, src, MethodStaticHTML, errInvalidURL(req.URL), started), nil, 0), nil
	}

	body, fetchErr := sess.Get(ctx, req.URL, http.Header{"Accept": []string{"text/html,application/xhtml+xml"}})
	if fetchErr == nil {
		if items := c.extract(body); len(items) > 0 {
			return finish(model.NewSucceededResult(req.JobID, src, MethodStaticHTML, items, started), c.tagger, sess.Calls()), nil
		}
		if items := c.readable(body, pageURL); len(items) > 0 {
			l.Debug().Msg("static extraction empty, readability fallback produced content")
			return finish(model.NewSucceededResult(req.JobID, src, MethodReadability, items, started), c.tagger, sess.Calls()), nil
		}
	} else {
		l.Warn().Err(fetchErr).Msg("static fetch failed")
	}

	if c.renderer != nil {
		html, err := c.renderer.Render(ctx, req.URL)
		if err == nil {
			items := c.extract([]byte(html))
			return finish(model.NewSucceededResult(req.JobID, src, MethodRenderedHTML, items, started), c.tagger, sess.Calls()), nil
		}
		l.Warn().Err(err).Msg("rendered fetch failed")
		if fetchErr == nil {
			fetchErr = err
		}
	}

	if fetchErr != nil {
		return finish(model.NewFailedResult(req.JobID, src, MethodStaticHTML, fetchErr, started), nil, sess.Calls()), nil
	}
	// fetched fine, nothing usable on the page
	return finish(model.NewSucceededResult(req.JobID, src, MethodStaticHTML, nil, started), nil, sess.Calls()), nil
}

// extract pulls insight items from raw HTML.
func (c *WebsiteCollector) extract(html []byte) []model.Item {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	doc.Find("script, style, noscript, svg").Remove()

	var items []model.Item
	add := func(kind, text string) {
		t := cleanText(text)
		if n := len(t); n < minInsightLen || n > maxInsightLen {
			return
		}
		items = append(items, model.Item{Text: t, Kind: kind})
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		add(KindValueProp, desc)
	}
	doc.Find("h1, h2, [class*=hero] p, [class*=tagline]").Each(func(_ int, s *goquery.Selection) {
		add(KindValueProp, s.Text())
	})

	doc.Find(`[class*=feature] li, [id*=feature] li, [class*=benefit] li, [id*=benefit] li, [class*=feature] h3, [class*=benefit] h3`).Each(func(_ int, s *goquery.Selection) {
		add(KindFeature, s.Text())
	})

	doc.Find(`[class*=testimonial], [id*=testimonial], [class*=review] p, [itemprop="reviewBody"], blockquote`).Each(func(_ int, s *goquery.Selection) {
		add(KindReview, s.Text())
	})

	doc.Find("p, li").Each(func(_ int, s *goquery.Selection) {
		for _, sentence := range splitSentences(s.Text()) {
			if painCue.MatchString(sentence) {
				add(KindPainPoint, sentence)
			}
		}
	})

	items = dedupe(items)
	if len(items) > c.maxItems {
		items = items[:c.maxItems]
	}
	return items
}

// readable falls back to the page's main content as located by readability.
func (c *WebsiteCollector) readable(html []byte, pageURL *url.URL) []model.Item {
	article, err := readability.NewParser().Parse(bytes.NewReader(html), pageURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil
	}
	var items []model.Item
	doc.Find("p, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := cleanText(s.Text())
		if len(t) < minContentLen {
			return true
		}
		t = truncate(t, maxInsightLen)
		items = append(items, model.Item{Text: t, Kind: KindContent})
		return len(items) < maxContentRuns && len(items) < c.maxItems
	})
	return dedupe(items)
}

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

func splitSentences(text string) []string {
	t := cleanText(text)
	if t == "" {
		return nil
	}
	return sentenceEnd.Split(t, -1)
}

type invalidURLError struct{ raw string }

func (e invalidURLError) Error() string { return "invalid page url " + e.raw }

func errInvalidURL(raw string) error { return invalidURLError{raw: raw} }
