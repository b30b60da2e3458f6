package collector

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
	"persona-research/internal/infra/logging"
)

var _ adapter.Collector = (*MarketplaceCollector)(nil)

const MethodReviewPages = "review_pages"

var ratingRe = regexp.MustCompile(`([0-5](?:[.,]\d)?)\s*(?:out of|/)\s*5`)

// MarketplaceCollector pages through a product's review listing.
type MarketplaceCollector struct {
	fetcher  *Fetcher
	tagger   Tagger
	maxItems int
	maxPages int
	log      zerolog.Logger
}

func NewMarketplaceCollector(f *Fetcher, tagger Tagger, maxItems, maxPages int, logger *zerolog.Logger) *MarketplaceCollector {
	if maxItems <= 0 {
		maxItems = 100
	}
	if maxPages <= 0 {
		maxPages = 10
	}
	return &MarketplaceCollector{
		fetcher:  f,
		tagger:   tagger,
		maxItems: maxItems,
		maxPages: maxPages,
		log:      logger.With().Str("component", "MarketplaceCollector").Logger(),
	}
}

func (c *MarketplaceCollector) Name() string { return "marketplace" }

func (c *MarketplaceCollector) Collect(ctx context.Context, req adapter.CollectRequest) (*model.CollectorResult, error) {
	if err := requireJob(req); err != nil {
		return nil, err
	}
	started := time.Now()
	src := model.SourceMarketplace
	l := logging.With(logging.WithSource(logging.WithJobID(ctx, req.JobID), string(src)), &c.log)

	base, err := url.Parse(req.URL)
	if err != nil || base.Host == "" {
		return finish(model.NewFailedResult(req.JobID, src, MethodReviewPages, errInvalidURL(req.URL), started), nil, 0), nil
	}

	sess := c.fetcher.Session(c.Name())
	pager := &Pager{Cap: c.maxItems, MaxPages: c.maxPages}
	var items []model.Item
	var pageErr error

	for page := 1; ; page++ {
		body, err := sess.Get(ctx, pageURL(base, page), http.Header{"Accept": []string{"text/html"}})
		if err != nil {
			pageErr = err
			break
		}
		reviews := parseReviews(body, base)
		if n := pager.Remaining(); len(reviews) > n {
			reviews = reviews[:n]
		}
		items = append(items, reviews...)
		if !pager.Add(len(reviews)) {
			break
		}
	}
	items = dedupe(items)

	var res *model.CollectorResult
	switch {
	case pageErr != nil && len(items) == 0:
		if errors.Is(pageErr, context.Canceled) || errors.Is(pageErr, context.DeadlineExceeded) {
			l.Warn().Err(pageErr).Msg("review collection interrupted")
		}
		res = model.NewFailedResult(req.JobID, src, MethodReviewPages, pageErr, started)
	default:
		if pageErr != nil {
			l.Warn().Err(pageErr).Int("reviews", len(items)).Msg("stopped paging early, keeping collected reviews")
		}
		res = model.NewSucceededResult(req.JobID, src, MethodReviewPages, items, started)
	}
	res.Metadata.Pages = pager.Pages()
	return finish(res, c.tagger, sess.Calls()), nil
}

func pageURL(base *url.URL, page int) string {
	u := *base
	q := u.Query()
	if page > 1 {
		q.Set("pageNumber", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// parseReviews understands the data-hook review markup plus schema.org
// review microdata.
func parseReviews(html []byte, base *url.URL) []model.Item {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	var out []model.Item
	doc.Find(`[data-hook="review"], [itemprop="review"], .review`).Each(func(_ int, s *goquery.Selection) {
		body := firstText(s, `[data-hook="review-body"]`, `[itemprop="reviewBody"]`, `.review-text`, `.review-body`)
		if body == "" {
			return
		}
		it := model.Item{
			Text:   truncate(body, 2000),
			Kind:   KindReview,
			Author: firstText(s, `.a-profile-name`, `[itemprop="author"]`, `.review-author`),
			Rating: parseRating(s),
		}
		if title := firstText(s, `[data-hook="review-title"]`, `[itemprop="name"]`); title != "" {
			it.Text = truncate(title+". "+body, 2000)
		}
		if href, ok := s.Find(`a[data-hook="review-title"]`).Attr("href"); ok {
			if ref, err := base.Parse(href); err == nil {
				it.URL = ref.String()
			}
		}
		out = append(out, it)
	})
	return out
}

func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := cleanText(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func parseRating(s *goquery.Selection) float64 {
	if v, ok := s.Find(`[itemprop="ratingValue"]`).Attr("content"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	text := firstText(s, `[data-hook="review-star-rating"]`, `.review-rating`, `[class*=rating]`)
	m := ratingRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	f, _ := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	return f
}
