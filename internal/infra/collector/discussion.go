package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
	"persona-research/internal/infra/logging"
)

var _ adapter.Collector = (*DiscussionCollector)(nil)

const MethodThreadSearch = "thread_search"

// DiscussionCollector searches public discussion threads for each keyword
// (Reddit-style JSON listing API) and keeps posts and their comments.
type DiscussionCollector struct {
	fetcher     *Fetcher
	tagger      Tagger
	baseURL     string
	maxPosts    int
	maxComments int
	log         zerolog.Logger
}

func NewDiscussionCollector(f *Fetcher, tagger Tagger, baseURL string, maxPosts, maxComments int, logger *zerolog.Logger) *DiscussionCollector {
	return &DiscussionCollector{
		fetcher:     f,
		tagger:      tagger,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxPosts:    maxPosts,
		maxComments: maxComments,
		log:         logger.With().Str("component", "DiscussionCollector").Logger(),
	}
}

func (c *DiscussionCollector) Name() string { return "discussion" }

type listing struct {
	Data struct {
		Children []struct {
			Kind string    `json:"kind"`
			Data thingData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type thingData struct {
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	NumComment int     `json:"num_comments"`
}

func (c *DiscussionCollector) Collect(ctx context.Context, req adapter.CollectRequest) (*model.CollectorResult, error) {
	if err := requireJob(req); err != nil {
		return nil, err
	}
	started := time.Now()
	src := model.SourceDiscussion
	l := logging.With(logging.WithSource(logging.WithJobID(ctx, req.JobID), string(src)), &c.log)

	sess := c.fetcher.Session(c.Name())
	tracker := NewKeywordTracker(src)
	var items []model.Item

	for _, kw := range req.Keywords {
		tracker.Begin(kw)
		found, err := c.searchKeyword(ctx, sess, tracker, kw)
		items = append(items, found...)
		if err != nil {
			tracker.Fail(kw, err)
			l.Warn().Err(err).Str("keyword", kw).Msg("keyword search failed")
		}
		if ctx.Err() != nil {
			break
		}
	}

	res := tracker.Result(req.JobID, src, MethodThreadSearch, dedupe(items), started)
	return finish(res, c.tagger, sess.Calls()), nil
}

func (c *DiscussionCollector) searchKeyword(ctx context.Context, sess *Session, tracker *KeywordTracker, kw string) ([]model.Item, error) {
	q := url.Values{}
	q.Set("q", kw)
	q.Set("limit", fmt.Sprint(c.maxPosts))
	q.Set("sort", "relevance")
	q.Set("type", "link")
	hdr := http.Header{"Accept": []string{"application/json"}}

	var posts listing
	if err := sess.GetJSON(ctx, c.baseURL+"/search.json?"+q.Encode(), hdr, &posts); err != nil {
		return nil, err
	}

	var items []model.Item
	var firstErr error
	for _, child := range posts.Data.Children {
		p := child.Data
		if p.Permalink == "" {
			continue
		}
		tracker.Searched(kw)
		if text := cleanText(strings.TrimSpace(p.Title + ". " + p.Selftext)); len(text) > 2 {
			items = append(items, c.item(kw, "post", text, p))
			tracker.AddItems(kw, 1)
		}
		if p.NumComment == 0 {
			continue
		}
		comments, err := c.comments(ctx, sess, p.Permalink)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				return items, err
			}
			continue
		}
		for _, cm := range comments {
			items = append(items, c.item(kw, "comment", cm.Body, cm))
		}
		tracker.AddItems(kw, len(comments))
	}
	return items, firstErr
}

func (c *DiscussionCollector) comments(ctx context.Context, sess *Session, permalink string) ([]thingData, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(c.maxComments))
	q.Set("depth", "1")
	u := c.baseURL + strings.TrimRight(permalink, "/") + ".json?" + q.Encode()

	// the thread endpoint returns [post listing, comment listing]
	var parts []listing
	if err := sess.GetJSON(ctx, u, http.Header{"Accept": []string{"application/json"}}, &parts); err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, nil
	}
	var out []thingData
	for _, child := range parts[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		body := cleanText(child.Data.Body)
		if body == "" || body == "[deleted]" || body == "[removed]" {
			continue
		}
		child.Data.Body = body
		if child.Data.Permalink == "" {
			child.Data.Permalink = permalink
		}
		out = append(out, child.Data)
		if len(out) >= c.maxComments {
			break
		}
	}
	return out, nil
}

func (c *DiscussionCollector) item(kw, kind, text string, d thingData) model.Item {
	it := model.Item{
		Text:    truncate(text, 2000),
		Kind:    kind,
		Author:  d.Author,
		Keyword: kw,
		URL:     c.baseURL + d.Permalink,
	}
	if d.CreatedUTC > 0 {
		t := time.Unix(int64(d.CreatedUTC), 0).UTC()
		it.PublishedAt = &t
	}
	return it
}
