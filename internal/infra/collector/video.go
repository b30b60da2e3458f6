package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
	"persona-research/internal/infra/logging"
)

var _ adapter.Collector = (*VideoCollector)(nil)

const MethodVideoAPI = "video_api"

var errNoVideoKey = errors.New("video api key is not configured")

// VideoCollector searches videos per keyword and pages through their
// top-level comments (YouTube Data API v3 shapes).
type VideoCollector struct {
	fetcher     *Fetcher
	tagger      Tagger
	baseURL     string
	apiKey      string
	maxVideos   int
	maxComments int
	log         zerolog.Logger
}

func NewVideoCollector(f *Fetcher, tagger Tagger, baseURL, apiKey string, maxVideos, maxComments int, logger *zerolog.Logger) *VideoCollector {
	return &VideoCollector{
		fetcher:     f,
		tagger:      tagger,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		maxVideos:   maxVideos,
		maxComments: maxComments,
		log:         logger.With().Str("component", "VideoCollector").Logger(),
	}
}

func (c *VideoCollector) Name() string { return "video" }

type videoSearch struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type commentThreads struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextDisplay       string `json:"textDisplay"`
					AuthorDisplayName string `json:"authorDisplayName"`
					PublishedAt       string `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *VideoCollector) Collect(ctx context.Context, req adapter.CollectRequest) (*model.CollectorResult, error) {
	if err := requireJob(req); err != nil {
		return nil, err
	}
	started := time.Now()
	src := model.SourceVideo
	if c.apiKey == "" {
		return finish(model.NewFailedResult(req.JobID, src, MethodVideoAPI, errNoVideoKey, started), nil, 0), nil
	}
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

	res := tracker.Result(req.JobID, src, MethodVideoAPI, dedupe(items), started)
	return finish(res, c.tagger, sess.Calls()), nil
}

func (c *VideoCollector) searchKeyword(ctx context.Context, sess *Session, tracker *KeywordTracker, kw string) ([]model.Item, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("q", kw)
	q.Set("maxResults", strconv.Itoa(c.maxVideos))
	q.Set("key", c.apiKey)

	var found videoSearch
	if err := sess.GetJSON(ctx, c.baseURL+"/search?"+q.Encode(), nil, &found); err != nil {
		return nil, err
	}

	var items []model.Item
	var firstErr error
	for _, v := range found.Items {
		id := v.ID.VideoID
		if id == "" {
			continue
		}
		tracker.Searched(kw)
		comments, err := c.comments(ctx, sess, kw, id)
		items = append(items, comments...)
		tracker.AddItems(kw, len(comments))
		if err != nil {
			// comments disabled on a video is a 403; keep going with the rest
			if firstErr == nil && !IsStatus(err, http.StatusForbidden) {
				firstErr = err
			}
			if ctx.Err() != nil {
				return items, err
			}
		}
	}
	return items, firstErr
}

func (c *VideoCollector) comments(ctx context.Context, sess *Session, kw, videoID string) ([]model.Item, error) {
	pager := &Pager{Cap: c.maxComments}
	var out []model.Item
	token := ""
	for {
		q := url.Values{}
		q.Set("part", "snippet")
		q.Set("videoId", videoID)
		q.Set("maxResults", strconv.Itoa(min(100, max(1, pager.Remaining()))))
		q.Set("textFormat", "plainText")
		q.Set("order", "relevance")
		q.Set("key", c.apiKey)
		if token != "" {
			q.Set("pageToken", token)
		}

		var page commentThreads
		if err := sess.GetJSON(ctx, c.baseURL+"/commentThreads?"+q.Encode(), nil, &page); err != nil {
			return out, err
		}
		var batch []model.Item
		for _, it := range page.Items {
			sn := it.Snippet.TopLevelComment.Snippet
			text := cleanText(sn.TextDisplay)
			if text == "" {
				continue
			}
			item := model.Item{
				Text:    truncate(text, 2000),
				Kind:    "comment",
				Author:  sn.AuthorDisplayName,
				Keyword: kw,
				URL:     "https://www.youtube.com/watch?v=" + videoID,
			}
			if t, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
				item.PublishedAt = &t
			}
			batch = append(batch, item)
		}
		if n := pager.Remaining(); len(batch) > n {
			batch = batch[:n]
		}
		out = append(out, batch...)
		if !pager.Add(len(batch)) || page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}
