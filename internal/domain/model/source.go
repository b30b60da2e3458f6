package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SourceKey names one collector output slot of a job.
type SourceKey string

const (
	SourceWebsite     SourceKey = "website"
	SourceMarketplace SourceKey = "marketplace_reviews"
	SourceDiscussion  SourceKey = "discussion_threads"
	SourceVideo       SourceKey = "video_comments"
	SourcePersona     SourceKey = "persona"

	competitorPrefix = "competitor_"
)

// CoreSources are the fixed, non-competitor collector slots in display order.
var CoreSources = []SourceKey{SourceWebsite, SourceMarketplace, SourceDiscussion, SourceVideo}

// CompetitorSource returns the 1-based key for the n-th competitor URL.
func CompetitorSource(n int) SourceKey {
	return SourceKey(fmt.Sprintf("%s%d", competitorPrefix, n))
}

// CompetitorIndex reports the 1-based competitor index encoded in k.
func (k SourceKey) CompetitorIndex() (int, bool) {
	s := string(k)
	if !strings.HasPrefix(s, competitorPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, competitorPrefix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (k SourceKey) Valid() bool {
	switch k {
	case SourceWebsite, SourceMarketplace, SourceDiscussion, SourceVideo, SourcePersona:
		return true
	}
	_, ok := k.CompetitorIndex()
	return ok
}

func (k SourceKey) String() string { return string(k) }
