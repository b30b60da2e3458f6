//go:build !integration

package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"persona-research/internal/domain"
)

// fakeClient is an in-memory RedisClient covering the commands the stores use.
type fakeClient struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	zsets   map[string]map[string]float64
	expires map[string]time.Duration
	failAll error
}

var _ RedisClient = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		strings: map[string]string{},
		hashes:  map[string]map[string]string{},
		zsets:   map[string]map[string]float64{},
		expires: map[string]time.Duration{},
	}
}

func str(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.failAll }

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.strings[key] = str(value)
	f.expires[key] = exp
	return nil
}

func (f *fakeClient) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return "", f.failAll
	}
	v, ok := f.strings[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (f *fakeClient) Expire(ctx context.Context, key string, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = exp
	return f.failAll
}

func (f *fakeClient) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	for _, k := range keys {
		delete(f.strings, k)
		delete(f.hashes, k)
		delete(f.zsets, k)
	}
	return nil
}

func (f *fakeClient) HSet(ctx context.Context, key, field string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	f.hashes[key][field] = str(value)
	return nil
}

func (f *fakeClient) HGet(ctx context.Context, key, field string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return "", f.failAll
	}
	v, ok := f.hashes[key][field]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (f *fakeClient) HKeys(ctx context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.hashes[key] {
		out = append(out, k)
	}
	return out, f.failAll
}

func (f *fakeClient) ZAddNX(ctx context.Context, key string, score float64, member string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if f.zsets[key] == nil {
		f.zsets[key] = map[string]float64{}
	}
	if _, ok := f.zsets[key][member]; !ok {
		f.zsets[key][member] = score
	}
	return nil
}

func parseBound(s string) (float64, bool) {
	switch s {
	case "-inf":
		return -1 << 62, false
	case "+inf":
		return 1 << 62, false
	}
	excl := strings.HasPrefix(s, "(")
	v, _ := strconv.ParseFloat(strings.TrimPrefix(s, "("), 64)
	return v, excl
}

func (f *fakeClient) ZRangeByScore(ctx context.Context, key, min, max string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	lo, loEx := parseBound(min)
	hi, hiEx := parseBound(max)
	type kv struct {
		m string
		s float64
	}
	var hits []kv
	for m, s := range f.zsets[key] {
		if (s > lo || (!loEx && s == lo)) && (s < hi || (!hiEx && s == hi)) {
			hits = append(hits, kv{m, s})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].s == hits[j].s {
			return hits[i].m < hits[j].m
		}
		return hits[i].s < hits[j].s
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.m
	}
	return out, nil
}

func (f *fakeClient) ZRem(ctx context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		delete(f.zsets[key], m)
	}
	return f.failAll
}

func (f *fakeClient) Close() error { return nil }
