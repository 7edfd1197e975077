// Package collect implements the collect capability: fetch configured RSS
// feeds, normalize and deduplicate the entries, and hand back candidate
// items for the generate stage.
package collect

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/apppro/content-pipeline/internal/core/domain"
)

const (
	feedTimeout  = 10 * time.Second
	perFeedLimit = 10
	userAgent    = "content-pipeline/2.0"
)

// ErrAllFeedsFailed is returned when no configured feed produced items.
// Partial feed failures are absorbed into the aggregate counts instead.
var ErrAllFeedsFailed = errors.New("all feeds failed")

// Feed is one configured RSS source.
type Feed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Lang     string `yaml:"lang"`
	Category string `yaml:"category"`
}

// Result is the aggregate outcome of one collect pass.
type Result struct {
	Items       []*domain.CollectedItem
	RawCount    int
	FeedsOK     int
	FeedsFailed int
}

// SeenCache filters out items collected on prior passes. The database unique
// constraint on url remains the durable dedup layer; the cache only saves
// work.
type SeenCache interface {
	FilterUnseen(ctx context.Context, urls []string) ([]string, error)
	MarkSeen(ctx context.Context, urls []string) error
}

// Collector fetches all configured feeds sequentially. One collector is
// reused across passes; it holds no per-pass state.
type Collector struct {
	feeds  []Feed
	parser *gofeed.Parser
	seen   SeenCache
	log    *slog.Logger
	now    func() time.Time
}

// New creates a collector over the configured feed set. seen may be nil when
// no cache is configured; dedup then falls back to the database constraint.
func New(feeds []Feed, seen SeenCache) *Collector {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Collector{
		feeds:  feeds,
		parser: parser,
		seen:   seen,
		log:    slog.Default().With("component", "collector"),
		now:    time.Now,
	}
}

// Collect fetches every configured feed, tolerating per-feed failures, and
// returns the deduplicated candidate items. It only errors when every feed
// failed; the caller treats that as a collect-stage failure.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	result := &Result{}
	var items []*domain.CollectedItem

	for _, feed := range c.feeds {
		fetched, err := c.fetchFeed(ctx, feed)
		if err != nil {
			result.FeedsFailed++
			c.log.Warn("Feed fetch failed", "feed", feed.Name, "error", err)
			continue
		}
		result.FeedsOK++
		items = append(items, fetched...)
	}

	result.RawCount = len(items)
	if len(c.feeds) > 0 && result.FeedsOK == 0 {
		return result, ErrAllFeedsFailed
	}

	items = dedupe(items)

	if c.seen != nil {
		filtered, err := c.filterSeen(ctx, items)
		if err != nil {
			// Cache trouble must not lose a collect pass.
			c.log.Warn("Seen-cache filter failed, keeping all items", "error", err)
		} else {
			items = filtered
		}
	}

	result.Items = items
	c.log.Info("Collect pass complete",
		"feeds_ok", result.FeedsOK, "feeds_failed", result.FeedsFailed,
		"raw", result.RawCount, "kept", len(items))
	return result, nil
}

func (c *Collector) fetchFeed(ctx context.Context, feed Feed) ([]*domain.CollectedItem, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	parsed, err := c.parser.ParseURLWithContext(feed.URL, fetchCtx)
	if err != nil {
		return nil, err
	}

	entries := parsed.Items
	if len(entries) > perFeedLimit {
		entries = entries[:perFeedLimit]
	}

	now := c.now().UnixMilli()
	items := make([]*domain.CollectedItem, 0, len(entries))
	for _, entry := range entries {
		if entry.Link == "" {
			continue
		}
		item := &domain.CollectedItem{
			ID:          uuid.New().String(),
			Title:       entry.Title,
			URL:         normalizeURL(entry.Link),
			Source:      feed.Name,
			Summary:     truncate(entry.Description, 500),
			CollectedAt: now,
		}
		if item.Title == "" {
			item.Title = "Untitled"
		}
		if entry.PublishedParsed != nil {
			item.PublishedAt = entry.PublishedParsed.UnixMilli()
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Collector) filterSeen(ctx context.Context, items []*domain.CollectedItem) ([]*domain.CollectedItem, error) {
	urls := make([]string, len(items))
	for i, item := range items {
		urls[i] = item.URL
	}
	unseen, err := c.seen.FilterUnseen(ctx, urls)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(unseen))
	for _, u := range unseen {
		keep[u] = true
	}
	filtered := items[:0]
	for _, item := range items {
		if keep[item.URL] {
			filtered = append(filtered, item)
		}
	}

	if err := c.seen.MarkSeen(ctx, unseen); err != nil {
		c.log.Warn("Failed to mark items seen", "error", err)
	}
	return filtered, nil
}

// trackingParams are stripped during URL normalization so the same article
// shared through different campaigns dedups to one item.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign",
	"utm_content", "utm_term", "ref", "source",
}

func normalizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := parsed.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	parsed.RawQuery = q.Encode()
	return strings.TrimSuffix(parsed.String(), "/")
}

// dedupe drops items with a URL already in the batch, then items whose title
// overlaps an earlier item's by more than 70% of the shorter word set.
func dedupe(items []*domain.CollectedItem) []*domain.CollectedItem {
	seenURL := make(map[string]bool, len(items))
	var out []*domain.CollectedItem

	for _, item := range items {
		if seenURL[item.URL] {
			continue
		}
		duplicate := false
		for _, kept := range out {
			if similarTitle(item.Title, kept.Title) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		seenURL[item.URL] = true
		out = append(out, item)
	}
	return out
}

func similarTitle(a, b string) bool {
	wordsA := titleWords(a)
	wordsB := titleWords(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return false
	}

	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[w] = true
	}
	overlap := 0
	for _, w := range wordsB {
		if setA[w] {
			overlap++
		}
	}

	shorter := len(wordsA)
	if len(wordsB) < shorter {
		shorter = len(wordsB)
	}
	return float64(overlap)/float64(shorter) > 0.7
}

func titleWords(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
