// Package collector runs the news collection pipeline: batched
// sequential searches per entity, relevance scoring and filtering,
// flattening into records, and deduplication against a checkpoint.
package collector

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"newswatch/pkg/domain"
)

// Searcher runs one news search; failures surface as empty results
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int, window domain.TimeWindow) []domain.Article
}

// Config holds collection sizing and pacing settings. Passed in at
// construction so tests can run with their own constants.
type Config struct {
	BatchSize    int
	RequestDelay time.Duration

	DefaultResults     int
	HighProfileResults int
	LowProfileResults  int
	TopicResults       int

	HighProfile []string
	LowProfile  []string
}

// Collector collects news for entity rosters, one search at a time.
// Execution is strictly sequential: the provider's rate limits are the
// bottleneck and concurrency would only trip them faster.
type Collector struct {
	searcher Searcher
	cfg      Config

	sleep func(ctx context.Context, d time.Duration) bool // replaced in tests
}

// New creates a collector with the given searcher and settings
func New(searcher Searcher, cfg Config) *Collector {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Collector{searcher: searcher, cfg: cfg, sleep: sleepCtx}
}

// Collect searches news for every entity and returns raw articles keyed
// by entity display name. Entities are processed in batches with pacing
// delays between adjacent searches; no delay runs before the first or
// after the last entity. With adaptive off, companies all get the
// default result count. Entities whose search yields nothing are absent
// from the result.
func (c *Collector) Collect(ctx context.Context, entities []domain.Entity, kind domain.EntityKind, adaptive bool) map[string][]domain.Article {
	result := make(map[string][]domain.Article)
	if len(entities) == 0 {
		return result
	}

	batches := (len(entities) + c.cfg.BatchSize - 1) / c.cfg.BatchSize
	lgr.Printf("[INFO] collecting %s news: %d entities in %d batches of up to %d",
		kind, len(entities), batches, c.cfg.BatchSize)

	for i, entity := range entities {
		if ctx.Err() != nil {
			lgr.Printf("[WARN] collection cancelled after %d of %d entities", i, len(entities))
			return result
		}

		if i%c.cfg.BatchSize == 0 {
			lgr.Printf("[INFO] batch %d/%d", i/c.cfg.BatchSize+1, batches)
		}

		maxResults, window := c.sizing(entity, kind, adaptive)
		articles := c.searcher.Search(ctx, entity.SearchQuery(), maxResults, window)
		lgr.Printf("[DEBUG] %q: %d articles (%s)", entity.Name, len(articles), window.Description())
		if len(articles) > 0 {
			result[entity.DisplayName()] = articles
		}

		// pacing between adjacent searches only
		if i < len(entities)-1 {
			if !c.sleep(ctx, c.pacingDelay(entity)) {
				lgr.Printf("[WARN] collection cancelled after %d of %d entities", i+1, len(entities))
				return result
			}
		}
	}

	lgr.Printf("[INFO] collected %s news for %d of %d entities", kind, len(result), len(entities))
	return result
}

// sizing returns the result count and time window for one entity.
// Topic sizing is its own always-active policy, not a variant of the
// company profile logic; the adaptive flag only affects companies.
func (c *Collector) sizing(entity domain.Entity, kind domain.EntityKind, adaptive bool) (maxResults int, window domain.TimeWindow) {
	if kind == domain.KindTopic {
		return c.cfg.TopicResults, domain.WindowWeek
	}
	if !adaptive {
		return c.cfg.DefaultResults, domain.WindowWeek
	}
	switch {
	case c.isHighProfile(entity.Name):
		return c.cfg.HighProfileResults, domain.WindowWeek
	case matchesAny(entity.Name, c.cfg.LowProfile):
		return c.cfg.LowProfileResults, domain.WindowWeek
	default:
		return c.cfg.DefaultResults, domain.WindowWeek
	}
}

// pacingDelay returns the wait after searching the given entity:
// the base delay with ±20% jitter, at least a second, stretched 1.5x
// after high-profile entities which draw more provider attention
func (c *Collector) pacingDelay(entity domain.Entity) time.Duration {
	delta := (rand.Float64()*2 - 1) * 0.2 //nolint:gosec // non-cryptographic randomness is fine for jitter
	d := time.Duration(float64(c.cfg.RequestDelay) * (1 + delta))
	if c.isHighProfile(entity.Name) {
		d = time.Duration(float64(d) * 1.5)
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}

// isHighProfile matches by substring so list entries like "Acme" cover
// roster variants like "Acme Corp" and "Acme, Inc."
func (c *Collector) isHighProfile(name string) bool {
	return matchesAny(name, c.cfg.HighProfile)
}

func matchesAny(name string, list []string) bool {
	for _, entry := range list {
		if entry != "" && strings.Contains(name, entry) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
