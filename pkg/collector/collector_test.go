package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswatch/pkg/domain"
)

// recordingSearcher records calls and serves canned articles per query
type recordingSearcher struct {
	results map[string][]domain.Article
	calls   []searchCall
}

type searchCall struct {
	query      string
	maxResults int
	window     domain.TimeWindow
}

func (s *recordingSearcher) Search(_ context.Context, query string, maxResults int, window domain.TimeWindow) []domain.Article {
	s.calls = append(s.calls, searchCall{query: query, maxResults: maxResults, window: window})
	return s.results[query]
}

func testConfig() Config {
	return Config{
		BatchSize:          3,
		RequestDelay:       8 * time.Second,
		DefaultResults:     3,
		HighProfileResults: 5,
		LowProfileResults:  4,
		TopicResults:       5,
		HighProfile:        []string{"BigCorp"},
		LowProfile:         []string{"TinyCo"},
	}
}

func newTestCollector(s Searcher, cfg Config) (*Collector, *[]time.Duration) {
	c := New(s, cfg)
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) bool {
		slept = append(slept, d)
		return true
	}
	return c, &slept
}

func entities(names ...string) []domain.Entity {
	out := make([]domain.Entity, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Entity{Name: n})
	}
	return out
}

func TestCollector_Collect(t *testing.T) {
	t.Run("collects per entity keyed by display name", func(t *testing.T) {
		searcher := &recordingSearcher{results: map[string][]domain.Article{
			`"Acme Corp"`: {{Title: "Acme news"}},
			`"Globex"`:    {{Title: "Globex news"}, {Title: "more Globex"}},
		}}
		collector, _ := newTestCollector(searcher, testConfig())

		got := collector.Collect(context.Background(), entities("Acme Corp", "Globex"), domain.KindClient, true)
		require.Len(t, got, 2)
		assert.Len(t, got["Acme Corp"], 1)
		assert.Len(t, got["Globex"], 2)
	})

	t.Run("entities with no results omitted", func(t *testing.T) {
		searcher := &recordingSearcher{results: map[string][]domain.Article{
			`"Acme Corp"`: {{Title: "Acme news"}},
		}}
		collector, _ := newTestCollector(searcher, testConfig())

		got := collector.Collect(context.Background(), entities("Acme Corp", "Quiet Inc"), domain.KindClient, true)
		require.Len(t, got, 1)
		assert.Contains(t, got, "Acme Corp")
		assert.NotContains(t, got, "Quiet Inc")
		assert.Len(t, searcher.calls, 2, "search still runs for quiet entities")
	})

	t.Run("pacing between adjacent entities only", func(t *testing.T) {
		searcher := &recordingSearcher{}
		collector, slept := newTestCollector(searcher, testConfig())

		// 7 entities with batch size 3: batches of 3, 3, 1; 6 delays
		collector.Collect(context.Background(), entities("a", "b", "c", "d", "e", "f", "g"), domain.KindClient, true)
		assert.Len(t, searcher.calls, 7)
		assert.Len(t, *slept, 6, "delay between every adjacent pair, none before first or after last")
	})

	t.Run("single entity never sleeps", func(t *testing.T) {
		searcher := &recordingSearcher{}
		collector, slept := newTestCollector(searcher, testConfig())

		collector.Collect(context.Background(), entities("only"), domain.KindClient, true)
		assert.Empty(t, *slept)
	})

	t.Run("result sizing by profile", func(t *testing.T) {
		searcher := &recordingSearcher{}
		collector, _ := newTestCollector(searcher, testConfig())

		collector.Collect(context.Background(), entities("BigCorp Holdings", "TinyCo", "Regular Inc"), domain.KindClient, true)
		require.Len(t, searcher.calls, 3)
		assert.Equal(t, 5, searcher.calls[0].maxResults, "high-profile matched by substring")
		assert.Equal(t, 4, searcher.calls[1].maxResults)
		assert.Equal(t, 3, searcher.calls[2].maxResults)
		for _, call := range searcher.calls {
			assert.Equal(t, domain.WindowWeek, call.window)
		}
	})

	t.Run("adaptive off gives every company the default count", func(t *testing.T) {
		searcher := &recordingSearcher{}
		collector, _ := newTestCollector(searcher, testConfig())

		collector.Collect(context.Background(), entities("BigCorp Holdings", "TinyCo", "Regular Inc"), domain.KindClient, false)
		require.Len(t, searcher.calls, 3)
		for _, call := range searcher.calls {
			assert.Equal(t, 3, call.maxResults)
			assert.Equal(t, domain.WindowWeek, call.window)
		}
	})

	t.Run("topics use topic sizing regardless of profile or adaptive flag", func(t *testing.T) {
		searcher := &recordingSearcher{}
		collector, _ := newTestCollector(searcher, testConfig())

		topics := []domain.Entity{{Name: "BigCorp Regulation", Category: "Policy"}}
		collector.Collect(context.Background(), topics, domain.KindTopic, false)
		require.Len(t, searcher.calls, 1)
		assert.Equal(t, 5, searcher.calls[0].maxResults)
		assert.Equal(t, domain.WindowWeek, searcher.calls[0].window)
	})

	t.Run("topic results keyed by category-prefixed name", func(t *testing.T) {
		searcher := &recordingSearcher{results: map[string][]domain.Article{
			`"Grid Storage"`: {{Title: "storage news"}},
		}}
		collector, _ := newTestCollector(searcher, testConfig())

		topics := []domain.Entity{{Name: "Grid Storage", Category: "Energy"}}
		got := collector.Collect(context.Background(), topics, domain.KindTopic, true)
		assert.Contains(t, got, "Energy: Grid Storage")
	})

	t.Run("configured query used over quoted name", func(t *testing.T) {
		searcher := &recordingSearcher{}
		collector, _ := newTestCollector(searcher, testConfig())

		ents := []domain.Entity{{Name: "Globex", Query: `"Globex" OR "Globex Corporation"`}}
		collector.Collect(context.Background(), ents, domain.KindCompetitor, true)
		require.Len(t, searcher.calls, 1)
		assert.Equal(t, `"Globex" OR "Globex Corporation"`, searcher.calls[0].query)
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		searcher := &recordingSearcher{}
		collector := New(searcher, testConfig())
		ctx, cancel := context.WithCancel(context.Background())
		collector.sleep = func(ctx context.Context, _ time.Duration) bool {
			cancel()
			return ctx.Err() == nil
		}

		got := collector.Collect(ctx, entities("a", "b", "c"), domain.KindClient, true)
		assert.Len(t, searcher.calls, 1, "remaining entities skipped after cancellation")
		assert.Empty(t, got)
	})

	t.Run("empty roster", func(t *testing.T) {
		searcher := &recordingSearcher{}
		collector, slept := newTestCollector(searcher, testConfig())

		got := collector.Collect(context.Background(), nil, domain.KindClient, true)
		assert.Empty(t, got)
		assert.Empty(t, searcher.calls)
		assert.Empty(t, *slept)
	})
}

func TestCollector_pacingDelay(t *testing.T) {
	cfg := testConfig()
	collector := New(nil, cfg)

	t.Run("regular entity within jitter bounds", func(t *testing.T) {
		for range 100 {
			d := collector.pacingDelay(domain.Entity{Name: "Regular Inc"})
			assert.GreaterOrEqual(t, d, time.Duration(float64(cfg.RequestDelay)*0.8))
			assert.LessOrEqual(t, d, time.Duration(float64(cfg.RequestDelay)*1.2))
		}
	})

	t.Run("high-profile entity stretched", func(t *testing.T) {
		for range 100 {
			d := collector.pacingDelay(domain.Entity{Name: "BigCorp Holdings"})
			assert.GreaterOrEqual(t, d, time.Duration(float64(cfg.RequestDelay)*0.8*1.5))
			assert.LessOrEqual(t, d, time.Duration(float64(cfg.RequestDelay)*1.2*1.5))
		}
	})

	t.Run("floor of one second", func(t *testing.T) {
		short := New(nil, Config{BatchSize: 1, RequestDelay: 100 * time.Millisecond})
		for range 100 {
			assert.GreaterOrEqual(t, short.pacingDelay(domain.Entity{Name: "x"}), time.Second)
		}
	})
}
