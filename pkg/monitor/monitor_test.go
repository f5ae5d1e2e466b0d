package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswatch/pkg/config"
	"newswatch/pkg/domain"
)

// memStore is an in-memory snapshot store
type memStore struct {
	data    map[string]map[string]domain.PageItem
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]map[string]domain.PageItem{}}
}

func (s *memStore) Snapshot(_ context.Context, site string) (map[string]domain.PageItem, error) {
	out := map[string]domain.PageItem{}
	for k, v := range s.data[site] {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) SaveSnapshot(_ context.Context, site string, items []domain.PageItem) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	snap := map[string]domain.PageItem{}
	for _, item := range items {
		snap[item.Link] = item
	}
	s.data[site] = snap
	return nil
}

const testPage = `<html><body>
<div class="news">
  <div class="item">
    <h3 class="title">First announcement</h3>
    <a href="/news/first">read</a>
    <span class="date">2026-08-20</span>
  </div>
  <div class="item">
    <h3 class="title">Second   announcement</h3>
    <a href="https://elsewhere.example.com/second">read</a>
    <span class="date">2026-08-21</span>
  </div>
  <div class="item">
    <h3 class="title">No link here</h3>
  </div>
</div>
</body></html>`

func testSite(url string) config.SiteConfig {
	return config.SiteConfig{
		Name:         "Example",
		URL:          url,
		ItemSelector: "div.item",
		TitleSel:     ".title",
		DateSel:      ".date",
	}
}

func newTestMonitor(sites []config.SiteConfig, store SnapshotStore) *Monitor {
	m := New(config.MonitorConfig{
		Delay:     time.Second,
		Timeout:   5 * time.Second,
		UserAgent: "Newswatch/1.0",
		Sites:     sites,
	}, store)
	m.sleep = func(context.Context, time.Duration) bool { return true }
	return m
}

func TestMonitor_Run(t *testing.T) {
	t.Run("first run reports everything as new", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Newswatch/1.0", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(testPage))
		}))
		defer srv.Close()

		store := newMemStore()
		m := newTestMonitor([]config.SiteConfig{testSite(srv.URL)}, store)

		changes, err := m.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, changes, 2, "items without links are skipped")

		assert.Equal(t, domain.ChangeNew, changes[0].Type)
		assert.Equal(t, "First announcement", changes[0].Title)
		assert.Equal(t, srv.URL+"/news/first", changes[0].Link, "relative links resolved")
		assert.Equal(t, "2026-08-20", changes[0].Date)
		assert.Equal(t, "Second announcement", changes[1].Title, "whitespace collapsed")
		assert.Equal(t, "https://elsewhere.example.com/second", changes[1].Link)
	})

	t.Run("unchanged page yields no changes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(testPage))
		}))
		defer srv.Close()

		store := newMemStore()
		m := newTestMonitor([]config.SiteConfig{testSite(srv.URL)}, store)

		_, err := m.Run(context.Background())
		require.NoError(t, err)

		changes, err := m.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("updated item detected by date change", func(t *testing.T) {
		page := testPage
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(page))
		}))
		defer srv.Close()

		store := newMemStore()
		m := newTestMonitor([]config.SiteConfig{testSite(srv.URL)}, store)

		_, err := m.Run(context.Background())
		require.NoError(t, err)

		page = `<html><body><div class="item">
			<h3 class="title">First announcement</h3>
			<a href="/news/first">read</a>
			<span class="date">2026-08-22</span>
		</div></body></html>`

		changes, err := m.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, domain.ChangeUpdated, changes[0].Type)
		assert.Equal(t, "2026-08-22", changes[0].Date)
	})

	t.Run("failing site skipped, others still checked", func(t *testing.T) {
		good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(testPage))
		}))
		defer good.Close()
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer bad.Close()

		store := newMemStore()
		badSite := testSite(bad.URL)
		badSite.Name = "Broken"
		m := newTestMonitor([]config.SiteConfig{badSite, testSite(good.URL)}, store)

		changes, err := m.Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, changes, 2)
		for _, c := range changes {
			assert.Equal(t, "Example", c.Site)
		}
	})

	t.Run("empty page keeps snapshot untouched", func(t *testing.T) {
		empty := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if empty {
				_, _ = w.Write([]byte(`<html><body><p>maintenance</p></body></html>`))
				return
			}
			_, _ = w.Write([]byte(testPage))
		}))
		defer srv.Close()

		store := newMemStore()
		m := newTestMonitor([]config.SiteConfig{testSite(srv.URL)}, store)

		_, err := m.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, store.data["Example"], 2)

		empty = true
		changes, err := m.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, changes)
		assert.Len(t, store.data["Example"], 2, "snapshot preserved for the next run")
	})

	t.Run("save failure reported per site", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(testPage))
		}))
		defer srv.Close()

		store := newMemStore()
		store.saveErr = errors.New("disk full")
		m := newTestMonitor([]config.SiteConfig{testSite(srv.URL)}, store)

		changes, err := m.Run(context.Background())
		require.NoError(t, err, "run keeps going, failure is logged")
		assert.Empty(t, changes)
	})

	t.Run("no sites configured", func(t *testing.T) {
		m := newTestMonitor(nil, newMemStore())
		changes, err := m.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, changes)
	})
}

func TestMonitor_LinkSelectors(t *testing.T) {
	t.Run("item element is itself an anchor", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html><body>
				<a class="story" href="/a">Story A</a>
				<a class="story" href="/b">Story B</a>
			</body></html>`))
		}))
		defer srv.Close()

		site := config.SiteConfig{Name: "Anchors", URL: srv.URL, ItemSelector: "a.story"}
		m := newTestMonitor([]config.SiteConfig{site}, newMemStore())

		changes, err := m.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, "Story A", changes[0].Title)
		assert.Equal(t, srv.URL+"/a", changes[0].Link)
	})

	t.Run("explicit link selector", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html><body><div class="item">
				<a class="share" href="/share">share</a>
				<a class="permalink" href="/story">Story</a>
				<h3>Headline</h3>
			</div></body></html>`))
		}))
		defer srv.Close()

		site := config.SiteConfig{Name: "Explicit", URL: srv.URL, ItemSelector: "div.item",
			TitleSel: "h3", LinkSel: "a.permalink"}
		m := newTestMonitor([]config.SiteConfig{site}, newMemStore())

		changes, err := m.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "Headline", changes[0].Title)
		assert.Equal(t, srv.URL+"/story", changes[0].Link)
	})
}
