// Package monitor watches configured websites for new or updated news
// items by scraping their pages with CSS selectors and diffing against
// the previously stored snapshot.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"newswatch/pkg/config"
	"newswatch/pkg/domain"
)

// SnapshotStore persists the last seen items per site
type SnapshotStore interface {
	Snapshot(ctx context.Context, site string) (map[string]domain.PageItem, error)
	SaveSnapshot(ctx context.Context, site string, items []domain.PageItem) error
}

// Monitor checks monitored websites sequentially and reports changes
type Monitor struct {
	cfg       config.MonitorConfig
	snapshots SnapshotStore
	client    *http.Client

	sleep func(ctx context.Context, d time.Duration) bool // replaced in tests
}

// New creates a monitor with the given sites and snapshot store
func New(cfg config.MonitorConfig, snapshots SnapshotStore) *Monitor {
	return &Monitor{
		cfg:       cfg,
		snapshots: snapshots,
		client:    &http.Client{Timeout: cfg.Timeout},
		sleep:     sleepCtx,
	}
}

// Run checks every configured site and returns all detected changes.
// A failing site is logged and skipped; its snapshot stays untouched so
// the next run picks up where this one could not.
func (m *Monitor) Run(ctx context.Context) ([]domain.Change, error) {
	var changes []domain.Change
	for i, site := range m.cfg.Sites {
		if ctx.Err() != nil {
			return changes, ctx.Err()
		}

		siteChanges, err := m.checkSite(ctx, site)
		if err != nil {
			lgr.Printf("[WARN] check %q failed: %v", site.Name, err)
		} else {
			lgr.Printf("[INFO] %q: %d changes", site.Name, len(siteChanges))
			changes = append(changes, siteChanges...)
		}

		if i < len(m.cfg.Sites)-1 {
			if !m.sleep(ctx, m.cfg.Delay) {
				return changes, ctx.Err()
			}
		}
	}
	return changes, nil
}

// checkSite scrapes one site, diffs against its snapshot and stores the
// fresh item set
func (m *Monitor) checkSite(ctx context.Context, site config.SiteConfig) ([]domain.Change, error) {
	items, err := m.scrape(ctx, site)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		// empty pages are usually selector rot or an interstitial, not
		// everything actually disappearing; keep the old snapshot
		return nil, fmt.Errorf("no items matched %q on %s", site.ItemSelector, site.URL)
	}

	previous, err := m.snapshots.Snapshot(ctx, site.Name)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	changes := diff(site.Name, items, previous)

	if err := m.snapshots.SaveSnapshot(ctx, site.Name, items); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return changes, nil
}

// scrape fetches the site page and extracts items via its selectors
func (m *Monitor) scrape(ctx context.Context, site config.SiteConfig) ([]domain.PageItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", m.cfg.UserAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	base, err := url.Parse(site.URL)
	if err != nil {
		return nil, fmt.Errorf("parse site url: %w", err)
	}

	var items []domain.PageItem
	doc.Find(site.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		item := extractItem(sel, site, base)
		if item.Title != "" && item.Link != "" {
			items = append(items, item)
		}
	})
	return items, nil
}

// extractItem pulls title, link and date out of one matched element.
// The title falls back to the element's own text and the link to its
// first anchor when no selector is configured.
func extractItem(sel *goquery.Selection, site config.SiteConfig, base *url.URL) domain.PageItem {
	item := domain.PageItem{Site: site.Name}

	titleSel := sel
	if site.TitleSel != "" {
		titleSel = sel.Find(site.TitleSel).First()
	}
	item.Title = collapseSpace(titleSel.Text())

	linkSel := sel.Find("a").First()
	if site.LinkSel != "" {
		linkSel = sel.Find(site.LinkSel).First()
	}
	if sel.Is("a") && site.LinkSel == "" {
		linkSel = sel
	}
	if href, ok := linkSel.Attr("href"); ok {
		item.Link = resolveLink(base, href)
	}

	if site.DateSel != "" {
		item.Date = collapseSpace(sel.Find(site.DateSel).First().Text())
	}
	return item
}

// diff compares fresh items against the snapshot: unseen links are new,
// seen links with a different title or date are updated
func diff(siteName string, items []domain.PageItem, previous map[string]domain.PageItem) []domain.Change {
	var changes []domain.Change
	for _, item := range items {
		old, seen := previous[item.Link]
		switch {
		case !seen:
			changes = append(changes, domain.Change{Site: siteName, Type: domain.ChangeNew,
				Title: item.Title, Link: item.Link, Date: item.Date})
		case old.Title != item.Title || old.Date != item.Date:
			changes = append(changes, domain.Change{Site: siteName, Type: domain.ChangeUpdated,
				Title: item.Title, Link: item.Link, Date: item.Date})
		}
	}
	return changes
}

// resolveLink makes relative hrefs absolute against the page URL
func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return strings.TrimSpace(href)
	}
	return base.ResolveReference(ref).String()
}

// collapseSpace trims and folds runs of whitespace into single spaces
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
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
