package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"newswatch/pkg/domain"
)

// StatusError is returned when the provider responds with a non-200 status
type StatusError struct {
	Code int
	Body string
}

// Error returns the status line with a body snippet when present
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.Code)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Code, e.Body)
}

// HTTPProvider queries a news search endpoint over HTTP.
// The endpoint takes q, max and window query parameters and returns a
// JSON object with an articles array.
type HTTPProvider struct {
	endpoint  string
	apiKey    string
	userAgent string
	client    *http.Client
}

// NewHTTPProvider creates a provider for the given endpoint
func NewHTTPProvider(endpoint, apiKey, userAgent string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		endpoint:  endpoint,
		apiKey:    apiKey,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// providerArticle is the provider's wire format for a single result
type providerArticle struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Body    string `json:"body"` // some providers use body instead of excerpt
	URL     string `json:"url"`
	Source  string `json:"source"`
	Date    string `json:"date"`
	Image   string `json:"image"`
}

// News executes a single search request against the provider
func (p *HTTPProvider) News(ctx context.Context, query string, maxResults int, window domain.TimeWindow) ([]domain.Article, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	q := u.Query()
	q.Set("q", query)
	q.Set("max", strconv.Itoa(maxResults))
	if window != domain.WindowNone {
		q.Set("window", string(window))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	addBrowserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Articles []providerArticle `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	articles := make([]domain.Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		excerpt := a.Excerpt
		if excerpt == "" {
			excerpt = a.Body
		}
		articles = append(articles, domain.Article{
			Title:        a.Title,
			Excerpt:      excerpt,
			URL:          a.URL,
			Source:       a.Source,
			Image:        a.Image,
			PublishedRaw: a.Date,
		})
	}
	return articles, nil
}
