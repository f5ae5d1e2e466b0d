package domain

// PageItem is one news item scraped from a monitored website
type PageItem struct {
	Site  string `json:"site"`
	Title string `json:"title"`
	Link  string `json:"link"`
	Date  string `json:"date,omitempty"`
}

// ChangeType classifies how a page item differs from the last snapshot
type ChangeType string

// change types
const (
	ChangeNew     ChangeType = "new"
	ChangeUpdated ChangeType = "updated"
)

// Change is a detected difference on a monitored website
type Change struct {
	Site  string     `json:"site"`
	Type  ChangeType `json:"type"`
	Title string     `json:"title"`
	Link  string     `json:"link"`
	Date  string     `json:"date,omitempty"`
}
