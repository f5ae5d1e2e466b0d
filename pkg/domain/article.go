package domain

import "time"

// Article is a single news item as returned by the search provider.
// Relevance is attached once by the scorer and not changed afterwards.
type Article struct {
	Title        string  `json:"title"`
	Excerpt      string  `json:"excerpt"`
	URL          string  `json:"url"`
	Source       string  `json:"source"`
	Image        string  `json:"image,omitempty"`
	PublishedRaw string  `json:"published"`
	Relevance    float64 `json:"relevance"`
}

// Record is one row of the flat output table handed to persistence and
// summarization. Published is zero when the raw date did not parse; the
// raw string is always retained.
type Record struct {
	Entity       string    `json:"entity"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Published    time.Time `json:"published,omitempty"`
	PublishedRaw string    `json:"published_raw,omitempty"`
	Source       string    `json:"source"`
	Excerpt      string    `json:"excerpt"`
	Image        string    `json:"image,omitempty"`
	Relevance    float64   `json:"relevance"`
}
