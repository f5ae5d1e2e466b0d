package domain

import "fmt"

// EntityKind identifies which roster an entity belongs to
type EntityKind string

// entity kinds
const (
	KindClient     EntityKind = "client"
	KindCompetitor EntityKind = "competitor"
	KindTopic      EntityKind = "topic"
)

// Entity is a company or industry topic news is collected for.
// Name is unique within its roster. Category is set for topics only
// and namespaces them for display grouping.
type Entity struct {
	Name     string `json:"name"`
	Query    string `json:"query,omitempty"`
	Category string `json:"category,omitempty"`
}

// SearchQuery returns the configured boolean query, falling back to the
// quoted exact name when none is set
func (e Entity) SearchQuery() string {
	if e.Query != "" {
		return e.Query
	}
	return fmt.Sprintf("%q", e.Name)
}

// DisplayName returns the name used as the aggregation key. Topics are
// prefixed with their category so downstream grouping needs no lookup.
func (e Entity) DisplayName() string {
	if e.Category != "" {
		return e.Category + ": " + e.Name
	}
	return e.Name
}

// TimeWindow is the recency filter applied to a search
type TimeWindow string

// supported time windows
const (
	WindowDay   TimeWindow = "d"
	WindowWeek  TimeWindow = "w"
	WindowMonth TimeWindow = "m"
	WindowYear  TimeWindow = "y"
	WindowNone  TimeWindow = ""
)

// Description returns a human-readable form of the window
func (w TimeWindow) Description() string {
	switch w {
	case WindowDay:
		return "past day"
	case WindowWeek:
		return "past week"
	case WindowMonth:
		return "past month"
	case WindowYear:
		return "past year"
	}
	return "all time"
}
