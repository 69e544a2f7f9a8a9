// Package seismic contains the core domain types for the earthquake alert service.
package seismic

import "time"

// Event is a normalized seismic event from the USGS feed.
type Event struct {
	EventTime   time.Time // When the event occurred (UTC)
	UpdatedTime time.Time // When the feed last revised this record (zero if never)
	ID          string    // Stable feed identifier, e.g. "ci40812935"
	EventType   string    // Categorical type, e.g. "earthquake", "quarry blast"
	Location    string    // Free-text place description
	Link        string    // USGS event detail URL
	Title       string    // Feed-supplied display title
	Magnitude   float64
	Latitude    float64
	Longitude   float64
	Depth       float64 // Kilometers
}

// RelevantTime is the timestamp used for recency decisions: the last
// feed revision when one exists, otherwise the event time itself.
func (e *Event) RelevantTime() time.Time {
	if !e.UpdatedTime.IsZero() {
		return e.UpdatedTime
	}
	return e.EventTime
}

// Alert is a formatted, ready-to-publish announcement. It exists only
// for the duration of one publish call and is never persisted by the
// pipeline itself.
type Alert struct {
	Text        string // Primary message body
	Description string // Sub-text for the external link embed
	LinkURI     string // USGS event detail URL
	LinkTitle   string // Title for the external link embed
}

// TickReport summarizes one poll tick for the trigger.
type TickReport struct {
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Magnitude category thresholds, after the USGS magnitude classes.
const (
	greatThreshold    = 8.0
	majorThreshold    = 7.0
	strongThreshold   = 6.0
	moderateThreshold = 5.0
	lightThreshold    = 4.0
	minorThreshold    = 2.5
)

// CategoryFor maps a magnitude to its descriptive class. The category is
// informational (it feeds the alert hashtag); it does not gate
// announcement eligibility.
func CategoryFor(magnitude float64) string {
	switch {
	case magnitude >= greatThreshold:
		return "great"
	case magnitude >= majorThreshold:
		return "major"
	case magnitude >= strongThreshold:
		return "strong"
	case magnitude >= moderateThreshold:
		return "moderate"
	case magnitude >= lightThreshold:
		return "light"
	case magnitude >= minorThreshold:
		return "minor"
	default:
		return "micro"
	}
}
