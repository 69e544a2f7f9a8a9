package pipeline

// Tracker remembers the most recently announced event id so the same
// event is not re-announced while the feed keeps returning it inside the
// recency window tick after tick.
//
// The scope is deliberately narrow: a single marker, not a history set.
// An event displaced from "most recent" by a different event and then
// reappearing would be announced again. Announcements arrive in rough
// time order, so one scalar of state covers the realistic repeat case.
type Tracker struct {
	lastID string
}

// NewTracker creates an empty tracker (nothing announced yet).
func NewTracker() *Tracker {
	return &Tracker{}
}

// ShouldSuppress reports whether the event id matches the last announced
// id. Any other id, including ids announced before the last one, is not
// suppressed.
func (t *Tracker) ShouldSuppress(id string) bool {
	return t.lastID != "" && t.lastID == id
}

// RecordPublished replaces the marker with the just-announced event id.
// Call only after a successful publish, never speculatively.
func (t *Tracker) RecordPublished(id string) {
	t.lastID = id
}

// LastID returns the current marker ("" if nothing announced yet).
func (t *Tracker) LastID() string {
	return t.lastID
}
