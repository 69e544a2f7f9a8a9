package pipeline

import (
	"time"

	"quake-notifier/pkg/seismic"
)

// Non-earthquake events (quarry blasts, explosions) below this magnitude
// are never announced.
const blastMagnitudeFloor = 2.5

// DefaultRecencyWindow bounds how old an event's relevant timestamp may
// be for the event to still be announced.
const DefaultRecencyWindow = 15 * time.Minute

// Eligible decides whether an event is recent enough and significant
// enough to announce. Rules apply in order, first miss wins: low-magnitude
// non-earthquake events are suppressed outright, then the relevant
// timestamp (last feed revision, falling back to the event time) must lie
// within the recency window measured backward from now.
func Eligible(event *seismic.Event, now time.Time, recencyWindow time.Duration) bool {
	if event.EventType != "earthquake" && event.Magnitude < blastMagnitudeFloor {
		return false
	}
	return !event.RelevantTime().Before(now.Add(-recencyWindow))
}
