// Package format renders publish-ready alerts from normalized events.
package format

import (
	"fmt"
	"strconv"
	"time"

	"quake-notifier/pkg/seismic"
)

// Events at or above this magnitude get the "report shaking" call to
// action; the USGS "Did You Feel It?" page is useful from this level up.
const shakingThreshold = 2.5

// DefaultTimeZone is the display timezone for the headline time.
const DefaultTimeZone = "America/Los_Angeles"

// Options configures alert rendering.
type Options struct {
	// DisplayTimeZone is the IANA zone name for the headline's local
	// time. DefaultTimeZone if empty.
	DisplayTimeZone string
	// TitleWithID appends the event id to the link title instead of the
	// fixed "USGS" suffix.
	TitleWithID bool
}

// Formatter renders alerts. Formatting is pure: the same event always
// yields the same alert.
type Formatter struct {
	loc         *time.Location
	titleWithID bool
}

// New creates a formatter, resolving the display timezone.
func New(opts Options) (*Formatter, error) {
	zone := opts.DisplayTimeZone
	if zone == "" {
		zone = DefaultTimeZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load display timezone %q: %w", zone, err)
	}
	return &Formatter{loc: loc, titleWithID: opts.TitleWithID}, nil
}

// Format renders the announcement text and link embed for one event.
//
// The description keeps literal °N/°W suffixes regardless of coordinate
// sign; the monitored region sits in the northwestern hemisphere and the
// published output format is pinned by downstream consumers.
func (f *Formatter) Format(event *seismic.Event) *seismic.Alert {
	magnitude := strconv.FormatFloat(event.Magnitude, 'f', -1, 64)
	localTime := event.EventTime.In(f.loc).Format("3:04:05 PM")
	category := seismic.CategoryFor(event.Magnitude)

	shakingSuffix := ""
	if event.Magnitude >= shakingThreshold {
		shakingSuffix = " and to report shaking"
	}

	text := fmt.Sprintf("#Earthquake Update: A magnitude %s %s took place %s at %s. #%s\nFor details from the USGS%s:",
		magnitude, event.EventType, event.Location, localTime, category, shakingSuffix)

	utcTime := event.EventTime.UTC().Format("2006-01-02 15:04:05") + " (UTC)"
	description := fmt.Sprintf("%s | %.3f°N %.3f°W | %.1f km depth",
		utcTime, event.Latitude, event.Longitude, event.Depth)

	titleSuffix := "USGS"
	if f.titleWithID {
		titleSuffix = event.ID
	}

	return &seismic.Alert{
		Text:        text,
		Description: description,
		LinkURI:     event.Link,
		LinkTitle:   event.Title + " | " + titleSuffix,
	}
}
