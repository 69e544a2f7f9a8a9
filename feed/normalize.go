package feed

import (
	"encoding/json"
	"time"

	"quake-notifier/pkg/seismic"
)

// feature mirrors the subset of a USGS GeoJSON feature the pipeline
// needs. The event id lives at the feature's top level; timestamps are
// milliseconds since the Unix epoch.
type feature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag     *float64 `json:"mag"`
		Place   string   `json:"place"`
		Time    *int64   `json:"time"`
		Updated *int64   `json:"updated"`
		URL     string   `json:"url"`
		Title   string   `json:"title"`
		Type    string   `json:"type"`
	} `json:"properties"`
	Geometry struct {
		// Raw feed order is [longitude, latitude, depth]. Only this
		// function reads the triple by index; everything downstream uses
		// the named Event fields.
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// Normalize converts one raw feed record into a canonical Event. It
// fails with a MalformedRecordError when a required field is missing or
// not the expected type; no side effects either way.
func Normalize(raw RawRecord) (*seismic.Event, error) {
	var rec feature
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &seismic.MalformedRecordError{Field: "feature", Reason: "is not a decodable GeoJSON feature: " + err.Error()}
	}

	if rec.ID == "" {
		return nil, &seismic.MalformedRecordError{Field: "id", Reason: "is missing"}
	}
	if rec.Properties.Mag == nil {
		return nil, &seismic.MalformedRecordError{Field: "mag", Reason: "is missing"}
	}
	if rec.Properties.Time == nil {
		return nil, &seismic.MalformedRecordError{Field: "time", Reason: "is missing"}
	}
	if len(rec.Geometry.Coordinates) < 3 {
		return nil, &seismic.MalformedRecordError{Field: "coordinates", Reason: "needs longitude, latitude and depth"}
	}

	event := &seismic.Event{
		ID:        rec.ID,
		Magnitude: *rec.Properties.Mag,
		EventTime: time.UnixMilli(*rec.Properties.Time).UTC(),
		EventType: rec.Properties.Type,
		Location:  rec.Properties.Place,
		Link:      rec.Properties.URL,
		Title:     rec.Properties.Title,
		Longitude: rec.Geometry.Coordinates[0],
		Latitude:  rec.Geometry.Coordinates[1],
		Depth:     rec.Geometry.Coordinates[2],
	}
	if rec.Properties.Updated != nil {
		event.UpdatedTime = time.UnixMilli(*rec.Properties.Updated).UTC()
	}

	return event, nil
}
