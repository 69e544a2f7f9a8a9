package seismic

import (
	"testing"
	"time"
)

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		name      string
		magnitude float64
		want      string
	}{
		{name: "exactly great", magnitude: 8.0, want: "great"},
		{name: "just below great", magnitude: 7.999, want: "major"},
		{name: "exactly major", magnitude: 7.0, want: "major"},
		{name: "exactly strong", magnitude: 6.0, want: "strong"},
		{name: "exactly moderate", magnitude: 5.0, want: "moderate"},
		{name: "exactly light", magnitude: 4.0, want: "light"},
		{name: "typical light", magnitude: 4.2, want: "light"},
		{name: "exactly minor", magnitude: 2.5, want: "minor"},
		{name: "just below minor", magnitude: 2.499, want: "micro"},
		{name: "tiny", magnitude: 0.8, want: "micro"},
		{name: "negative magnitude", magnitude: -0.2, want: "micro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategoryFor(tt.magnitude); got != tt.want {
				t.Errorf("CategoryFor(%v) = %q, want %q", tt.magnitude, got, tt.want)
			}
		})
	}
}

func TestRelevantTime(t *testing.T) {
	eventTime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	updatedTime := eventTime.Add(3 * time.Minute)

	event := &Event{EventTime: eventTime}
	if got := event.RelevantTime(); !got.Equal(eventTime) {
		t.Errorf("RelevantTime() without update = %v, want %v", got, eventTime)
	}

	event.UpdatedTime = updatedTime
	if got := event.RelevantTime(); !got.Equal(updatedTime) {
		t.Errorf("RelevantTime() with update = %v, want %v", got, updatedTime)
	}
}
