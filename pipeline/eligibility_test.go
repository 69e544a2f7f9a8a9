package pipeline

import (
	"testing"
	"time"

	"quake-notifier/pkg/seismic"
)

func TestEligible(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	window := 15 * time.Minute

	tests := []struct {
		name  string
		event seismic.Event
		want  bool
	}{
		{
			name:  "fresh earthquake",
			event: seismic.Event{EventType: "earthquake", Magnitude: 4.2, EventTime: now.Add(-2 * time.Minute)},
			want:  true,
		},
		{
			name:  "earthquake exactly at window edge",
			event: seismic.Event{EventType: "earthquake", Magnitude: 3.0, EventTime: now.Add(-window)},
			want:  true,
		},
		{
			name:  "earthquake just past window",
			event: seismic.Event{EventType: "earthquake", Magnitude: 3.0, EventTime: now.Add(-window - time.Second)},
			want:  false,
		},
		{
			name: "stale event with fresh update",
			event: seismic.Event{
				EventType:   "earthquake",
				Magnitude:   2.0,
				EventTime:   now.Add(-2 * time.Hour),
				UpdatedTime: now.Add(-time.Minute),
			},
			want: true,
		},
		{
			name: "fresh event with stale update",
			event: seismic.Event{
				EventType:   "earthquake",
				Magnitude:   2.0,
				EventTime:   now.Add(-time.Minute),
				UpdatedTime: now.Add(-2 * time.Hour),
			},
			want: false,
		},
		{
			name:  "small quarry blast regardless of recency",
			event: seismic.Event{EventType: "quarry blast", Magnitude: 2.4, EventTime: now},
			want:  false,
		},
		{
			name:  "large quarry blast",
			event: seismic.Event{EventType: "quarry blast", Magnitude: 2.5, EventTime: now.Add(-time.Minute)},
			want:  true,
		},
		{
			name:  "small earthquake is not suppressed by the blast rule",
			event: seismic.Event{EventType: "earthquake", Magnitude: 1.1, EventTime: now.Add(-time.Minute)},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(&tt.event, now, window); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Any event whose relevant timestamp is older than now minus the window
// must be rejected, whatever its magnitude.
func TestEligibleOldEventsAlwaysRejected(t *testing.T) {
	now := time.Now()
	window := 15 * time.Minute

	for _, magnitude := range []float64{0.5, 2.5, 4.2, 7.1, 9.0} {
		event := &seismic.Event{
			EventType: "earthquake",
			Magnitude: magnitude,
			EventTime: now.Add(-window - time.Minute),
		}
		if Eligible(event, now, window) {
			t.Errorf("Eligible() = true for magnitude %v event older than the window", magnitude)
		}
	}
}
