// Package pipeline runs the per-tick ingestion, filtering, dedup and
// publishing sequence.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"quake-notifier/feed"
	"quake-notifier/pkg/seismic"
)

// DefaultQueryLookback bounds the feed query window. It is deliberately
// much wider than the recency window: the batch may contain many
// historical events of which only the freshest are announced.
const DefaultQueryLookback = 10 * time.Hour

// Feed fetches raw event records.
type Feed interface {
	Fetch(ctx context.Context, since time.Time) ([]feed.RawRecord, error)
}

// Publisher posts one alert to the outbound service.
type Publisher interface {
	Publish(ctx context.Context, alert *seismic.Alert) error
}

// Formatter renders an alert from a normalized event.
type Formatter interface {
	Format(event *seismic.Event) *seismic.Alert
}

// Archive records published alerts for the status page. Archive failures
// never affect the tick outcome.
type Archive interface {
	Record(ctx context.Context, alert *seismic.Alert, eventID string) error
}

// Config holds pipeline collaborators and tunables.
type Config struct {
	Feed          Feed
	Publisher     Publisher
	Formatter     Formatter
	Archive       Archive // optional
	Logger        *slog.Logger
	QueryLookback time.Duration    // DefaultQueryLookback if zero
	RecencyWindow time.Duration    // DefaultRecencyWindow if zero
	Now           func() time.Time // time.Now if nil; injectable for tests
}

// Monitor orchestrates poll ticks. One tick runs to completion before
// the next begins; the tracker is only ever touched by the active tick.
type Monitor struct {
	feed          Feed
	publisher     Publisher
	formatter     Formatter
	archive       Archive
	logger        *slog.Logger
	now           func() time.Time
	tracker       *Tracker
	queryLookback time.Duration
	recencyWindow time.Duration
	mu            sync.Mutex // guards single tick in flight
}

// New creates a pipeline monitor with an empty dedup tracker.
func New(cfg *Config) *Monitor {
	m := &Monitor{
		feed:          cfg.Feed,
		publisher:     cfg.Publisher,
		formatter:     cfg.Formatter,
		archive:       cfg.Archive,
		logger:        cfg.Logger,
		now:           cfg.Now,
		tracker:       NewTracker(),
		queryLookback: cfg.QueryLookback,
		recencyWindow: cfg.RecencyWindow,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.queryLookback == 0 {
		m.queryLookback = DefaultQueryLookback
	}
	if m.recencyWindow == 0 {
		m.recencyWindow = DefaultRecencyWindow
	}
	return m
}

// LastAnnouncedID exposes the dedup marker for the status page.
func (m *Monitor) LastAnnouncedID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.LastID()
}

// RunTick executes one fetch→filter→dedup→format→publish pass and
// reports per-record outcomes. It never panics or returns an error: a
// tick-level fetch failure is counted as failed and the next tick
// proceeds independently. A tick arriving while another is still in
// flight is rejected with an empty report.
func (m *Monitor) RunTick(ctx context.Context) seismic.TickReport {
	if !m.mu.TryLock() {
		m.logger.Warn("Tick already in flight, rejecting trigger")
		return seismic.TickReport{}
	}
	defer m.mu.Unlock()

	var report seismic.TickReport
	now := m.now()

	m.logger.Info("Tick starting",
		"timestamp", now.Format(time.RFC3339),
		"query_lookback", m.queryLookback.String(),
		"recency_window", m.recencyWindow.String())

	records, err := m.feed.Fetch(ctx, now.Add(-m.queryLookback))
	if err != nil {
		m.logger.Error("Feed fetch failed, aborting tick", "error", err)
		report.Failed++
		return report
	}

	// Records are processed in feed order; publishes are sequential so
	// publish order matches feed order.
	for _, raw := range records {
		event, err := feed.Normalize(raw)
		if err != nil {
			m.logger.Warn("Skipping malformed record", "error", err)
			report.Skipped++
			continue
		}

		if !Eligible(event, now, m.recencyWindow) {
			m.logger.Debug("Skipping ineligible event",
				"event_id", event.ID,
				"event_type", event.EventType,
				"magnitude", event.Magnitude,
				"relevant_time", event.RelevantTime().Format(time.RFC3339))
			report.Skipped++
			continue
		}

		if m.tracker.ShouldSuppress(event.ID) {
			m.logger.Info("Suppressing already-announced event", "event_id", event.ID)
			report.Skipped++
			continue
		}

		alert := m.formatter.Format(event)

		if err := m.publisher.Publish(ctx, alert); err != nil {
			// Dedup state stays untouched so the next tick can re-attempt
			m.logger.Warn("Publish failed", "event_id", event.ID, "error", err)
			report.Failed++
			continue
		}

		m.tracker.RecordPublished(event.ID)
		report.Published++

		m.logger.Info("Alert published",
			"event_id", event.ID,
			"magnitude", event.Magnitude,
			"category", seismic.CategoryFor(event.Magnitude),
			"location", event.Location)

		if m.archive != nil {
			if err := m.archive.Record(ctx, alert, event.ID); err != nil {
				m.logger.Warn("Failed to archive announcement", "event_id", event.ID, "error", err)
			}
		}
	}

	m.logger.Info("Tick completed",
		"records", len(records),
		"published", report.Published,
		"skipped", report.Skipped,
		"failed", report.Failed)

	return report
}
