package bluesky

import (
	"context"
	"log/slog"

	"quake-notifier/pkg/seismic"
)

// Mock logs alerts instead of posting them, for local development.
type Mock struct {
	logger *slog.Logger
}

// NewMock creates a new mock publisher.
func NewMock(logger *slog.Logger) *Mock {
	return &Mock{
		logger: logger,
	}
}

// Publish logs the alert instead of sending it.
func (m *Mock) Publish(_ context.Context, alert *seismic.Alert) error {
	m.logger.Info("MOCK POST",
		"text", alert.Text,
		"description", alert.Description,
		"link_uri", alert.LinkURI,
		"link_title", alert.LinkTitle)
	return nil
}
