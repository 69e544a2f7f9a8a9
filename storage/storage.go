// Package storage keeps an archive of published announcements.
//
// The archive is an audit log for the status page. Dedup decisions never
// read from it: suppression state is in-memory and resets with the
// process.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quake-notifier/pkg/seismic"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

// Announcement is one published alert as stored in the archive.
type Announcement struct {
	PostedAt    time.Time `json:"posted_at"`
	EventID     string    `json:"event_id"`
	Text        string    `json:"text"`
	Description string    `json:"description"`
	LinkURI     string    `json:"link_uri"`
	LinkTitle   string    `json:"link_title"`
}

// Store persists announcements to a GCS bucket, or to a local directory
// in development mode.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
	now       func() time.Time
}

// New creates a new archive store. Either bucket or localPath must be
// set; localPath wins when both are.
func New(client *storage.Client, bucket string, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
		now:       time.Now,
	}
}

// announcementKey generates a stable object name for one announcement.
// The event id is validated so a hostile feed record cannot traverse
// paths in local mode.
func announcementKey(eventID string, postedAt time.Time) string {
	if eventID == "" || len(eventID) > 64 {
		return ""
	}
	for _, c := range eventID {
		isSafe := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !isSafe {
			return ""
		}
	}
	return fmt.Sprintf("alert-%s-%d.json", eventID, postedAt.Unix())
}

// Record archives one published alert.
func (s *Store) Record(ctx context.Context, alert *seismic.Alert, eventID string) error {
	postedAt := s.now().UTC()
	key := announcementKey(eventID, postedAt)
	if key == "" {
		return errors.New("invalid event id for archive key")
	}

	data, err := json.MarshalIndent(Announcement{
		PostedAt:    postedAt,
		EventID:     eventID,
		Text:        alert.Text,
		Description: alert.Description,
		LinkURI:     alert.LinkURI,
		LinkTitle:   alert.LinkTitle,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}

	// Local filesystem storage
	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, key)
		if err := os.WriteFile(filePath, data, 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		s.logger.Info("Announcement archived to local storage", "path", filePath, "event_id", eventID)
		return nil
	}

	// Cloud Storage with retry logic for reliability
	err = retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying archive write after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("archive after retries: %w", err)
	}

	s.logger.Info("Announcement archived", "key", key, "event_id", eventID)
	return nil
}

// Recent returns up to n announcements, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Announcement, error) {
	var announcements []Announcement

	// Local filesystem storage
	if s.localPath != "" {
		entries, err := os.ReadDir(s.localPath)
		if err != nil {
			return nil, fmt.Errorf("read local storage directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasPrefix(entry.Name(), "alert-") || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}

			ann, err := s.loadLocal(entry.Name())
			if err != nil {
				s.logger.Warn("Failed to load announcement", "file", entry.Name(), "error", err)
				continue
			}
			announcements = append(announcements, ann)
		}
	} else {
		it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
			Prefix: "alert-",
		})

		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("iterate storage: %w", err)
			}

			ann, err := s.loadObject(ctx, attrs.Name)
			if err != nil {
				s.logger.Warn("Failed to load announcement", "key", attrs.Name, "error", err)
				continue
			}
			announcements = append(announcements, ann)
		}
	}

	sort.Slice(announcements, func(i, j int) bool {
		return announcements[i].PostedAt.After(announcements[j].PostedAt)
	})
	if n > 0 && len(announcements) > n {
		announcements = announcements[:n]
	}

	return announcements, nil
}

func (s *Store) loadLocal(name string) (Announcement, error) {
	var ann Announcement

	data, err := os.ReadFile(filepath.Join(s.localPath, name))
	if err != nil {
		return ann, fmt.Errorf("read local announcement: %w", err)
	}
	if err := json.Unmarshal(data, &ann); err != nil {
		return ann, fmt.Errorf("unmarshal announcement: %w", err)
	}
	return ann, nil
}

func (s *Store) loadObject(ctx context.Context, key string) (Announcement, error) {
	var ann Announcement

	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return ann, fmt.Errorf("open storage object: %w", err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			s.logger.Warn("Failed to close storage reader", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return ann, fmt.Errorf("read storage object: %w", err)
	}
	if err := json.Unmarshal(data, &ann); err != nil {
		return ann, fmt.Errorf("unmarshal announcement: %w", err)
	}
	return ann, nil
}
