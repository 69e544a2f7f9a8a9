// Package main implements a Cloud Run service that polls the USGS
// earthquake feed and announces fresh events on Bluesky.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"quake-notifier/bluesky"
	"quake-notifier/feed"
	"quake-notifier/format"
	"quake-notifier/pipeline"
	"quake-notifier/server"
	"quake-notifier/storage"

	gcs "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// defaultSchedule matches the production cadence: one tick every three
// hours. Override with POLL_SCHEDULE; set it to "off" to rely solely on
// the /pollz trigger.
const defaultSchedule = "0 */3 * * *"

func main() {
	ctx := context.Background()

	// .env is optional; explicit env vars win either way
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	bucket := os.Getenv("STORAGE_BUCKET")
	localStorage := os.Getenv("LOCAL_STORAGE")

	// Default to local development mode if no bucket specified
	if bucket == "" && localStorage == "" {
		localStorage = "./data"
		logger.Info("No STORAGE_BUCKET set, defaulting to local development mode", "storage_path", localStorage)
	}

	var gcsClient *gcs.Client
	if localStorage != "" {
		if err := os.MkdirAll(localStorage, 0o755); err != nil {
			logger.Error("Failed to create local storage directory", "error", err)
			os.Exit(1)
		}
	} else {
		var err error
		gcsClient, err = gcs.NewClient(ctx)
		if err != nil {
			logger.Error("Failed to initialize Storage client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := gcsClient.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}()
	}
	archive := storage.New(gcsClient, bucket, localStorage, logger)

	// Mock publisher unless Bluesky credentials are provided
	var publisher pipeline.Publisher
	identifier := os.Getenv("BLUESKY_USERNAME")
	password := os.Getenv("BLUESKY_PASSWORD")
	if identifier == "" || password == "" {
		logger.Info("Mock publisher enabled (no BLUESKY_USERNAME / BLUESKY_PASSWORD)")
		publisher = bluesky.NewMock(logger)
	} else {
		publisher = bluesky.New(bluesky.Config{
			Host:       os.Getenv("BLUESKY_HOST"),
			Identifier: identifier,
			Password:   password,
			Lang:       os.Getenv("BLUESKY_LANG"),
		}, logger)
	}

	formatter, err := format.New(format.Options{
		DisplayTimeZone: os.Getenv("DISPLAY_TIMEZONE"),
		TitleWithID:     envBool(logger, "LINK_TITLE_WITH_ID", false),
	})
	if err != nil {
		logger.Error("Failed to create formatter", "error", err)
		os.Exit(1)
	}

	feedClient := feed.New(&http.Client{Timeout: 30 * time.Second}, feed.Config{
		BaseURL:      os.Getenv("FEED_URL"),
		MinMagnitude: envFloat(logger, "FEED_MIN_MAGNITUDE", 1.0),
		Latitude:     envFloat(logger, "FEED_LATITUDE", 34.14818),
		Longitude:    envFloat(logger, "FEED_LONGITUDE", -118.27332),
		RadiusKM:     envFloat(logger, "FEED_RADIUS_KM", 100),
	}, logger)

	monitor := pipeline.New(&pipeline.Config{
		Feed:          feedClient,
		Publisher:     publisher,
		Formatter:     formatter,
		Archive:       archive,
		Logger:        logger,
		QueryLookback: envDuration(logger, "QUERY_LOOKBACK", pipeline.DefaultQueryLookback),
		RecencyWindow: envDuration(logger, "RECENCY_WINDOW", pipeline.DefaultRecencyWindow),
	})

	// In-process scheduler; shares the tick entry point with /pollz so
	// triggers never overlap
	schedule := os.Getenv("POLL_SCHEDULE")
	if schedule == "" {
		schedule = defaultSchedule
	}
	if schedule != "off" {
		c := cron.New()
		if _, err := c.AddFunc(schedule, func() {
			monitor.RunTick(ctx)
		}); err != nil {
			logger.Error("Invalid POLL_SCHEDULE", "schedule", schedule, "error", err)
			os.Exit(1)
		}
		c.Start()
		logger.Info("Poll scheduler started", "schedule", schedule)
	}

	srv := server.New(&server.Config{
		Ticker:  monitor,
		Archive: archive,
		Logger:  logger,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := srv.ListenAndServe(port); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func envDuration(logger *slog.Logger, key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("Invalid duration in environment, using default", "key", key, "value", raw, "default", fallback.String())
		return fallback
	}
	return d
}

func envFloat(logger *slog.Logger, key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Warn("Invalid number in environment, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return f
}

func envBool(logger *slog.Logger, key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warn("Invalid boolean in environment, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return b
}
