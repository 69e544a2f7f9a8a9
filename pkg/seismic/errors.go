package seismic

import (
	"errors"
	"fmt"
)

// MalformedRecordError indicates a feed record that cannot be
// normalized. It is local to one record: the pipeline skips the record
// and continues with the rest of the batch.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field %q %s", e.Field, e.Reason)
}

// IsMalformedRecord checks if an error is a per-record normalization failure.
func IsMalformedRecord(err error) bool {
	var malformed *MalformedRecordError
	return errors.As(err, &malformed)
}

// FetchKind classifies feed fetch failures.
type FetchKind int

const (
	FetchNotFound FetchKind = iota
	FetchServerError
	FetchNetworkError
)

func (k FetchKind) String() string {
	switch k {
	case FetchNotFound:
		return "not_found"
	case FetchServerError:
		return "server_error"
	default:
		return "network_error"
	}
}

// FetchError indicates the feed query failed. It aborts the remainder
// of the tick; the next tick proceeds independently.
type FetchError struct {
	Err  error
	URL  string
	Kind FetchKind
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("feed fetch %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PublishKind classifies publish failures.
type PublishKind int

const (
	PublishAuthFailure PublishKind = iota
	PublishRateLimited
	PublishOther
)

func (k PublishKind) String() string {
	switch k {
	case PublishAuthFailure:
		return "auth_failure"
	case PublishRateLimited:
		return "rate_limited"
	default:
		return "other"
	}
}

// PublishError indicates one alert could not be posted. The pipeline
// reports it and leaves dedup state untouched; the next tick re-fetches
// and may re-attempt.
type PublishError struct {
	Err  error
	Kind PublishKind
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// IsAuthFailure checks if an error is a publish authentication failure.
func IsAuthFailure(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe) && pe.Kind == PublishAuthFailure
}
