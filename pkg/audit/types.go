package audit

import (
	"context"
	"time"
)

// Relay outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomePreflight = "preflight"
)

// Record describes one relay call. It never holds the credential or any
// message content: the request is represented only by its size, message
// count and sha256 hash.
type Record struct {
	// Identity
	ID        string `json:"id"`         // UUID v4
	RequestID string `json:"request_id"` // X-Request-ID of the call

	RecordedAt time.Time `json:"recorded_at"` // When the call arrived
	Method     string    `json:"method"`
	Path       string    `json:"path"`

	Outcome   string `json:"outcome"`              // success, error or preflight
	ErrorKind string `json:"error_kind,omitempty"` // Set when Outcome is error

	UpstreamStatus  int           `json:"upstream_status,omitempty"` // 0 when no response arrived
	UpstreamLatency time.Duration `json:"upstream_latency"`
	Duration        time.Duration `json:"duration"`

	MessageCount  int    `json:"message_count"`
	RequestHash   string `json:"request_hash,omitempty"` // SHA-256 of the inbound body
	RequestBytes  int    `json:"request_bytes"`
	ResponseBytes int    `json:"response_bytes"`
}

// Query defines filter parameters for audit records. Zero values match
// everything.
type Query struct {
	// Time range on RecordedAt.
	Since *time.Time `json:"since,omitempty"` // Inclusive
	Until *time.Time `json:"until,omitempty"` // Exclusive

	Outcome   string `json:"outcome,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Pagination. Results are ordered newest first.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Matches reports whether rec satisfies the filters of q, ignoring
// pagination.
func (q *Query) Matches(rec *Record) bool {
	if q == nil {
		return true
	}
	if q.Since != nil && rec.RecordedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && !rec.RecordedAt.Before(*q.Until) {
		return false
	}
	if q.Outcome != "" && rec.Outcome != q.Outcome {
		return false
	}
	if q.ErrorKind != "" && rec.ErrorKind != q.ErrorKind {
		return false
	}
	if q.RequestID != "" && rec.RequestID != q.RequestID {
		return false
	}
	return true
}

// Storage defines the interface for audit storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, rec *Record) error

	// Query returns the records matching q, newest first.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes the records matching q and returns how many were
	// removed. Pagination is ignored.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Ping checks the backend is usable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}
