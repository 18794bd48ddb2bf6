package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/relay/pkg/telemetry/metrics"
)

// RecorderConfig contains configuration for the audit recorder.
type RecorderConfig struct {
	// Buffer is the size of the async write channel.
	// Default: 1000
	Buffer int

	// WriteTimeout bounds a single storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Recorder writes audit records asynchronously so relay calls never wait
// on storage. When the buffer is full the record is dropped and counted.
type Recorder struct {
	storage      Storage
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Collector

	records chan *Record
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRecorder creates a recorder and starts its background writer.
func NewRecorder(storage Storage, cfg RecorderConfig) *Recorder {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:      storage,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger.With("component", "audit.recorder"),
		metrics:      cfg.Metrics,
		records:      make(chan *Record, cfg.Buffer),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("audit recorder initialized", "buffer", cfg.Buffer)
	return r
}

// Record enqueues rec for writing. It never blocks. A missing ID or
// timestamp is filled in.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(ctx, &rec, "recorder closed")
		return
	}

	select {
	case r.records <- &rec:
	default:
		r.drop(ctx, &rec, "buffer full")
	}
}

func (r *Recorder) drop(ctx context.Context, rec *Record, reason string) {
	r.metrics.RecordAuditDropped()
	r.logger.WarnContext(ctx, "dropping audit record",
		"record_id", rec.ID,
		"reason", reason,
		"buffer", cap(r.records),
	)
}

// Pending returns the number of records waiting to be written.
func (r *Recorder) Pending() int {
	return len(r.records)
}

// Close stops accepting records, writes everything still buffered and
// waits for the writer to exit. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.records)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("audit recorder shut down")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for rec := range r.records {
		r.write(rec)
	}
}

func (r *Recorder) write(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, rec); err != nil {
		r.metrics.RecordAuditError("store")
		r.logger.Error("failed to store audit record",
			"record_id", rec.ID,
			"request_id", rec.RequestID,
			"error", err,
		)
		return
	}
	r.metrics.RecordAuditWritten(1)

	if d := time.Since(start); d > r.writeTimeout/2 {
		r.logger.Warn("slow audit write",
			"record_id", rec.ID,
			"duration_ms", d.Milliseconds(),
		)
	}
}
