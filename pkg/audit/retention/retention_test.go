package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/relay/pkg/audit"
	"mercator-hq/relay/pkg/audit/storage"
)

type failingStorage struct {
	*storage.MemoryStorage
}

func (failingStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	return 0, audit.NewStorageError("memory", "delete", errors.New("disk on fire"))
}

func seedAges(t *testing.T, s audit.Storage, now time.Time, ages ...time.Duration) {
	t.Helper()
	for i, age := range ages {
		rec := &audit.Record{
			ID:         string(rune('a' + i)),
			RecordedAt: now.Add(-age),
			Outcome:    audit.OutcomeSuccess,
		}
		if err := s.Store(context.Background(), rec); err != nil {
			t.Fatalf("Store() failed: %v", err)
		}
	}
}

func TestPruner_Prune(t *testing.T) {
	now := time.Date(2026, 5, 20, 3, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name          string
		retentionDays int
		wantDeleted   int64
		wantRemaining int64
	}{
		{"thirty days", 30, 2, 2},
		{"one day", 1, 3, 1},
		{"disabled", 0, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			seedAges(t, store, now, time.Hour, 2*day, 31*day, 90*day)

			pruner := NewPruner(store, Config{RetentionDays: tt.retentionDays}, nil, nil)
			pruner.now = func() time.Time { return now }

			deleted, err := pruner.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() failed: %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("Prune() = %d, want %d", deleted, tt.wantDeleted)
			}
			remaining, _ := store.Count(context.Background(), nil)
			if remaining != tt.wantRemaining {
				t.Errorf("remaining = %d, want %d", remaining, tt.wantRemaining)
			}
		})
	}
}

func TestPruner_Cutoff(t *testing.T) {
	now := time.Date(2026, 5, 20, 3, 0, 0, 0, time.UTC)
	pruner := NewPruner(storage.NewMemoryStorage(), Config{RetentionDays: 30}, nil, nil)
	pruner.now = func() time.Time { return now }

	want := time.Date(2026, 4, 20, 3, 0, 0, 0, time.UTC)
	if got := pruner.Cutoff(); !got.Equal(want) {
		t.Errorf("Cutoff() = %v, want %v", got, want)
	}
}

func TestPruner_StorageError(t *testing.T) {
	pruner := NewPruner(failingStorage{storage.NewMemoryStorage()}, Config{RetentionDays: 7}, nil, nil)

	_, err := pruner.Prune(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var rerr *RetentionError
	if !errors.As(err, &rerr) || rerr.RetentionDays != 7 {
		t.Errorf("expected RetentionError with retention 7, got %v", err)
	}
	var serr *audit.StorageError
	if !errors.As(err, &serr) {
		t.Errorf("expected wrapped StorageError, got %v", err)
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name          string
		schedule      string
		retentionDays int
		wantRunning   bool
		wantError     bool
	}{
		{"valid daily schedule", "0 3 * * *", 30, true, false},
		{"valid hourly schedule", "0 * * * *", 30, true, false},
		{"empty schedule", "", 30, false, false},
		{"retention disabled", "0 3 * * *", 0, false, false},
		{"invalid schedule", "invalid cron", 30, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pruner := NewPruner(storage.NewMemoryStorage(), Config{
				PruneSchedule: tt.schedule,
				RetentionDays: tt.retentionDays,
			}, nil, nil)
			scheduler := NewScheduler(pruner)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := scheduler.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if scheduler.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", scheduler.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning && scheduler.NextRun() == nil {
				t.Error("NextRun() should be set when running")
			}
			scheduler.Stop()
			if scheduler.IsRunning() {
				t.Error("scheduler should stop")
			}
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	pruner := NewPruner(storage.NewMemoryStorage(), Config{PruneSchedule: "0 3 * * *", RetentionDays: 30}, nil, nil)
	scheduler := NewScheduler(pruner)

	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for scheduler.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if scheduler.IsRunning() {
		t.Error("scheduler should stop when the context is cancelled")
	}
}
