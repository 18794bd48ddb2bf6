package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/relay/pkg/audit"
	"mercator-hq/relay/pkg/config"
)

// createTempDB creates a temporary SQLite database on the pure Go driver.
func createTempDB(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nested", "audit.db")
	s, err := NewSQLiteStorage(SQLiteConfig{
		Driver:      DriverModernc,
		Path:        dbPath,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dbPath
}

// backends runs fn against every storage implementation.
func backends(t *testing.T, fn func(t *testing.T, s audit.Storage)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStorage())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, _ := createTempDB(t)
		fn(t, s)
	})
}

func seed(t *testing.T, s audit.Storage, base time.Time) {
	t.Helper()
	records := []audit.Record{
		{ID: "a", RequestID: "req-a", RecordedAt: base, Method: "POST", Path: "/", Outcome: audit.OutcomeSuccess,
			UpstreamStatus: 200, UpstreamLatency: 120 * time.Millisecond, Duration: 125 * time.Millisecond,
			MessageCount: 2, RequestHash: "abc", RequestBytes: 64, ResponseBytes: 128},
		{ID: "b", RequestID: "req-b", RecordedAt: base.Add(time.Minute), Method: "POST", Path: "/", Outcome: audit.OutcomeError,
			ErrorKind: "upstream_unreachable", Duration: 3 * time.Millisecond, MessageCount: 1, RequestBytes: 40, ResponseBytes: 53},
		{ID: "c", RequestID: "req-c", RecordedAt: base.Add(2 * time.Minute), Method: "OPTIONS", Path: "/", Outcome: audit.OutcomePreflight},
		{ID: "d", RequestID: "req-d", RecordedAt: base.Add(3 * time.Minute), Method: "GET", Path: "/", Outcome: audit.OutcomeError,
			ErrorKind: "invalid_inbound_payload", ResponseBytes: 53},
	}
	for i := range records {
		if err := s.Store(context.Background(), &records[i]); err != nil {
			t.Fatalf("Store(%s) failed: %v", records[i].ID, err)
		}
	}
}

func TestStorage_StoreAndQuery(t *testing.T) {
	backends(t, func(t *testing.T, s audit.Storage) {
		base := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)
		seed(t, s, base)
		ctx := context.Background()

		all, err := s.Query(ctx, &audit.Query{})
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(all) != 4 {
			t.Fatalf("expected 4 records, got %d", len(all))
		}
		if all[0].ID != "d" || all[3].ID != "a" {
			t.Errorf("records should be newest first, got %s..%s", all[0].ID, all[3].ID)
		}

		a := all[3]
		if !a.RecordedAt.Equal(base) {
			t.Errorf("RecordedAt = %v, want %v", a.RecordedAt, base)
		}
		if a.UpstreamLatency != 120*time.Millisecond || a.Duration != 125*time.Millisecond {
			t.Errorf("durations not preserved: %v %v", a.UpstreamLatency, a.Duration)
		}
		if a.UpstreamStatus != 200 || a.MessageCount != 2 || a.RequestHash != "abc" {
			t.Errorf("fields not preserved: %+v", a)
		}
		if a.ErrorKind != "" {
			t.Errorf("ErrorKind should be empty, got %q", a.ErrorKind)
		}
	})
}

func TestStorage_QueryFilters(t *testing.T) {
	backends(t, func(t *testing.T, s audit.Storage) {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		seed(t, s, base)
		ctx := context.Background()

		since := base.Add(time.Minute)
		until := base.Add(3 * time.Minute)

		tests := []struct {
			name  string
			query *audit.Query
			want  []string
		}{
			{"outcome", &audit.Query{Outcome: audit.OutcomeError}, []string{"d", "b"}},
			{"error kind", &audit.Query{ErrorKind: "upstream_unreachable"}, []string{"b"}},
			{"request id", &audit.Query{RequestID: "req-c"}, []string{"c"}},
			{"time range", &audit.Query{Since: &since, Until: &until}, []string{"c", "b"}},
			{"limit", &audit.Query{Limit: 2}, []string{"d", "c"}},
			{"offset", &audit.Query{Limit: 2, Offset: 3}, []string{"a"}},
			{"offset past end", &audit.Query{Offset: 10}, []string{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := s.Query(ctx, tt.query)
				if err != nil {
					t.Fatalf("Query() failed: %v", err)
				}
				ids := make([]string, len(got))
				for i, rec := range got {
					ids[i] = rec.ID
				}
				if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
					t.Errorf("got %v, want %v", ids, tt.want)
				}

				n, err := s.Count(ctx, tt.query)
				if err != nil {
					t.Fatalf("Count() failed: %v", err)
				}
				if tt.query.Limit == 0 && tt.query.Offset == 0 && n != int64(len(tt.want)) {
					t.Errorf("Count() = %d, want %d", n, len(tt.want))
				}
			})
		}
	})
}

func TestStorage_Delete(t *testing.T) {
	backends(t, func(t *testing.T, s audit.Storage) {
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		seed(t, s, base)
		ctx := context.Background()

		cutoff := base.Add(2 * time.Minute)
		deleted, err := s.Delete(ctx, &audit.Query{Until: &cutoff})
		if err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if deleted != 2 {
			t.Errorf("Delete() = %d, want 2", deleted)
		}

		n, _ := s.Count(ctx, nil)
		if n != 2 {
			t.Errorf("expected 2 remaining records, got %d", n)
		}
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() failed: %v", err)
		}
	})
}

func TestSQLiteStorage_DuplicateID(t *testing.T) {
	s, _ := createTempDB(t)
	rec := &audit.Record{ID: "dup", RequestID: "r", RecordedAt: time.Now(), Method: "POST", Path: "/", Outcome: audit.OutcomeSuccess}

	if err := s.Store(context.Background(), rec); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	err := s.Store(context.Background(), rec)
	if err == nil {
		t.Fatal("expected error storing a duplicate ID")
	}
	var serr *audit.StorageError
	if !errors.As(err, &serr) || serr.Operation != "store" {
		t.Errorf("expected store StorageError, got %v", err)
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	s, path := createTempDB(t)
	seed(t, s, time.Now().UTC())
	s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	reopened, err := NewSQLiteStorage(SQLiteConfig{Path: path, WALMode: true})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	n, err := reopened.Count(context.Background(), nil)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 records after reopen, got %d", n)
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SQLiteConfig
		want    string
		wantErr bool
	}{
		{"modernc wal", SQLiteConfig{Driver: DriverModernc, Path: "a.db", WALMode: true, BusyTimeout: time.Second},
			"file:a.db?_pragma=busy_timeout(1000)&_pragma=journal_mode(WAL)", false},
		{"modernc no wal", SQLiteConfig{Driver: DriverModernc, Path: "a.db", BusyTimeout: time.Second},
			"file:a.db?_pragma=busy_timeout(1000)", false},
		{"cgo wal", SQLiteConfig{Driver: DriverCGO, Path: "a.db", WALMode: true, BusyTimeout: 2 * time.Second},
			"file:a.db?_busy_timeout=2000&_journal_mode=WAL", false},
		{"unknown", SQLiteConfig{Driver: "pgx", Path: "a.db"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildDSN() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(&config.AuditConfig{Backend: "memory"}, nil)
	if err != nil {
		t.Fatalf("Open(memory) failed: %v", err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("expected *MemoryStorage, got %T", s)
	}

	s, err = Open(&config.AuditConfig{
		Backend: "sqlite",
		SQLite:  config.SQLiteConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "a.db")},
	}, nil)
	if err != nil {
		t.Fatalf("Open(sqlite) failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStorage); !ok {
		t.Errorf("expected *SQLiteStorage, got %T", s)
	}

	if _, err := Open(&config.AuditConfig{Backend: "postgres"}, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}
