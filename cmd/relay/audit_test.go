package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/relay/pkg/audit"
	"mercator-hq/relay/pkg/audit/storage"
)

// seedAuditStore writes records aged 1h, 2d and 40d into a fresh SQLite
// file and returns a config pointing at it.
func seedAuditStore(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "audit.db")
	store, err := storage.NewSQLiteStorage(storage.SQLiteConfig{Path: dbPath, WALMode: true})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() failed: %v", err)
	}

	now := time.Now().UTC()
	records := []audit.Record{
		{ID: "r1", RequestID: "req-1", RecordedAt: now.Add(-time.Hour), Method: "POST", Path: "/",
			Outcome: audit.OutcomeSuccess, UpstreamStatus: 200, MessageCount: 2, Duration: 150 * time.Millisecond},
		{ID: "r2", RequestID: "req-2", RecordedAt: now.Add(-48 * time.Hour), Method: "POST", Path: "/",
			Outcome: audit.OutcomeError, ErrorKind: "upstream_unreachable", Duration: 3 * time.Millisecond},
		{ID: "r3", RequestID: "req-3", RecordedAt: now.Add(-40 * 24 * time.Hour), Method: "OPTIONS", Path: "/",
			Outcome: audit.OutcomePreflight},
	}
	for i := range records {
		if err := store.Store(context.Background(), &records[i]); err != nil {
			t.Fatalf("Store() failed: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	return writeConfig(t, fmt.Sprintf("audit:\n  backend: sqlite\n  retention_days: 30\n  sqlite:\n    path: %q\n", dbPath))
}

func TestAuditList(t *testing.T) {
	cfg := seedAuditStore(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"all", nil, []string{"RECORDED_AT", "req-1", "req-2", "req-3"}, nil},
		{"outcome", []string{"--outcome", "error"}, []string{"req-2", "upstream_unreachable"}, []string{"req-1", "req-3"}},
		{"since duration", []string{"--since", "24h"}, []string{"req-1"}, []string{"req-2", "req-3"}},
		{"limit", []string{"--limit", "1"}, []string{"req-1"}, []string{"req-2"}},
		{"request id", []string{"--request-id", "req-3"}, []string{"preflight"}, []string{"req-1"}},
		{"csv", []string{"--output", "csv", "--kind", "upstream_unreachable"}, []string{"RECORDED_AT,REQUEST_ID", ",req-2,POST,/,error,upstream_unreachable,-,0,3.0"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"audit", "list", "--config", cfg}, tt.args...)...)
			if err != nil {
				t.Fatalf("audit list failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output does not contain %q:\n%s", want, out)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(out, notWant) {
					t.Errorf("output should not contain %q:\n%s", notWant, out)
				}
			}
		})
	}
}

func TestAuditList_JSON(t *testing.T) {
	cfg := seedAuditStore(t)

	out, err := execute(t, "audit", "list", "--config", cfg, "--output", "json")
	if err != nil {
		t.Fatalf("audit list failed: %v", err)
	}

	var records []audit.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("output is not a JSON record list: %v\n%s", err, out)
	}
	if len(records) != 3 || records[0].ID != "r1" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestAuditList_BadFlags(t *testing.T) {
	cfg := seedAuditStore(t)

	if _, err := execute(t, "audit", "list", "--config", cfg, "--since", "yesterday"); err == nil {
		t.Error("expected error for an unparseable --since")
	}
	if _, err := execute(t, "audit", "list", "--config", cfg, "--output", "xml"); err == nil {
		t.Error("expected error for an unknown output format")
	}

	memory := writeConfig(t, "audit:\n  backend: memory\n")
	if _, err := execute(t, "audit", "list", "--config", memory); err == nil {
		t.Error("expected error for the memory backend")
	}
}

func TestAuditPrune(t *testing.T) {
	cfg := seedAuditStore(t)

	out, err := execute(t, "audit", "prune", "--config", cfg, "--dry-run")
	if err != nil {
		t.Fatalf("audit prune --dry-run failed: %v", err)
	}
	if !strings.Contains(out, "1 records older than") {
		t.Errorf("dry run should count one record, got %q", out)
	}

	out, err = execute(t, "audit", "prune", "--config", cfg, "--retention-days", "1")
	if err != nil {
		t.Fatalf("audit prune failed: %v", err)
	}
	if !strings.Contains(out, "Deleted 2 records") {
		t.Errorf("expected two deletions, got %q", out)
	}

	out, err = execute(t, "audit", "list", "--config", cfg)
	if err != nil {
		t.Fatalf("audit list failed: %v", err)
	}
	if !strings.Contains(out, "req-1") || strings.Contains(out, "req-2") {
		t.Errorf("only the newest record should remain:\n%s", out)
	}

	if _, err := execute(t, "audit", "prune", "--config", cfg, "--retention-days", "0"); err == nil {
		t.Error("expected error for zero retention")
	}
}

func TestParseTimeFlag(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value   string
		want    *time.Time
		wantErr bool
	}{
		{value: ""},
		{value: "2026-05-01T00:00:00Z", want: ptr(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))},
		{value: "90m", want: ptr(now.Add(-90 * time.Minute))},
		{value: "-1h", wantErr: true},
		{value: "last week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseTimeFlag("since", tt.value, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeFlag(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("parseTimeFlag(%q) = %v, want nil", tt.value, got)
				}
				return
			}
			if got == nil || !got.Equal(*tt.want) {
				t.Errorf("parseTimeFlag(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
