package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/audit"
	"mercator-hq/relay/pkg/audit/retention"
	"mercator-hq/relay/pkg/audit/storage"
	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune the relay audit trail",
	Long: `Inspect and prune the relay audit trail.

The commands operate on the SQLite store configured under audit.sqlite.
They work whether or not audit.enabled is set, so a trail recorded
earlier can still be read.`,
}

var auditListFlags struct {
	since     string
	until     string
	outcome   string
	kind      string
	requestID string
	limit     int
	offset    int
	output    string
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records, newest first",
	Long: `List audit records, newest first.

--since and --until accept an RFC3339 timestamp or a duration counted
back from now (e.g. 24h, 90m).

Examples:
  # Errors of the last day
  relay audit list --outcome error --since 24h

  # One call by request ID, as JSON
  relay audit list --request-id 550e8400-e29b-41d4-a716-446655440000 --output json

  # Export a time range as CSV
  relay audit list --since 2026-05-01T00:00:00Z --until 2026-06-01T00:00:00Z --limit 0 --output csv`,
	RunE: listAudit,
}

var auditPruneFlags struct {
	retentionDays int
	dryRun        bool
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit records older than the retention period",
	Long: `Delete audit records older than the retention period.

The period defaults to audit.retention_days.

Examples:
  relay audit prune
  relay audit prune --retention-days 7 --dry-run`,
	RunE: pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditPruneCmd)

	f := auditListCmd.Flags()
	f.StringVar(&auditListFlags.since, "since", "", "only records at or after this time")
	f.StringVar(&auditListFlags.until, "until", "", "only records before this time")
	f.StringVar(&auditListFlags.outcome, "outcome", "", "filter by outcome: success, error, preflight")
	f.StringVar(&auditListFlags.kind, "kind", "", "filter by error kind")
	f.StringVar(&auditListFlags.requestID, "request-id", "", "filter by request ID")
	f.IntVar(&auditListFlags.limit, "limit", 50, "maximum records to show (0 for all)")
	f.IntVar(&auditListFlags.offset, "offset", 0, "records to skip")
	f.StringVarP(&auditListFlags.output, "output", "o", "text", "output format: text, json, csv")

	auditPruneCmd.Flags().IntVar(&auditPruneFlags.retentionDays, "retention-days", 0, "override audit.retention_days")
	auditPruneCmd.Flags().BoolVar(&auditPruneFlags.dryRun, "dry-run", false, "count the records without deleting them")
}

func listAudit(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(auditListFlags.output)
	if err != nil {
		return err
	}

	now := time.Now()
	q := &audit.Query{
		Outcome:   auditListFlags.outcome,
		ErrorKind: auditListFlags.kind,
		RequestID: auditListFlags.requestID,
		Limit:     auditListFlags.limit,
		Offset:    auditListFlags.offset,
	}
	if q.Since, err = parseTimeFlag("since", auditListFlags.since, now); err != nil {
		return err
	}
	if q.Until, err = parseTimeFlag("until", auditListFlags.until, now); err != nil {
		return err
	}

	store, err := openAuditStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}

	var data any = recordTable(records)
	if format == cli.FormatJSON {
		data = records
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	days := cfg.Audit.RetentionDays
	if cmd.Flags().Changed("retention-days") {
		days = auditPruneFlags.retentionDays
	}
	if days <= 0 {
		return cli.NewCommandError("audit prune", fmt.Errorf("retention must be at least one day, got %d", days))
	}

	store, err := openAuditStoreFrom(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pruner := retention.NewPruner(store, retention.Config{RetentionDays: days}, discardLogger(), nil)
	cutoff := pruner.Cutoff()
	out := cmd.OutOrStdout()

	if auditPruneFlags.dryRun {
		n, err := store.Count(cmd.Context(), &audit.Query{Until: &cutoff})
		if err != nil {
			return cli.NewCommandError("audit prune", err)
		}
		fmt.Fprintf(out, "%d records older than %s would be deleted\n", n, cutoff.Format(time.RFC3339))
		return nil
	}

	n, err := pruner.PruneBefore(cmd.Context(), cutoff)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	fmt.Fprintf(out, "✓ Deleted %d records older than %s\n", n, cutoff.Format(time.RFC3339))
	return nil
}

func openAuditStore(cmd *cobra.Command) (audit.Storage, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openAuditStoreFrom(cfg)
}

// openAuditStoreFrom opens the SQLite store; an in-memory trail does not
// outlive the server so there is nothing to inspect.
func openAuditStoreFrom(cfg *config.Config) (audit.Storage, error) {
	auditCfg := cfg.Audit
	if auditCfg.Backend != "sqlite" {
		return nil, cli.NewConfigError(cfgFile, fmt.Errorf("audit commands need the sqlite backend, got %q", auditCfg.Backend))
	}
	store, err := storage.Open(&auditCfg, discardLogger())
	if err != nil {
		return nil, cli.NewCommandError("audit", err)
	}
	return store, nil
}

// parseTimeFlag accepts RFC3339 or a duration back from now.
func parseTimeFlag(name, value string, now time.Time) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return nil, fmt.Errorf("--%s must be an RFC3339 time or a positive duration, got %q", name, value)
	}
	t := now.Add(-d)
	return &t, nil
}

// recordTable renders records as CLI rows.
type recordTable []*audit.Record

func (recordTable) Header() []string {
	return []string{"RECORDED_AT", "REQUEST_ID", "METHOD", "PATH", "OUTCOME", "ERROR_KIND", "UPSTREAM", "MESSAGES", "DURATION_MS"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, rec := range t {
		upstreamStatus := "-"
		if rec.UpstreamStatus > 0 {
			upstreamStatus = strconv.Itoa(rec.UpstreamStatus)
		}
		kind := rec.ErrorKind
		if kind == "" {
			kind = "-"
		}
		rows = append(rows, []string{
			rec.RecordedAt.UTC().Format(time.RFC3339),
			rec.RequestID,
			rec.Method,
			rec.Path,
			rec.Outcome,
			kind,
			upstreamStatus,
			strconv.Itoa(rec.MessageCount),
			strconv.FormatFloat(float64(rec.Duration.Microseconds())/1000, 'f', 1, 64),
		})
	}
	return rows
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
