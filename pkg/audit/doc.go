// Package audit records one entry per relay call.
//
// A Record holds the call's outcome, error kind, upstream status and
// timings, the number of messages and a sha256 of the inbound body. It
// never holds the upstream credential or any message content.
//
// The Recorder writes asynchronously through a bounded buffer:
//
//	rec := audit.NewRecorder(store, audit.RecorderConfig{Buffer: 1000})
//	defer rec.Close()
//
//	rec.Record(ctx, audit.Record{RequestID: id, Outcome: audit.OutcomeSuccess})
//
// A full buffer drops the record and increments
// relay_audit_records_dropped_total. Close flushes what is buffered.
//
// Backends live in the storage subpackage and retention pruning in the
// retention subpackage.
package audit
