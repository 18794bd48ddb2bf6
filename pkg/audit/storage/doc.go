// Package storage provides the audit.Storage backends.
//
// MemoryStorage keeps records in process memory and suits tests and
// short-lived deployments. SQLiteStorage persists them in a single file
// and can run on either of two drivers:
//
//	audit:
//	  backend: sqlite
//	  sqlite:
//	    driver: sqlite   # modernc.org/sqlite, pure Go (default)
//	    # driver: sqlite3 # mattn/go-sqlite3, requires cgo
//	    path: data/audit.db
//	    wal_mode: true
//	    busy_timeout: 5s
//
// The SQLite connection pool is limited to one connection because SQLite
// allows a single writer.
package storage
