package store

import (
	"log/slog"
)

// Open picks a backend: SQLite when sqlitePath is set, else the JSON state file,
// else memory only.
func Open(log *slog.Logger, sqlitePath, stateFile string) (Store, error) {
	switch {
	case sqlitePath != "":
		return NewSQLiteStore(log, sqlitePath)
	case stateFile != "":
		return NewFileStore(log, stateFile)
	default:
		log.Warn("no database or state file configured, oracle state will not survive restarts")
		return NewMemoryStore(), nil
	}
}
