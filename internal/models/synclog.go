package models

import "time"

// SyncKind identifies which sync operation a log entry belongs to.
// Stored as smallint; values are part of the schema, do not renumber.
type SyncKind int16

const (
	SyncKindRegistrar     SyncKind = 1
	SyncKindContentFilter SyncKind = 2
	SyncKindNameserver    SyncKind = 3
)

func (k SyncKind) String() string {
	switch k {
	case SyncKindRegistrar:
		return "registrar_sync"
	case SyncKindContentFilter:
		return "content_filter_check"
	case SyncKindNameserver:
		return "nameserver_refresh"
	}
	return "unknown"
}

// SyncLogEntry is one append-only "service X ran at time T" record. Entries
// are never mutated or deleted; the latest entry per kind is the reported
// last-sync time.
type SyncLogEntry struct {
	ID        int64     `json:"id" db:"id"`
	Kind      SyncKind  `json:"kind" db:"kind"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
