package models

import "time"

// HistoryEntry is one executed statement
type HistoryEntry struct {
	ID             int
	ConnectionName string
	DatabaseName   string
	Query          string
	ExecutedAt     time.Time
	Duration       time.Duration
	RowsAffected   int64
	Success        bool
	ErrorMessage   string
}
