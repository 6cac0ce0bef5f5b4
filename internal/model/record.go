package model

import "time"

// Record is the persisted completion state of one item.
// ID is the primary key; Timestamp is informational (epoch millis of the last write).
type Record struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
	Timestamp int64  `json:"timestamp"`
}

// NewRecord stamps a record with the given write time.
func NewRecord(id string, completed bool, at time.Time) Record {
	return Record{ID: id, Completed: completed, Timestamp: at.UnixMilli()}
}
