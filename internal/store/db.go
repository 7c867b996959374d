// Package store persists completed run results: an append-only JSONL log
// (the canonical best-effort record) and a SQLite table serving admin
// queries and CSV export.
package store

import (
	"time"
)

// RulePair is the (condition, action) pair in force during a run,
// denormalized into the result row.
type RulePair struct {
	CondID   string `json:"condId"`
	ActionID string `json:"actionId"`
}

// ResultRecord is one completed run. Card title, mode and difficulty are
// copied in so exports never need to re-join against the catalog.
type ResultRecord struct {
	ID         string    `json:"-"`
	Time       time.Time `json:"time"`
	KioskID    string    `json:"kioskId"`
	Difficulty string    `json:"difficulty"`
	Mode       string    `json:"mode"`
	CardID     string    `json:"cardId"`
	CardTitle  string    `json:"cardTitle"`
	Pass       bool      `json:"pass"`
	Total      int       `json:"total"`
	Code       string    `json:"code"`
	Rescue     int       `json:"rescue"`
	Crowd      int       `json:"crowd"`
	Delay      int       `json:"delay"`
	Rule1      RulePair  `json:"rule1"`
	Rule2      RulePair  `json:"rule2"`
}

// DB is the queryable result store.
type DB interface {
	Close() error
	Migrate() error
	SaveResult(rec *ResultRecord) error
	// ListResults returns up to limit records, newest first.
	ListResults(limit int) ([]ResultRecord, error)
}
