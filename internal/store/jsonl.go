package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// ResultLog is the append-only newline-delimited result log. Appends are
// best-effort; callers log failures and carry on.
type ResultLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenResultLog opens (or creates) the JSONL log at path for appending.
func OpenResultLog(path string) (*ResultLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open result log: %w", err)
	}
	return &ResultLog{file: f}, nil
}

// Append writes one record as a JSON line.
func (l *ResultLog) Append(rec *ResultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *ResultLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Sink receives completed run records.
type Sink interface {
	Append(rec *ResultRecord) error
}

// SQLiteSink adapts a DB to the Sink interface.
type SQLiteSink struct {
	DB DB
}

// Append saves the record to the database.
func (s SQLiteSink) Append(rec *ResultRecord) error {
	return s.DB.SaveResult(rec)
}

// MultiSink fans a record out to every sink, collecting the first error
// but still attempting the rest.
type MultiSink []Sink

// Append writes the record to each sink in order.
func (m MultiSink) Append(rec *ResultRecord) error {
	var firstErr error
	for _, s := range m {
		if err := s.Append(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
