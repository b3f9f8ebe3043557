// Package journal appends session lifecycle events to a JSONL file,
// one JSON object per line. It gives serve mode a durable trace of
// what every session did and when.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event names recorded by the manager.
const (
	EventSessionStarted   = "session_started"
	EventStepExecuted     = "step_executed"
	EventStepSkipped      = "step_skipped"
	EventSessionCompleted = "session_completed"
	EventSessionEnded     = "session_ended"
	EventSessionError     = "session_error"
)

// Entry is one journal line.
type Entry struct {
	TS         time.Time `json:"ts"`
	Event      string    `json:"event"`
	SessionID  string    `json:"session_id"`
	ScenarioID string    `json:"scenario_id,omitempty"`
	StepID     string    `json:"step_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Journal is a mutex-guarded appender over one open file handle.
type Journal struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (or creates) the journal file for appending.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	return &Journal{file: file}, nil
}

// Append writes one entry. The timestamp is stamped here when the
// caller left it zero.
func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("journal: marshal entry: %w", err)
	}
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("journal: write entry: %w", err)
	}
	return j.file.Sync()
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Read loads every entry from a journal file. Malformed lines are
// skipped.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: scan %s: %w", path, err)
	}
	return entries, nil
}
