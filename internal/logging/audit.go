package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// QueryLog is one audit record per executor call.
type QueryLog struct {
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id"`
	TraceID       string    `json:"trace_id,omitempty"`
	Op            string    `json:"op"`
	ConnID        string    `json:"conn_id"`
	StatementHash string    `json:"statement_hash"`
	DurationMs    int64     `json:"duration_ms"`
	Rows          int       `json:"rows,omitempty"`
	Pages         int       `json:"pages,omitempty"`
	Committed     bool      `json:"committed"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
}

// AuditLog appends QueryLog entries as JSON lines.
type AuditLog struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewAuditLog writes entries to w.
func NewAuditLog(w io.Writer) *AuditLog {
	return &AuditLog{w: w}
}

// OpenAuditLog appends to the file at path, creating it if needed.
func OpenAuditLog(path string) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &AuditLog{w: f, c: f}, nil
}

// Log writes entry, stamping its timestamp when unset.
func (a *AuditLog) Log(entry *QueryLog) error {
	if a == nil {
		return nil
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.w.Write(append(data, '\n'))
	return err
}

// Close closes the underlying file, if any.
func (a *AuditLog) Close() error {
	if a == nil || a.c == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.c.Close()
	a.c = nil
	return err
}
