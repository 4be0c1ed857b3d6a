package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	Action    string                 `json:"action"`
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	Outcome   string                 `json:"outcome"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// Options control log rotation.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger appends JSONL audit entries to a rotating file.
type Logger struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// NewLogger creates an audit logger writing to <logDir>/radio-audit.jsonl.
func NewLogger(logDir string, opts Options) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	return &Logger{
		out: &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "radio-audit.jsonl"),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		},
	}, nil
}

// LogAction records a state machine action. Satisfies the radio
// package's AuditLogger interface.
func (l *Logger) LogAction(action, from, to, outcome string) {
	l.write(Entry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		From:      from,
		To:        to,
		Outcome:   outcome,
	})
}

// LogParams records an action with structured parameters.
func (l *Logger) LogParams(action, outcome string, params map[string]interface{}) {
	l.write(Entry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Outcome:   outcome,
		Params:    params,
	})
}

func (l *Logger) write(e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: marshal entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.out.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "audit: write entry: %v\n", err)
	}
}

// Rotate forces a rotation of the current log file.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Rotate()
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
