package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger appends audit events as newline-delimited JSON to a log file,
// rotating when the file exceeds MaxSize.
type FileLogger struct {
	basePath string
	maxSize  int64

	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// FileLoggerConfig configures the file logger.
type FileLoggerConfig struct {
	BasePath string
	MaxSize  int64
}

// DefaultFileLoggerConfig returns the default configuration.
func DefaultFileLoggerConfig() FileLoggerConfig {
	return FileLoggerConfig{
		BasePath: "/var/log/bazaar/audit",
		MaxSize:  100 * 1024 * 1024,
	}
}

// NewFileLogger creates a file-based audit logger.
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 100 * 1024 * 1024
	}

	l := &FileLogger{basePath: config.BasePath, maxSize: config.MaxSize}
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) currentPath() string {
	return filepath.Join(l.basePath, "audit.log")
}

func (l *FileLogger) openLogFile() error {
	file, err := os.OpenFile(l.currentPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

// Log appends the event to the current log file.
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if info, err := l.file.Stat(); err == nil && info.Size() >= l.maxSize {
		if err := l.rotate(); err != nil {
			return err
		}
	}
	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// rotate renames the current file with a timestamp suffix and reopens.
// Rotated files are never deleted; the trail is append-only.
func (l *FileLogger) rotate() error {
	l.file.Close()
	rotated := filepath.Join(l.basePath, fmt.Sprintf("audit-%s.log", time.Now().Format("2006-01-02-15-04-05")))
	if err := os.Rename(l.currentPath(), rotated); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	return l.openLogFile()
}

// Close flushes and closes the log file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
