package security

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// OpenAuditLog opens the append-only audit log at path, creating parent
// directories as needed. A positive maxSizeMB rotates the log at that
// size, keeping one previous generation; 0 keeps a single ever-growing
// file. The returned writer is safe for use as an AuditLogger Writer
// and must be closed on shutdown.
func OpenAuditLog(path string, maxSizeMB int) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	if maxSizeMB > 0 {
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: 1,
		}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return f, nil
}
