package mediastore

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"chatvault/internal/security"
)

// Store persists raw media bytes under content-addressed descriptors. The
// descriptor (queryId) is the sha256 of the content, so saving identical
// bytes twice yields the same descriptor and a single file on disk.
type Store interface {
	Save(data []byte) (queryID string, mimeType string, err error)
	Load(queryID string) ([]byte, error)
	Exists(queryID string) bool
	CleanupOldFiles(maxAge time.Duration) error
}

type store struct {
	dir          string
	maxSizeBytes int64
}

// New creates a content-addressed store rooted at dir. maxSizeMB bounds the
// size of a single object; zero disables the limit.
func New(dir string, maxSizeMB int) (Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create media store directory: %w", err)
	}
	return &store{
		dir:          dir,
		maxSizeBytes: int64(maxSizeMB) * 1024 * 1024,
	}, nil
}

func (s *store) Save(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("refusing to store empty media payload")
	}
	if s.maxSizeBytes > 0 && int64(len(data)) > s.maxSizeBytes {
		return "", "", fmt.Errorf("media too large: %d > %d bytes", len(data), s.maxSizeBytes)
	}

	mimeType := http.DetectContentType(data)
	queryID := fmt.Sprintf("%x", sha256.Sum256(data))
	path := filepath.Join(s.dir, queryID)

	// Content-addressed: an existing file already holds these exact bytes.
	if _, err := os.Stat(path); err == nil {
		return queryID, mimeType, nil
	}

	tmp, err := os.CreateTemp(s.dir, "incoming_*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("failed to write media bytes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("failed to finalize media file: %w", err)
	}

	return queryID, mimeType, nil
}

func (s *store) Load(queryID string) ([]byte, error) {
	if err := security.ValidateDescriptor(queryID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, queryID)) // #nosec G304 - descriptor validated above
	if err != nil {
		return nil, fmt.Errorf("failed to load media %s: %w", queryID, err)
	}
	return data, nil
}

func (s *store) Exists(queryID string) bool {
	if security.ValidateDescriptor(queryID) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, queryID))
	return err == nil
}

func (s *store) CleanupOldFiles(maxAge time.Duration) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read media store directory: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info: %w", err)
		}
		if now.Sub(info.ModTime()) > maxAge {
			if err := os.Remove(filepath.Join(s.dir, info.Name())); err != nil {
				return fmt.Errorf("failed to remove old file: %w", err)
			}
		}
	}
	return nil
}
