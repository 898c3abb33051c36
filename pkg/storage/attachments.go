package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxCollisionRetries = 100

// AttachmentStore saves uploaded files under {user_id}_{unix_ts}_{original_name} in one directory.
type AttachmentStore struct {
	dir string
}

func NewAttachmentStore(dir string) (*AttachmentStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: attachment directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create attachment directory: %w", err)
	}
	return &AttachmentStore{dir: dir}, nil
}

func (s *AttachmentStore) Dir() string {
	return s.dir
}

// Save writes data to a new file and returns its path. Existing files are never overwritten.
func (s *AttachmentStore) Save(userID int64, at time.Time, originalName string, data []byte) (string, error) {
	name := sanitizeFileName(originalName)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxCollisionRetries; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(s.dir, fmt.Sprintf("%d_%d_%s", userID, at.Unix(), candidate))

		err := writeExclusive(path, data)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("storage: save attachment %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("storage: save attachment %s: too many name collisions", name)
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "attachment"
	}
	return name
}
