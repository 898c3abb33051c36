package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/dkalashnik/telegram-session-log/pkg/record"
)

// ErrPersistence marks a commit that could not replace the store file. Previously committed
// records are still on disk when it is returned.
var ErrPersistence = errors.New("storage: persistence failure")

// RecordStore holds the ordered list of completed interviews.
type RecordStore interface {
	Load(ctx context.Context) ([]record.InterviewRecord, error)
	AppendAndCommit(ctx context.Context, rec *record.InterviewRecord) error
}

// FileStore keeps every record in a single pretty-printed JSON array. Writers are serialized by mu
// for the whole read-modify-write cycle and the file is replaced with a rename of a fully written
// temporary file, so readers only ever see the previous or the new collection.
type FileStore struct {
	path string
	mu   sync.Mutex

	rename func(oldpath, newpath string) error
}

var _ RecordStore = (*FileStore)(nil)

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("storage: create store directory: %w", err)
	}
	return &FileStore{path: path, rename: os.Rename}, nil
}

// Path returns the canonical store file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) tempPath() string {
	return s.path + ".tmp"
}

// Exists reports whether anything has been committed yet.
func (s *FileStore) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.path)
	return err == nil
}

// Load returns every committed record, or an empty slice when the store file does not exist.
func (s *FileStore) Load(ctx context.Context) ([]record.InterviewRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// AppendAndCommit appends one record and atomically replaces the store file.
func (s *FileStore) AppendAndCommit(ctx context.Context, rec *record.InterviewRecord) error {
	if rec == nil {
		return fmt.Errorf("storage: record is nil")
	}
	return s.AppendAll(ctx, *rec)
}

// AppendAll appends records in order within a single commit. Entries already on disk are carried
// over as their raw JSON; only recs are encoded.
func (s *FileStore) AppendAll(ctx context.Context, recs ...record.InterviewRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadRaw()
	if err != nil {
		return fmt.Errorf("%w: reading current collection: %w", ErrPersistence, err)
	}
	next := make([]json.RawMessage, 0, len(current)+len(recs))
	next = append(next, current...)
	for i := range recs {
		data, err := json.Marshal(recs[i])
		if err != nil {
			return fmt.Errorf("%w: encode record for user %d: %w", ErrPersistence, recs[i].UserID, err)
		}
		next = append(next, data)
	}
	if err := s.commit(next); err != nil {
		return err
	}
	log.Printf("[storage] Committed %d record(s) to %s (total %d)", len(recs), s.path, len(next))
	return nil
}

func (s *FileStore) load() ([]record.InterviewRecord, error) {
	raw, err := s.loadRaw()
	if err != nil {
		return nil, err
	}
	recs := make([]record.InterviewRecord, len(raw))
	for i, entry := range raw {
		if err := json.Unmarshal(entry, &recs[i]); err != nil {
			return nil, fmt.Errorf("storage: decode %s entry %d: %w", s.path, i, err)
		}
	}
	return recs, nil
}

// loadRaw returns the committed entries undecoded, in file order.
func (s *FileStore) loadRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", s.path, err)
	}
	return raw, nil
}

// commit must be called with mu held.
func (s *FileStore) commit(entries []json.RawMessage) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode records: %w", ErrPersistence, err)
	}
	data = append(data, '\n')

	tmp := s.tempPath()
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, tmp, err)
	}

	if err := s.rename(tmp, s.path); err != nil {
		// The temp file holds the full new collection; keep it for manual recovery.
		log.Printf("[storage] Rename %s -> %s failed, leaving temp file in place: %v", tmp, s.path, err)
		return fmt.Errorf("%w: replace %s: %w", ErrPersistence, s.path, err)
	}

	syncDir(filepath.Dir(s.path))
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes the directory entry after a rename. Failures are logged only; some filesystems
// do not support fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		log.Printf("[storage] fsync of %s skipped: %v", dir, err)
	}
}
