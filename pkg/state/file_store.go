package state

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/goliatone/go-settings/config"
)

const (
	documentExt = ".xml"
	metaExt     = ".meta.json"
	lockExt     = ".lock"
)

// FileStore persists documents as XML files below a root directory, one file
// per Ref. Saves hold an exclusive file lock, write a temp file and rename it
// over the target, so readers never observe a partial document.
type FileStore struct {
	root       string
	clock      func() time.Time
	retryDelay time.Duration
	debounce   time.Duration
	perm       fs.FileMode
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithFileClock overrides the clock used for Meta.UpdatedAt.
func WithFileClock(clock func() time.Time) FileStoreOption {
	return func(s *FileStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLockRetry sets how often a blocked save retries the lock.
func WithLockRetry(delay time.Duration) FileStoreOption {
	return func(s *FileStore) {
		if delay > 0 {
			s.retryDelay = delay
		}
	}
}

// WithWatchDebounce sets how long Watch waits for writes to settle.
func WithWatchDebounce(delay time.Duration) FileStoreOption {
	return func(s *FileStore) {
		if delay > 0 {
			s.debounce = delay
		}
	}
}

// WithFileMode sets the permissions of written files.
func WithFileMode(perm fs.FileMode) FileStoreOption {
	return func(s *FileStore) {
		s.perm = perm
	}
}

// NewFileStore stores documents below root, creating it when needed.
func NewFileStore(root string, opts ...FileStoreOption) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("state: root directory is required")
	}
	s := &FileStore{root: root, clock: time.Now, retryDelay: 50 * time.Millisecond, debounce: 100 * time.Millisecond, perm: 0o644}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("state: create root: %w", err)
	}
	return s, nil
}

// Root returns the directory documents are stored under.
func (s *FileStore) Root() string { return s.root }

// Path returns the document path for ref.
func (s *FileStore) Path(ref Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(id)+documentExt), nil
}

// Load reads the document for ref. ok is false when no document exists.
func (s *FileStore) Load(ctx context.Context, ref Ref) (config.Document, Meta, bool, error) {
	if err := ctx.Err(); err != nil {
		return config.Document{}, Meta{}, false, err
	}
	path, err := s.Path(ref)
	if err != nil {
		return config.Document{}, Meta{}, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Document{}, Meta{}, false, nil
	}
	if err != nil {
		return config.Document{}, Meta{}, false, fmt.Errorf("state: read %s: %w", path, err)
	}
	doc, err := config.Decode(bytes.NewReader(data))
	if err != nil {
		return config.Document{}, Meta{}, false, fmt.Errorf("state: decode %s: %w", path, err)
	}
	meta, err := readMeta(path)
	if err != nil {
		return config.Document{}, Meta{}, false, err
	}
	meta.ETag = etag(data)
	return doc, meta, true, nil
}

// Save writes doc for ref. A non-empty meta.ETag must match the document
// currently on disk, which is checked while holding the lock.
func (s *FileStore) Save(ctx context.Context, ref Ref, doc config.Document, meta Meta) (Meta, error) {
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Meta{}, fmt.Errorf("state: create directory: %w", err)
	}

	lock := flock.New(path + lockExt)
	locked, err := lock.TryLockContext(ctx, s.retryDelay)
	if err != nil {
		return Meta{}, fmt.Errorf("state: lock %s: %w", path, err)
	}
	if !locked {
		return Meta{}, fmt.Errorf("state: lock %s: not acquired", path)
	}
	defer func() { _ = lock.Unlock() }()

	if meta.ETag != "" {
		current, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Meta{}, fmt.Errorf("state: read %s: %w", path, err)
		case etag(current) != meta.ETag:
			return Meta{}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, etag(current))
		}
	}

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		return Meta{}, fmt.Errorf("state: encode %s: %w", path, err)
	}
	data := buf.Bytes()

	saved := meta.clone()
	saved.SnapshotID = uuid.NewString()
	saved.UpdatedAt = s.clock().UTC()
	saved.ETag = ""
	metaData, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode meta: %w", err)
	}
	if err := s.writeAtomic(path, data); err != nil {
		return Meta{}, err
	}
	if err := s.writeAtomic(path+metaExt, metaData); err != nil {
		return Meta{}, err
	}
	saved.ETag = etag(data)
	return saved, nil
}

func (s *FileStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("state: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("state: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("state: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, s.perm); err != nil {
		cleanup()
		return fmt.Errorf("state: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("state: rename %s: %w", path, err)
	}
	return nil
}

func readMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path + metaExt)
	if errors.Is(err, fs.ErrNotExist) {
		return Meta{}, nil
	}
	if err != nil {
		return Meta{}, fmt.Errorf("state: read meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("state: decode meta: %w", err)
	}
	return meta, nil
}

func etag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
