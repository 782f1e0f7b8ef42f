package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hyakumasu/pokedrill/internal/models"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

// FileStore keeps the snapshot in a JSON file. Writes go to a temp file
// that is renamed over the target.
type FileStore struct {
	mu        sync.Mutex
	path      string
	evictPath string // removed when the disk is full; may be empty
	logger    *logger.Logger
}

// NewFileStore creates a file store. The parent directory is created if needed.
func NewFileStore(path, evictPath string, log *logger.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FileStore{path: path, evictPath: evictPath, logger: log}, nil
}

// Load reads the snapshot file; a missing file yields defaults
func (f *FileStore) Load(ctx context.Context) (models.ProgressionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.NewProgressionSnapshot(), nil
		}
		return models.ProgressionSnapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// Save writes the snapshot, freeing the eviction file once if the disk is full
func (f *FileStore) Save(ctx context.Context, snapshot models.ProgressionSnapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return saveWithEviction(ctx, f.logger, "file",
		func(context.Context) error { return f.write(data) },
		isDiskFull,
		f.evict,
	)
}

func (f *FileStore) write(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(name, f.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

func (f *FileStore) evict(context.Context) error {
	if f.evictPath == "" {
		return nil
	}
	if err := os.Remove(f.evictPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func isDiskFull(err error) bool {
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) || err == ErrQuotaExceeded
}
