package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/cache"
	"github.com/matzehuels/stratum/pkg/document"
	errs "github.com/matzehuels/stratum/pkg/errors"
	"github.com/matzehuels/stratum/pkg/observability"
)

const fileExt = ".stratum.json"

// FileStore keeps projects as JSON files in a directory.
type FileStore struct {
	mu     sync.RWMutex
	dir    string
	logger *log.Logger
}

// NewFileStore creates a store in dir. An empty dir defaults to
// ~/.local/share/stratum/projects.
func NewFileStore(dir string, logger *log.Logger) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".local", "share", "stratum", "projects")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create project dir: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// Load reads the project stored under name.
func (s *FileStore) Load(ctx context.Context, name string) (doc *document.Document, err error) {
	start := time.Now()
	defer func() { observability.Store().OnLoad(ctx, "file", time.Since(start), err) }()

	if err := errs.ValidateID(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	return document.Read(bytes.NewReader(data), s.logger)
}

// Save writes doc under name, replacing any previous version.
func (s *FileStore) Save(ctx context.Context, name string, doc *document.Document) (info Info, err error) {
	start := time.Now()
	defer func() { observability.Store().OnSave(ctx, "file", info.Size, time.Since(start), err) }()

	if err := errs.ValidateID(name); err != nil {
		return Info{}, err
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return Info{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return Info{}, fmt.Errorf("write project: %w", err)
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		return Info{}, fmt.Errorf("write project: %w", err)
	}
	return Info{Name: name, Hash: cache.Hash(data), Size: len(data), UpdatedAt: time.Now()}, nil
}

// Delete removes the project stored under name.
func (s *FileStore) Delete(_ context.Context, name string) error {
	if err := errs.ValidateID(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(name)
	}
	return err
}

// List returns every stored project sorted by name.
func (s *FileStore) List(context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read project dir: %w", err)
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Name:      strings.TrimSuffix(e.Name(), fileExt),
			Hash:      cache.Hash(data),
			Size:      len(data),
			UpdatedAt: fi.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Close does nothing.
func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
