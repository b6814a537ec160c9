// Package store persists project documents by name.
//
// Two backends are provided: [FileStore] keeps one JSON file per project
// under a directory and [MongoStore] keeps one MongoDB document per project.
// Both store the encoded [document.Document] verbatim and decode it with the
// lenient reader, so a stored project loads exactly like a file on disk.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/matzehuels/stratum/pkg/document"
	errs "github.com/matzehuels/stratum/pkg/errors"
)

// ErrNotFound is returned when no project is stored under a name.
var ErrNotFound = errors.New("project not found")

// Info describes a stored project.
type Info struct {
	Name      string    `json:"name"`
	Hash      string    `json:"hash"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store loads and saves project documents.
type Store interface {
	Load(ctx context.Context, name string) (*document.Document, error)
	Save(ctx context.Context, name string, doc *document.Document) (Info, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Info, error)
	Close() error
}

func notFound(name string) error {
	return errs.Wrap(errs.ErrCodeNotFound, ErrNotFound, "project %q", name)
}
