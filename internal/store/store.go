// Package store persists the lottery's candidate pool and winners history as
// opaque documents under string keys.
package store

import (
	"context"
	"errors"
	"fmt"
)

const (
	KeyUsers   = "users"
	KeyWinners = "winners"
)

const (
	TypeMemory   = "memory"
	TypeFile     = "file"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

var (
	ErrNotFound    = errors.New("store: key not found")
	ErrUnknownType = errors.New("store: unknown store type")
)

// Store is the persistence port used by the lottery service.
type Store interface {
	// Load returns ErrNotFound when key has never been saved or was deleted.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the backend named by typ. dsn is a directory for "file", a
// database path for "sqlite" and a connection URL for "postgres".
func Open(ctx context.Context, typ, dsn string) (Store, error) {
	switch typ {
	case TypeMemory:
		return NewMemoryStore(), nil
	case TypeFile:
		return NewFileStore(dsn)
	case TypeSQLite:
		return OpenSQL(ctx, SQLite, dsn)
	case TypePostgres:
		return OpenSQL(ctx, Postgres, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}
