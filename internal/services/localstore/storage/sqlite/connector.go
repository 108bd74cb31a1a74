package sqlite

import (
	"context"
	"sync"

	apperrors "github.com/ecomarket/localstore/internal/platform/errors"
)

// Connector owns the single store handle of a process. The composition root
// creates it and passes it to whatever needs the store.
//
// The first Acquire opens and migrates the store; later calls return the
// same handle. Concurrent first callers wait for migrations to finish. A
// failed open is remembered and returned on every later call: the store is
// never retried within the process.
type Connector struct {
	path string
	opts []Option

	mu     sync.Mutex
	store  *Store
	err    error
	closed bool
}

// NewConnector creates a connector for the store at path.
func NewConnector(path string, opts ...Option) *Connector {
	return &Connector{path: path, opts: opts}
}

// Acquire returns the migrated store, opening it on first use.
func (c *Connector) Acquire(ctx context.Context) (*Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, apperrors.New(apperrors.CodeStoreClosed, "store connector is closed")
	}
	if c.store != nil {
		return c.store, nil
	}
	if c.err != nil {
		return nil, c.err
	}

	store, err := Open(ctx, c.path, c.opts...)
	if err != nil {
		c.err = err
		return nil, err
	}
	c.store = store
	return store, nil
}

// Close releases the store handle. Acquire fails after Close.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
