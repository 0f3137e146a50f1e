// Package store is the tenant-scoped persistence layer. Every lookup of an
// organization-owned row filters by organization id, so a row that belongs to
// another tenant behaves exactly like a missing one.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type Store struct {
	db    *gorm.DB
	locks *orgLocks
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, locks: &orgLocks{}}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithOrgTx serializes writers of one organization and runs fn inside a
// database transaction. Only the Store passed to fn may be used inside it.
// Calls must not nest for the same organization.
func (s *Store) WithOrgTx(ctx context.Context, orgID uuid.UUID, fn func(tx *Store) error) error {
	mu := s.locks.get(orgID)
	mu.Lock()
	defer mu.Unlock()

	return s.Tx(ctx, fn)
}

// Tx runs fn in a transaction without taking an organization lock.
func (s *Store) Tx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, locks: s.locks})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

type orgLocks struct {
	m sync.Map // uuid.UUID -> *sync.Mutex
}

func (l *orgLocks) get(orgID uuid.UUID) *sync.Mutex {
	mu, _ := l.m.LoadOrStore(orgID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// requireAffected turns a zero-row update or delete into ErrNotFound.
func requireAffected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
