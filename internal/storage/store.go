// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/billtx/internal/models"
	"github.com/mmynk/billtx/internal/txn"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrForeignBoundary is returned when a context carries a boundary opened by
// a different store.
var ErrForeignBoundary = errors.New("transaction belongs to a different store")

// Store defines the persistence operations over users and bills.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
//
// Every method runs inside the txn.Boundary carried by ctx, or in autocommit
// mode when ctx has none. Writes fail with txn.ErrReadOnly inside a read-only
// boundary.
type Store interface {
	txn.Beginner

	// FindUser retrieves a user with its bills ordered by ID.
	// Returns ErrNotFound if the user does not exist.
	FindUser(ctx context.Context, id int64) (*models.User, error)

	// FindAllUsers retrieves every user with its bills, ordered by ID.
	FindAllUsers(ctx context.Context) ([]*models.User, error)

	// SaveUser inserts the user when its ID is zero and updates it otherwise.
	// The user's bills are not written.
	SaveUser(ctx context.Context, user *models.User) error

	// FindBill retrieves a bill by ID.
	// Returns ErrNotFound if the bill does not exist.
	FindBill(ctx context.Context, id int64) (*models.Bill, error)

	// FindAllBills retrieves every bill ordered by ID.
	FindAllBills(ctx context.Context) ([]*models.Bill, error)

	// SaveBill inserts the bill when its ID is zero and updates it otherwise.
	// The owning user must exist.
	SaveBill(ctx context.Context, bill *models.Bill) error

	// Close releases any resources held by the store.
	Close() error
}
