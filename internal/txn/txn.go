// Package txn implements explicit transaction boundaries.
//
// A boundary is opened with Manager.Run and travels in the context handed to
// the callback. Stores look the boundary up with From and run their statements
// on its Tx; without a boundary they run in autocommit mode.
//
// Propagation decides what happens when Run is called while a boundary is
// already open in ctx:
//
//   - Required joins the open boundary. The owner decides commit or rollback.
//   - RequiresNew suspends the open boundary and opens a fresh one, which
//     commits or rolls back on its own.
//
// Work only gets a boundary when it goes through a Manager. Calling a plain
// function with the caller's context always runs it inside the caller's
// boundary, whatever that function would have asked for.
package txn

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrReadOnly is returned when a write is attempted inside a read-only boundary.
var ErrReadOnly = errors.New("write attempted in read-only transaction")

// Propagation controls how Run treats a boundary that is already open.
type Propagation int

const (
	// Required joins the caller's boundary or opens one if there is none.
	Required Propagation = iota
	// RequiresNew always opens an independent boundary.
	RequiresNew
)

func (p Propagation) String() string {
	switch p {
	case Required:
		return "REQUIRED"
	case RequiresNew:
		return "REQUIRES_NEW"
	default:
		return fmt.Sprintf("Propagation(%d)", int(p))
	}
}

// State is the lifecycle position of a boundary.
type State int

const (
	StateNone State = iota
	StateOpen
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateOpen:
		return "OPEN"
	case StateCommitted:
		return "COMMITTED"
	case StateRolledBack:
		return "ROLLED_BACK"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tx is a backend transaction.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner opens backend transactions.
type Beginner interface {
	Begin(ctx context.Context, readOnly bool) (Tx, error)
}

// RollbackRule reports whether err must roll the boundary back.
// It is only consulted for non-nil errors.
type RollbackRule func(err error) bool

// RollbackOnError rolls back on every error. It is the default rule.
func RollbackOnError(err error) bool {
	return err != nil
}

// RollbackOnAny is RollbackOnError spelled out for boundaries that want to
// state it explicitly.
func RollbackOnAny(err error) bool {
	return err != nil
}

// NoRollbackFor rolls back on every error except those matching one of
// targets with errors.Is. Matching errors commit the boundary and are still
// returned to the caller.
func NoRollbackFor(targets ...error) RollbackRule {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return false
			}
		}
		return err != nil
	}
}

// Options configures a boundary.
type Options struct {
	// Name labels the boundary in logs and metrics.
	Name string

	Propagation Propagation

	// ReadOnly rejects writes with ErrReadOnly.
	ReadOnly bool

	// Rollback defaults to RollbackOnError.
	Rollback RollbackRule
}

// Boundary is an open or finished unit of work.
type Boundary struct {
	ID          uuid.UUID
	Name        string
	Propagation Propagation
	ReadOnly    bool

	tx        Tx
	state     State
	suspended *Boundary
}

// Tx returns the backend transaction of the boundary.
func (b *Boundary) Tx() Tx {
	return b.tx
}

// State returns the current lifecycle state.
func (b *Boundary) State() State {
	return b.state
}

// Suspended returns the caller boundary that was set aside when b was opened
// with RequiresNew, or nil.
func (b *Boundary) Suspended() *Boundary {
	return b.suspended
}

type boundaryKey struct{}

// From returns the boundary carried by ctx, if any.
func From(ctx context.Context) (*Boundary, bool) {
	b, ok := ctx.Value(boundaryKey{}).(*Boundary)
	return b, ok && b != nil
}

// Writable returns ErrReadOnly when ctx carries a read-only boundary.
func Writable(ctx context.Context) error {
	if b, ok := From(ctx); ok && b.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

func withBoundary(ctx context.Context, b *Boundary) context.Context {
	return context.WithValue(ctx, boundaryKey{}, b)
}
