package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Observer is notified when an owned boundary finishes.
type Observer interface {
	BoundaryFinished(b *Boundary, elapsed time.Duration)
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver registers an observer for finished boundaries.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// Manager opens, joins and finishes boundaries on top of a Beginner.
type Manager struct {
	beginner Beginner
	logger   *slog.Logger
	observer Observer
}

// NewManager creates a Manager that opens transactions with beginner.
func NewManager(beginner Beginner, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{beginner: beginner, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes fn inside a boundary chosen by opts.Propagation.
//
// When Run owns the boundary, every exit finishes it: a nil return commits,
// an error matching opts.Rollback rolls back, any other error commits, and a
// panic rolls back before it is re-raised. The error from fn is returned
// unchanged, joined with a commit or rollback failure if one happened.
//
// When Run joins a caller boundary, fn runs in it and its result is returned
// as is; the owner finishes the boundary.
func (m *Manager) Run(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	if fn == nil {
		panic("txn: nil function")
	}
	rule := opts.Rollback
	if rule == nil {
		rule = RollbackOnError
	}

	current, hasCurrent := From(ctx)
	if hasCurrent && current.state != StateOpen {
		hasCurrent = false
	}

	if opts.Propagation == Required && hasCurrent {
		m.logger.Debug("Joining transaction",
			"name", opts.Name,
			"tx_id", current.ID,
			"owner", current.Name,
		)
		return fn(ctx)
	}

	tx, err := m.beginner.Begin(ctx, opts.ReadOnly)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	b := &Boundary{
		ID:          uuid.New(),
		Name:        opts.Name,
		Propagation: opts.Propagation,
		ReadOnly:    opts.ReadOnly,
		tx:          tx,
		state:       StateOpen,
	}
	if hasCurrent {
		b.suspended = current
	}
	m.logger.Debug("Transaction opened",
		"name", b.Name,
		"tx_id", b.ID,
		"propagation", b.Propagation,
		"read_only", b.ReadOnly,
		"suspended", suspendedID(b),
	)

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			if rerr := m.rollback(ctx, b, start); rerr != nil {
				m.logger.Error("Rollback after panic failed", "tx_id", b.ID, "error", rerr)
			}
			panic(p)
		}
	}()

	if ferr := fn(withBoundary(ctx, b)); ferr != nil {
		if rule(ferr) {
			if rerr := m.rollback(ctx, b, start); rerr != nil {
				return errors.Join(ferr, rerr)
			}
			return ferr
		}
		if cerr := m.commit(ctx, b, start); cerr != nil {
			return errors.Join(ferr, cerr)
		}
		return ferr
	}

	return m.commit(ctx, b, start)
}

func (m *Manager) commit(ctx context.Context, b *Boundary, start time.Time) error {
	if err := b.tx.Commit(ctx); err != nil {
		b.state = StateRolledBack
		m.finish(b, start)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	b.state = StateCommitted
	m.finish(b, start)
	return nil
}

func (m *Manager) rollback(ctx context.Context, b *Boundary, start time.Time) error {
	// Rollback must still run when the caller's context is already done.
	err := b.tx.Rollback(context.WithoutCancel(ctx))
	b.state = StateRolledBack
	m.finish(b, start)
	if err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

func (m *Manager) finish(b *Boundary, start time.Time) {
	elapsed := time.Since(start)
	m.logger.Debug("Transaction finished",
		"name", b.Name,
		"tx_id", b.ID,
		"state", b.state,
		"duration_ms", elapsed.Milliseconds(),
	)
	if m.observer != nil {
		m.observer.BoundaryFinished(b, elapsed)
	}
}

func suspendedID(b *Boundary) string {
	if b.suspended == nil {
		return ""
	}
	return b.suspended.ID.String()
}
