// Package postgres provides a PostgreSQL-backed implementation of the storage.Store interface.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mmynk/billtx/internal/models"
	"github.com/mmynk/billtx/internal/storage"
	"github.com/mmynk/billtx/internal/txn"
)

var _ storage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    document TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bills (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    value NUMERIC NOT NULL,
    date DATE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_document ON users(document);
CREATE INDEX IF NOT EXISTS idx_bills_user_id ON bills(user_id);
`

// Store implements storage.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Begin starts a transaction on a pooled connection.
func (s *Store) Begin(ctx context.Context, readOnly bool) (txn.Tx, error) {
	opts := pgx.TxOptions{}
	if readOnly {
		opts.AccessMode = pgx.ReadOnly
	}
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx, store: s}, nil
}

type pgTx struct {
	tx    pgx.Tx
	store *Store
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) conn(ctx context.Context) (querier, error) {
	b, ok := txn.From(ctx)
	if !ok || b.State() != txn.StateOpen {
		return s.pool, nil
	}
	t, ok := b.Tx().(*pgTx)
	if !ok || t.store != s {
		return nil, storage.ErrForeignBoundary
	}
	return t.tx, nil
}

func (s *Store) writer(ctx context.Context) (querier, error) {
	if err := txn.Writable(ctx); err != nil {
		return nil, err
	}
	return s.conn(ctx)
}

// FindUser retrieves a user by ID, including its bills.
func (s *Store) FindUser(ctx context.Context, id int64) (*models.User, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{}
	err = q.QueryRow(ctx, `SELECT id, name, document FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &user.Document)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	bills, err := queryBills(ctx, q,
		`SELECT id, user_id, type, value::text, date FROM bills WHERE user_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	for _, b := range bills {
		user.Bills = append(user.Bills, *b)
	}
	return user, nil
}

// FindAllUsers retrieves every user with its bills.
func (s *Store) FindAllUsers(ctx context.Context) ([]*models.User, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT id, name, document FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.User, error) {
		user := &models.User{}
		err := row.Scan(&user.ID, &user.Name, &user.Document)
		return user, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}

	byID := make(map[int64]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	bills, err := queryBills(ctx, q, `SELECT id, user_id, type, value::text, date FROM bills ORDER BY id`)
	if err != nil {
		return nil, err
	}
	for _, b := range bills {
		if u, ok := byID[b.UserID]; ok {
			u.Bills = append(u.Bills, *b)
		}
	}
	return users, nil
}

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	q, err := s.writer(ctx)
	if err != nil {
		return err
	}

	if user.ID == 0 {
		err := q.QueryRow(ctx,
			`INSERT INTO users (name, document) VALUES ($1, $2) RETURNING id`,
			user.Name, user.Document,
		).Scan(&user.ID)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	}

	tag, err := q.Exec(ctx,
		`UPDATE users SET name = $1, document = $2 WHERE id = $3`,
		user.Name, user.Document, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", user.ID, storage.ErrNotFound)
	}
	return nil
}

// FindBill retrieves a bill by ID.
func (s *Store) FindBill(ctx context.Context, id int64) (*models.Bill, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	bills, err := queryBills(ctx, q,
		`SELECT id, user_id, type, value::text, date FROM bills WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, fmt.Errorf("bill %d: %w", id, storage.ErrNotFound)
	}
	return bills[0], nil
}

// FindAllBills retrieves every bill.
func (s *Store) FindAllBills(ctx context.Context) ([]*models.Bill, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return queryBills(ctx, q, `SELECT id, user_id, type, value::text, date FROM bills ORDER BY id`)
}

// SaveBill inserts or updates a bill.
func (s *Store) SaveBill(ctx context.Context, bill *models.Bill) error {
	q, err := s.writer(ctx)
	if err != nil {
		return err
	}

	date := models.Day(bill.Date)

	if bill.ID == 0 {
		err := q.QueryRow(ctx,
			`INSERT INTO bills (user_id, type, value, date) VALUES ($1, $2, $3::numeric, $4) RETURNING id`,
			bill.UserID, string(bill.Type), bill.Value.String(), date,
		).Scan(&bill.ID)
		if err != nil {
			return fmt.Errorf("failed to insert bill: %w", err)
		}
		return nil
	}

	tag, err := q.Exec(ctx,
		`UPDATE bills SET user_id = $1, type = $2, value = $3::numeric, date = $4 WHERE id = $5`,
		bill.UserID, string(bill.Type), bill.Value.String(), date, bill.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bill %d: %w", bill.ID, storage.ErrNotFound)
	}
	return nil
}

func queryBills(ctx context.Context, q querier, sql string, args ...any) ([]*models.Bill, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bills: %w", err)
	}
	bills, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Bill, error) {
		var (
			bill  models.Bill
			typ   string
			value string
		)
		if err := row.Scan(&bill.ID, &bill.UserID, &typ, &value, &bill.Date); err != nil {
			return nil, err
		}
		bill.Type = models.BillType(typ)
		v, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("bill %d has invalid value %q: %w", bill.ID, value, err)
		}
		bill.Value = v
		bill.Date = models.Day(bill.Date)
		return &bill, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan bills: %w", err)
	}
	return bills, nil
}
