package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/billtx/internal/models"
	"github.com/mmynk/billtx/internal/storage"
)

// FindUser retrieves a user by ID, including its bills.
func (s *SQLiteStore) FindUser(ctx context.Context, id int64) (*models.User, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{}
	err = q.QueryRowContext(ctx,
		"SELECT id, name, document FROM users WHERE id = ?",
		id,
	).Scan(&user.ID, &user.Name, &user.Document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	bills, err := queryBills(ctx, q,
		"SELECT id, user_id, type, value, date FROM bills WHERE user_id = ? ORDER BY id",
		id,
	)
	if err != nil {
		return nil, err
	}
	for _, b := range bills {
		user.Bills = append(user.Bills, *b)
	}

	return user, nil
}

// FindAllUsers retrieves every user with its bills.
func (s *SQLiteStore) FindAllUsers(ctx context.Context) ([]*models.User, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, "SELECT id, name, document FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	byID := make(map[int64]*models.User)
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Name, &user.Document); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
		byID[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	rows.Close()

	bills, err := queryBills(ctx, q, "SELECT id, user_id, type, value, date FROM bills ORDER BY id")
	if err != nil {
		return nil, err
	}
	for _, b := range bills {
		if user, ok := byID[b.UserID]; ok {
			user.Bills = append(user.Bills, *b)
		}
	}

	return users, nil
}

// SaveUser inserts or updates a user. Bills are not touched.
func (s *SQLiteStore) SaveUser(ctx context.Context, user *models.User) error {
	q, err := s.writer(ctx)
	if err != nil {
		return err
	}

	if user.ID == 0 {
		res, err := q.ExecContext(ctx,
			"INSERT INTO users (name, document) VALUES (?, ?)",
			user.Name, user.Document,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read user id: %w", err)
		}
		user.ID = id
		return nil
	}

	res, err := q.ExecContext(ctx,
		"UPDATE users SET name = ?, document = ? WHERE id = ?",
		user.Name, user.Document, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireOneRow(res, "user", user.ID)
}

func requireOneRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
