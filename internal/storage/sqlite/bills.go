package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billtx/internal/models"
	"github.com/mmynk/billtx/internal/storage"
)

// FindBill retrieves a bill by ID.
func (s *SQLiteStore) FindBill(ctx context.Context, id int64) (*models.Bill, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	bills, err := queryBills(ctx, q,
		"SELECT id, user_id, type, value, date FROM bills WHERE id = ?",
		id,
	)
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, fmt.Errorf("bill %d: %w", id, storage.ErrNotFound)
	}
	return bills[0], nil
}

// FindAllBills retrieves every bill.
func (s *SQLiteStore) FindAllBills(ctx context.Context) ([]*models.Bill, error) {
	q, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return queryBills(ctx, q, "SELECT id, user_id, type, value, date FROM bills ORDER BY id")
}

// SaveBill inserts or updates a bill.
func (s *SQLiteStore) SaveBill(ctx context.Context, bill *models.Bill) error {
	q, err := s.writer(ctx)
	if err != nil {
		return err
	}

	date := models.Day(bill.Date).Format(models.DateLayout)

	if bill.ID == 0 {
		res, err := q.ExecContext(ctx,
			"INSERT INTO bills (user_id, type, value, date) VALUES (?, ?, ?, ?)",
			bill.UserID, string(bill.Type), bill.Value.String(), date,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bill: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read bill id: %w", err)
		}
		bill.ID = id
		return nil
	}

	res, err := q.ExecContext(ctx,
		"UPDATE bills SET user_id = ?, type = ?, value = ?, date = ? WHERE id = ?",
		bill.UserID, string(bill.Type), bill.Value.String(), date, bill.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update bill: %w", err)
	}
	return requireOneRow(res, "bill", bill.ID)
}

func queryBills(ctx context.Context, q querier, query string, args ...any) ([]*models.Bill, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bills: %w", err)
	}
	defer rows.Close()

	var bills []*models.Bill
	for rows.Next() {
		var (
			bill  models.Bill
			typ   string
			value string
			date  string
		)
		if err := rows.Scan(&bill.ID, &bill.UserID, &typ, &value, &date); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bill.Type = models.BillType(typ)
		if bill.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("bill %d has invalid value %q: %w", bill.ID, value, err)
		}
		if bill.Date, err = models.ParseDate(date); err != nil {
			return nil, fmt.Errorf("bill %d: %w", bill.ID, err)
		}
		bills = append(bills, &bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}

	return bills, nil
}
