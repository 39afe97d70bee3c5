package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and wire format of bill dates.
const DateLayout = "2006-01-02"

// BillType is the category of a bill.
type BillType string

const (
	BillTypeFood      BillType = "FOOD"
	BillTypeRent      BillType = "RENT"
	BillTypeTransport BillType = "TRANSPORT"
	BillTypeHealth    BillType = "HEALTH"
	BillTypeEducation BillType = "EDUCATION"
	BillTypeLeisure   BillType = "LEISURE"
	BillTypeOther     BillType = "OTHER"
)

var billTypes = []BillType{
	BillTypeFood,
	BillTypeRent,
	BillTypeTransport,
	BillTypeHealth,
	BillTypeEducation,
	BillTypeLeisure,
	BillTypeOther,
}

// BillTypes returns every known bill type.
func BillTypes() []BillType {
	return append([]BillType(nil), billTypes...)
}

// ParseBillType converts a case-insensitive name into a BillType.
func ParseBillType(s string) (BillType, error) {
	want := BillType(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range billTypes {
		if t == want {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown bill type: %q", s)
}

// Valid reports whether t is a known bill type.
func (t BillType) Valid() bool {
	_, err := ParseBillType(string(t))
	return err == nil
}

// Bill represents a single charge owned by a user.
// Bills are immutable once saved.
type Bill struct {
	// ID is assigned by the store on first save.
	ID int64

	// Type is the bill category.
	Type BillType

	// Value is the bill amount.
	Value decimal.Decimal

	// Date is the calendar date of the bill (midnight UTC).
	Date time.Time

	// UserID references the owning user.
	UserID int64
}

// BillInput is the caller-supplied shape of a bill before it is attached to a user.
// Only the date is validated; type and value are taken as given.
type BillInput struct {
	Type  BillType
	Value decimal.Decimal
	Date  time.Time `validate:"notfuture"`
}

// NewBill builds a Bill for the given user from in.
func NewBill(in BillInput, userID int64) *Bill {
	return &Bill{
		Type:   in.Type,
		Value:  in.Value,
		Date:   Day(in.Date),
		UserID: userID,
	}
}

// Day truncates t to its calendar date at midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
