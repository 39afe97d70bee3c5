package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billtx/internal/models"
)

// Bill is the wire form of models.Bill.
type Bill struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Date   string `json:"date"`
}

// BillInput is the wire form of models.BillInput.
type BillInput struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Date  string `json:"date"`
}

// User is the wire form of models.User.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document"`
	Bills    []Bill `json:"bills"`
	Total    string `json:"total"`
}

type GetTotalAmountRequest struct{}

type GetTotalAmountResponse struct {
	Total string `json:"total"`
}

type GetUserRequest struct {
	UserID int64 `json:"user_id"`
}

type GetUserResponse struct {
	User User `json:"user"`
}

type ListUsersRequest struct{}

type ListUsersResponse struct {
	Users []User `json:"users"`
}

type AddBillRequest struct {
	UserID int64  `json:"user_id"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

type AddBillResponse struct {
	Bill Bill `json:"bill"`
}

type AddUsersRequest struct {
	Documents []string `json:"documents"`
}

type AddUsersResponse struct {
	Users []User `json:"users"`
}

type AddBillsRequest struct {
	UserID int64       `json:"user_id"`
	Bills  []BillInput `json:"bills"`
	// Mode is one of propagate, propagate_rollback_any, panic, catch, catch_remote.
	Mode string `json:"mode"`
}

type AddBillsResponse struct{}

type AddBillsThenFailRequest struct {
	UserID int64       `json:"user_id"`
	Bills  []BillInput `json:"bills"`
	// Mode is direct or managed.
	Mode string `json:"mode"`
}

type AddBillsThenFailResponse struct{}

type CreateBillRequest struct {
	UserID int64     `json:"user_id"`
	Bill   BillInput `json:"bill"`
}

type CreateBillResponse struct {
	Bill Bill `json:"bill"`
}

func toBill(b *models.Bill) Bill {
	return Bill{
		ID:     b.ID,
		UserID: b.UserID,
		Type:   string(b.Type),
		Value:  b.Value.StringFixed(2),
		Date:   b.Date.Format(models.DateLayout),
	}
}

func toUser(u *models.User) User {
	bills := make([]Bill, len(u.Bills))
	for i := range u.Bills {
		bills[i] = toBill(&u.Bills[i])
	}
	return User{
		ID:       u.ID,
		Name:     u.Name,
		Document: u.Document,
		Bills:    bills,
		Total:    u.Total().StringFixed(2),
	}
}

func toUsers(users []*models.User) []User {
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = toUser(u)
	}
	return out
}

func parseValue(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return v, nil
}

// fromBillInput parses in. Rule checks are left to the validator.
func fromBillInput(in BillInput) (models.BillInput, error) {
	value, err := parseValue(in.Value)
	if err != nil {
		return models.BillInput{}, err
	}
	typ, err := models.ParseBillType(in.Type)
	if err != nil {
		return models.BillInput{}, err
	}
	date, err := models.ParseDate(in.Date)
	if err != nil {
		return models.BillInput{}, err
	}
	return models.BillInput{Type: typ, Value: value, Date: date}, nil
}

func fromBillInputs(ins []BillInput) ([]models.BillInput, error) {
	out := make([]models.BillInput, len(ins))
	for i, in := range ins {
		b, err := fromBillInput(in)
		if err != nil {
			return nil, fmt.Errorf("bill %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}
