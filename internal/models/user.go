package models

import "github.com/shopspring/decimal"

// TitlePrefix is prepended to a user's name when presenting it.
// It is never persisted.
const TitlePrefix = "Sr(a). "

// User represents a bill owner.
type User struct {
	// ID is assigned by the store on first save.
	ID int64

	// Name is the display name of the user.
	Name string

	// Document is the business identifier of the user (e.g., a tax number).
	Document string

	// Bills are the user's bills ordered by ID.
	Bills []Bill
}

// Total returns the sum of the user's bill values.
func (u *User) Total() decimal.Decimal {
	total := decimal.Zero
	for _, b := range u.Bills {
		total = total.Add(b.Value)
	}
	return total
}

// Titled returns a copy of u whose name carries TitlePrefix.
// The bill slice is copied so the result can be handed out freely.
func (u *User) Titled() *User {
	out := *u
	out.Name = TitlePrefix + u.Name
	out.Bills = append([]Bill(nil), u.Bills...)
	return &out
}
