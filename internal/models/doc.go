// Package models defines the domain records handled by billtx.
//
// # Records
//
//   - User: a person identified by a business document, owning an ordered list of bills
//   - Bill: a dated, typed amount that belongs to exactly one user
//   - BillInput: caller-supplied bill data before it becomes a Bill
//
// # Relationships
//
// Bills point back at their owner through UserID. A User carries its bills by
// value, loaded in ID order; the store never writes a user's bill list back,
// bills are only ever inserted one at a time.
//
// # Dates
//
// Bill dates are calendar dates. They are normalized to midnight UTC with
// Day and stored as YYYY-MM-DD text.
package models
