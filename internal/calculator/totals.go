package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/billtx/internal/models"
)

// TypeTotal is the sum of all bills of one type.
type TypeTotal struct {
	Type  models.BillType
	Count int
	Total decimal.Decimal
}

// TotalAmount sums the value of every bill owned by users.
func TotalAmount(users []*models.User) decimal.Decimal {
	total := decimal.Zero
	for _, u := range users {
		if u == nil {
			continue
		}
		total = total.Add(u.Total())
	}
	return total
}

// TotalsByType groups the bills of users by type.
// Types without bills are omitted; the result is ordered by type name.
func TotalsByType(users []*models.User) []TypeTotal {
	byType := make(map[models.BillType]*TypeTotal)
	for _, u := range users {
		if u == nil {
			continue
		}
		for _, b := range u.Bills {
			tt, ok := byType[b.Type]
			if !ok {
				tt = &TypeTotal{Type: b.Type, Total: decimal.Zero}
				byType[b.Type] = tt
			}
			tt.Count++
			tt.Total = tt.Total.Add(b.Value)
		}
	}

	totals := make([]TypeTotal, 0, len(byType))
	for _, tt := range byType {
		totals = append(totals, *tt)
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Type < totals[j].Type
	})
	return totals
}
