// Package installment splits an amount into dated installments.
// The split is exact: cent truncation puts the rounding remainder on the
// first installment, so the sum always equals the original total.
package installment

import (
	"time"

	"github.com/shopspring/decimal"

	"varejo/internal/core/apperror"
	"varejo/internal/core/types"
)

// ScheduleMode controls how due dates advance between installments.
type ScheduleMode int

const (
	// ModeDayInterval advances due dates by a fixed number of days.
	ModeDayInterval ScheduleMode = iota
	// ModeMonthlySameDay advances due dates by calendar months, keeping the
	// anchor's day of month where the month allows it.
	ModeMonthlySameDay
)

// Installment is one scheduled slice of the total.
type Installment struct {
	Number  int         `json:"number"`
	DueDate time.Time   `json:"dueDate"`
	Amount  types.Money `json:"amount"`
}

// Plan describes a split request.
type Plan struct {
	Total        types.Money
	Count        int
	IntervalDays int
	Anchor       time.Time
	Mode         ScheduleMode
}

// Generate splits plan.Total into plan.Count installments.
//
// Amounts: base = Total truncated to cents after dividing by Count; the
// truncation remainder is added to installment 1, so amounts always sum to
// exactly Total. Due dates: anchor advanced by IntervalDays*number in day
// mode, or by number calendar months in monthly mode.
func Generate(plan Plan) ([]Installment, error) {
	if plan.Count < 1 {
		return nil, apperror.NewValidation("installment count must be at least 1")
	}
	if plan.Total.IsNegative() {
		return nil, apperror.NewValidation("installment total must not be negative")
	}
	if plan.Mode == ModeDayInterval && plan.IntervalDays < 1 {
		return nil, apperror.NewValidation("installment interval must be at least 1 day")
	}

	count := decimal.NewFromInt(int64(plan.Count))
	base := types.Cents(plan.Total.Div(count))
	remainder := plan.Total.Sub(base.Mul(count))

	out := make([]Installment, 0, plan.Count)
	for n := 1; n <= plan.Count; n++ {
		amount := base
		if n == 1 {
			amount = base.Add(remainder)
		}
		out = append(out, Installment{
			Number:  n,
			DueDate: dueDate(plan, n),
			Amount:  amount,
		})
	}
	return out, nil
}

func dueDate(plan Plan, number int) time.Time {
	if plan.Mode == ModeMonthlySameDay {
		return plan.Anchor.AddDate(0, number, 0)
	}
	return plan.Anchor.AddDate(0, 0, plan.IntervalDays*number)
}
