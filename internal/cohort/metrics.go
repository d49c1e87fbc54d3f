package cohort

import (
	"sort"
	"time"

	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/shopspring/decimal"
)

// ratioScale matches the NUMERIC scale of the cohorts table.
const ratioScale = 6

var thirty = decimal.NewFromInt(30)

// Member is one cohort customer with their orders in time order.
type Member struct {
	CustomerID   string
	FirstOrderAt time.Time
	Orders       []Order
}

// Order is the slice of a fact order the cohort math needs.
type Order struct {
	OrderedAt  time.Time
	RevenueNet decimal.Decimal
}

// counted returns the member's orders from the first-order time onward.
// The first of them is the acquisition order.
func (m Member) counted() []Order {
	i := sort.Search(len(m.Orders), func(i int) bool {
		return !m.Orders[i].OrderedAt.Before(m.FirstOrderAt)
	})
	return m.Orders[i:]
}

// within reports whether t falls inside the window opened by the first order.
func (m Member) within(t time.Time, window time.Duration) bool {
	return !t.After(m.FirstOrderAt.Add(window))
}

// Retention is the share of distinct members with at least one repeat order
// within the window. Each member counts once however many repeats they place.
func Retention(members []Member, w model.RetentionWindow) decimal.Decimal {
	if len(members) == 0 {
		return decimal.Zero
	}
	retained := make(map[string]struct{})
	for _, m := range members {
		orders := m.counted()
		if len(orders) < 2 {
			continue
		}
		for _, o := range orders[1:] {
			if m.within(o.OrderedAt, w.Duration()) {
				retained[m.CustomerID] = struct{}{}
				break
			}
		}
	}
	return decimal.NewFromInt(int64(len(retained))).
		DivRound(decimal.NewFromInt(int64(len(members))), ratioScale)
}

// LTV is the net revenue members placed within the window of their first
// order, acquisition order included, divided by the number of members.
func LTV(members []Member, w model.LTVWindow) decimal.Decimal {
	if len(members) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, m := range members {
		for _, o := range m.counted() {
			if !m.within(o.OrderedAt, w.Duration()) {
				break
			}
			total = total.Add(o.RevenueNet)
		}
	}
	return total.DivRound(decimal.NewFromInt(int64(len(members))), ratioScale)
}

// AverageCAC is acquisition-month spend divided by new customers. No spend or
// no customers yields zero.
func AverageCAC(spend decimal.Decimal, newCustomers int) decimal.Decimal {
	if newCustomers <= 0 || !spend.IsPositive() {
		return decimal.Zero
	}
	return spend.DivRound(decimal.NewFromInt(int64(newCustomers)), ratioScale)
}

// PaybackDays is CAC ÷ (LTV30 × margin ÷ 30) rounded to the nearest day. It
// has no value when CAC, LTV30 or the margin rate is not positive.
func PaybackDays(cac, ltv30, marginRate decimal.Decimal) *int {
	if !cac.IsPositive() || !ltv30.IsPositive() || !marginRate.IsPositive() {
		return nil
	}
	dailyMargin := ltv30.Mul(marginRate).Div(thirty)
	days := int(cac.Div(dailyMargin).Round(0).IntPart())
	return &days
}
