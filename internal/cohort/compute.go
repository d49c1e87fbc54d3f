package cohort

import (
	"sort"
	"time"

	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/shopspring/decimal"
)

// Compute groups customers into acquisition-month cohorts and derives every
// cohort metric in memory from one bulk read of the marts.
func Compute(customers []model.DimCustomer, orders []model.FactOrder, spend []model.FactSpend, marginRate decimal.Decimal) []model.Cohort {
	ordersByCustomer := make(map[string][]Order)
	for _, f := range orders {
		ordersByCustomer[f.CustomerID] = append(ordersByCustomer[f.CustomerID], Order{
			OrderedAt:  f.OrderedAt,
			RevenueNet: f.RevenueNet,
		})
	}

	groups := make(map[time.Time][]Member)
	for _, c := range customers {
		if c.CohortMonth == nil || c.FirstOrderAt == nil {
			continue
		}
		custOrders := ordersByCustomer[c.CustomerID]
		sort.SliceStable(custOrders, func(i, j int) bool {
			return custOrders[i].OrderedAt.Before(custOrders[j].OrderedAt)
		})
		month := model.TruncateMonth(*c.CohortMonth)
		groups[month] = append(groups[month], Member{
			CustomerID:   c.CustomerID,
			FirstOrderAt: *c.FirstOrderAt,
			Orders:       custOrders,
		})
	}

	spendByMonth := make(map[time.Time]decimal.Decimal)
	for _, s := range spend {
		month := model.TruncateMonth(s.Date)
		spendByMonth[month] = spendByMonth[month].Add(s.Spend)
	}

	months := make([]time.Time, 0, len(groups))
	for m := range groups {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	cohorts := make([]model.Cohort, 0, len(months))
	for _, month := range months {
		members := groups[month]
		c := model.Cohort{CohortMonth: month, CohortSize: len(members)}
		for _, w := range model.RetentionWindows {
			c.SetRetention(w, Retention(members, w))
		}
		for _, w := range model.LTVWindows {
			c.SetLTV(w, LTV(members, w))
		}
		c.AvgCAC = AverageCAC(spendByMonth[month], len(members))
		c.PaybackDays = PaybackDays(c.AvgCAC, c.LTV30, marginRate)
		cohorts = append(cohorts, c)
	}
	return cohorts
}
