package cohort

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var cohortStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRetention_CountsDistinctCustomersNotOrders(t *testing.T) {
	members := make([]Member, 100)
	for i := range members {
		first := cohortStart.Add(time.Duration(i) * time.Hour)
		members[i] = Member{
			CustomerID:   fmt.Sprintf("c-%03d", i),
			FirstOrderAt: first,
			Orders:       []Order{{OrderedAt: first, RevenueNet: dec("50")}},
		}
	}
	// Ten distinct repeat buyers inside day 7; the first of them places five repeats.
	for i := 0; i < 10; i++ {
		repeats := 1
		if i == 0 {
			repeats = 5
		}
		for r := 1; r <= repeats; r++ {
			members[i].Orders = append(members[i].Orders, Order{
				OrderedAt:  members[i].FirstOrderAt.Add(time.Duration(r) * 24 * time.Hour),
				RevenueNet: dec("20"),
			})
		}
	}

	got := Retention(members, model.D7)
	require.True(t, dec("0.10").Equal(got), "got %s", got)
}

func TestRetention_WindowBoundaries(t *testing.T) {
	m := Member{
		CustomerID:   "c-1",
		FirstOrderAt: cohortStart,
		Orders: []Order{
			{OrderedAt: cohortStart, RevenueNet: dec("10")},
			{OrderedAt: cohortStart.Add(30 * 24 * time.Hour), RevenueNet: dec("10")},
		},
	}
	members := []Member{m}
	require.True(t, Retention(members, model.D7).IsZero())
	require.True(t, dec("1").Equal(Retention(members, model.D30)), "exactly day 30 is inside D30")
	require.True(t, dec("1").Equal(Retention(members, model.D90)))
}

func TestRetention_OrdersBeforeFirstOrderIgnored(t *testing.T) {
	m := Member{
		CustomerID:   "c-1",
		FirstOrderAt: cohortStart,
		Orders: []Order{
			{OrderedAt: cohortStart.AddDate(0, -1, 0), RevenueNet: dec("99")},
			{OrderedAt: cohortStart, RevenueNet: dec("10")},
		},
	}
	require.True(t, Retention([]Member{m}, model.D90).IsZero())
	require.True(t, dec("10").Equal(LTV([]Member{m}, model.LTV180)))
}

func TestLTV_DividesByCohortSizeNotOrders(t *testing.T) {
	members := []Member{
		{CustomerID: "a", FirstOrderAt: cohortStart, Orders: []Order{
			{OrderedAt: cohortStart, RevenueNet: dec("100")},
			{OrderedAt: cohortStart.AddDate(0, 0, 10), RevenueNet: dec("50")},
			{OrderedAt: cohortStart.AddDate(0, 0, 60), RevenueNet: dec("30")},
		}},
		{CustomerID: "b", FirstOrderAt: cohortStart, Orders: []Order{
			{OrderedAt: cohortStart, RevenueNet: dec("20")},
		}},
	}
	require.True(t, dec("85").Equal(LTV(members, model.LTV30)))
	require.True(t, dec("100").Equal(LTV(members, model.LTV90)))
	require.True(t, dec("100").Equal(LTV(members, model.LTV180)))
}

func TestAverageCAC(t *testing.T) {
	require.True(t, dec("25").Equal(AverageCAC(dec("250"), 10)))
	require.True(t, AverageCAC(decimal.Zero, 10).IsZero())
	require.True(t, AverageCAC(dec("250"), 0).IsZero())
}

func TestPaybackDays_Nullability(t *testing.T) {
	margin := dec("0.3")
	require.Nil(t, PaybackDays(decimal.Zero, dec("100"), margin))
	require.Nil(t, PaybackDays(dec("50"), decimal.Zero, margin))
	require.Nil(t, PaybackDays(dec("50"), dec("100"), decimal.Zero))
	require.Nil(t, PaybackDays(dec("-10"), dec("100"), margin))

	days := PaybackDays(dec("50"), dec("100"), margin)
	require.NotNil(t, days)
	require.Equal(t, 50, *days)

	// 40 ÷ (70 × 0.3 ÷ 30) = 57.14 → 57
	days = PaybackDays(dec("40"), dec("70"), margin)
	require.Equal(t, 57, *days)
}

func TestCompute_Monotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	var customers []model.DimCustomer
	var orders []model.FactOrder
	for i := 0; i < 300; i++ {
		first := cohortStart.AddDate(0, rng.Intn(4), rng.Intn(27)).Add(time.Duration(rng.Intn(24)) * time.Hour)
		month := model.TruncateMonth(first)
		id := fmt.Sprintf("c-%d", i)
		customers = append(customers, model.DimCustomer{CustomerID: id, FirstOrderAt: &first, CohortMonth: &month})
		orders = append(orders, model.FactOrder{OrderID: id + "-0", CustomerID: id, OrderedAt: first, RevenueNet: decimal.NewFromInt(int64(rng.Intn(200)))})
		for r := 0; r < rng.Intn(6); r++ {
			orders = append(orders, model.FactOrder{
				OrderID:    fmt.Sprintf("%s-%d", id, r+1),
				CustomerID: id,
				OrderedAt:  first.Add(time.Duration(rng.Intn(200*24)) * time.Hour),
				RevenueNet: decimal.NewFromInt(int64(rng.Intn(150))),
			})
		}
	}
	rng.Shuffle(len(orders), func(i, j int) { orders[i], orders[j] = orders[j], orders[i] })

	cohorts := Compute(customers, orders, nil, dec("0.3"))
	require.Len(t, cohorts, 4)

	one := decimal.NewFromInt(1)
	for _, c := range cohorts {
		require.Positive(t, c.CohortSize)
		require.False(t, c.D7Retention.IsNegative())
		require.True(t, c.D7Retention.LessThanOrEqual(c.D30Retention))
		require.True(t, c.D30Retention.LessThanOrEqual(c.D60Retention))
		require.True(t, c.D60Retention.LessThanOrEqual(c.D90Retention))
		require.True(t, c.D90Retention.LessThanOrEqual(one))
		require.True(t, c.LTV30.LessThanOrEqual(c.LTV90))
		require.True(t, c.LTV90.LessThanOrEqual(c.LTV180))
		require.True(t, c.AvgCAC.IsZero())
		require.Nil(t, c.PaybackDays)
	}
}

func TestCompute_CACUsesAcquisitionMonthSpend(t *testing.T) {
	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	first := march.Add(36 * time.Hour)
	customers := []model.DimCustomer{
		{CustomerID: "a", FirstOrderAt: &first, CohortMonth: &march},
		{CustomerID: "b", FirstOrderAt: &first, CohortMonth: &march},
		{CustomerID: "no-orders"},
	}
	orders := []model.FactOrder{
		{OrderID: "1", CustomerID: "a", OrderedAt: first, RevenueNet: dec("100")},
		{OrderID: "2", CustomerID: "b", OrderedAt: first, RevenueNet: dec("100")},
	}
	spend := []model.FactSpend{
		{Date: march, Spend: dec("30")},
		{Date: march.AddDate(0, 0, 30), Spend: dec("70")},
		{Date: march.AddDate(0, 1, 0), Spend: dec("1000")},
	}

	cohorts := Compute(customers, orders, spend, dec("0.3"))
	require.Len(t, cohorts, 1)
	require.Equal(t, 2, cohorts[0].CohortSize)
	require.True(t, dec("50").Equal(cohorts[0].AvgCAC))
	require.NotNil(t, cohorts[0].PaybackDays)
	require.Equal(t, 50, *cohorts[0].PaybackDays)
}
