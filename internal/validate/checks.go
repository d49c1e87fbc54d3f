package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/shopspring/decimal"
)

// maxExamples bounds how many offending keys a message lists.
const maxExamples = 5

// violations collects offending keys for a check message.
type violations struct {
	count    int
	examples []string
}

func (v *violations) add(format string, args ...interface{}) {
	v.count++
	if len(v.examples) < maxExamples {
		v.examples = append(v.examples, fmt.Sprintf(format, args...))
	}
}

func (v *violations) result(what, ok string) (bool, string) {
	if v.count == 0 {
		return true, ok
	}
	return false, fmt.Sprintf("%d %s: %s", v.count, what, strings.Join(v.examples, ", "))
}

func noNegativeSpend(s *Snapshot) (bool, string) {
	var v violations
	for _, f := range s.Spend {
		if f.Spend.IsNegative() {
			v.add("%s/%d=%s", day(f.Date), f.ChannelID, f.Spend)
		}
	}
	return v.result("negative spend rows", "all spend is non-negative")
}

func revenueNetLeGross(s *Snapshot) (bool, string) {
	var v violations
	for _, f := range s.Orders {
		if f.RevenueNet.IsNegative() || f.RevenueNet.GreaterThan(f.RevenueGross) {
			v.add("order %s net=%s gross=%s", f.OrderID, f.RevenueNet, f.RevenueGross)
		}
	}
	return v.result("orders outside 0 <= net <= gross", "0 <= net <= gross for every order")
}

// dateDimensionContinuous requires one row per day from the first to the last
// date, and every fact date present.
func dateDimensionContinuous(s *Snapshot) (bool, string) {
	if len(s.Dates) == 0 {
		if len(s.Orders)+len(s.Spend)+len(s.Traffic) == 0 {
			return true, "no dates and no facts"
		}
		return false, "date dimension is empty but facts exist"
	}

	days := make(map[time.Time]struct{}, len(s.Dates))
	first, last := s.Dates[0].Date, s.Dates[0].Date
	for _, d := range s.Dates {
		days[d.Date] = struct{}{}
		if d.Date.Before(first) {
			first = d.Date
		}
		if d.Date.After(last) {
			last = d.Date
		}
	}

	var gaps violations
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if _, ok := days[d]; !ok {
			gaps.add("%s", day(d))
		}
	}
	if ok, msg := gaps.result("missing days", ""); !ok {
		return ok, msg
	}

	var uncovered violations
	check := func(t time.Time) {
		if _, ok := days[model.TruncateDay(t)]; !ok {
			uncovered.add("%s", day(t))
		}
	}
	for _, f := range s.Orders {
		check(f.OrderedAt)
	}
	for _, f := range s.Spend {
		check(f.Date)
	}
	for _, f := range s.Traffic {
		check(f.Date)
	}
	return uncovered.result("fact dates outside the date dimension",
		fmt.Sprintf("%d contiguous days from %s to %s", len(days), day(first), day(last)))
}

func channelReferencesResolve(s *Snapshot) (bool, string) {
	known := make(map[int]struct{}, len(s.Channels))
	for _, c := range s.Channels {
		known[c.ID] = struct{}{}
	}
	var v violations
	for _, f := range s.Orders {
		if _, ok := known[f.ChannelID]; !ok {
			v.add("order %s -> %d", f.OrderID, f.ChannelID)
		}
	}
	for _, f := range s.Spend {
		if _, ok := known[f.ChannelID]; !ok {
			v.add("spend %s -> %d", day(f.Date), f.ChannelID)
		}
	}
	for _, f := range s.Traffic {
		if _, ok := known[f.ChannelID]; !ok {
			v.add("traffic %s -> %d", day(f.Date), f.ChannelID)
		}
	}
	for _, c := range s.Campaigns {
		if _, ok := known[c.Channel.ID()]; !ok {
			v.add("campaign %s/%s -> %d", c.Source, c.CampaignID, c.Channel.ID())
		}
	}
	return v.result("unresolved channel references", "every channel reference resolves")
}

func campaignReferencesResolve(s *Snapshot) (bool, string) {
	known := make(map[int64]struct{}, len(s.Campaigns))
	for _, c := range s.Campaigns {
		known[c.ID] = struct{}{}
	}
	var v violations
	for _, f := range s.Orders {
		if f.CampaignID == nil {
			continue
		}
		if _, ok := known[*f.CampaignID]; !ok {
			v.add("order %s -> %d", f.OrderID, *f.CampaignID)
		}
	}
	for _, f := range s.Spend {
		if f.CampaignID == nil {
			continue
		}
		if _, ok := known[*f.CampaignID]; !ok {
			v.add("spend %s -> %d", day(f.Date), *f.CampaignID)
		}
	}
	return v.result("unresolved campaign references", "every campaign reference resolves")
}

func customerReferencesResolve(s *Snapshot) (bool, string) {
	known := make(map[string]struct{}, len(s.Customers))
	for _, c := range s.Customers {
		known[c.CustomerID] = struct{}{}
	}
	var v violations
	for _, f := range s.Orders {
		if _, ok := known[f.CustomerID]; !ok {
			v.add("order %s -> %q", f.OrderID, f.CustomerID)
		}
	}
	return v.result("unresolved customer references", "every order customer resolves")
}

func nonEmpty(table string, count func(s *Snapshot) int) func(s *Snapshot) (bool, string) {
	return func(s *Snapshot) (bool, string) {
		if n := count(s); n > 0 {
			return true, fmt.Sprintf("%s has %d rows", table, n)
		}
		return false, table + " is empty"
	}
}

func uniqueNaturalKeys(s *Snapshot) (bool, string) {
	var v violations
	dupes := func(table string, keys []interface{}) {
		seen := make(map[interface{}]struct{}, len(keys))
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				v.add("%s %v", table, k)
				continue
			}
			seen[k] = struct{}{}
		}
	}

	keys := make([]interface{}, 0, len(s.Orders))
	for _, f := range s.Orders {
		keys = append(keys, f.OrderID)
	}
	dupes("fact_orders", keys)

	keys = keys[:0]
	for _, f := range s.Spend {
		keys = append(keys, f.Key())
	}
	dupes("fact_spend", keys)

	keys = keys[:0]
	for _, f := range s.Traffic {
		keys = append(keys, f.Key())
	}
	dupes("fact_traffic", keys)

	keys = keys[:0]
	for _, c := range s.Customers {
		keys = append(keys, c.CustomerID)
	}
	dupes("dim_customer", keys)

	keys = keys[:0]
	for _, c := range s.Campaigns {
		keys = append(keys, c.Key())
	}
	dupes("dim_campaign", keys)

	keys = keys[:0]
	for _, d := range s.Dates {
		keys = append(keys, d.Date)
	}
	dupes("dim_date", keys)

	return v.result("duplicate natural keys", "natural keys are unique")
}

// cohortBounds asserts retention in [0, 1] and non-decreasing across
// windows, LTV non-negative and non-decreasing, and a positive cohort size.
func cohortBounds(s *Snapshot) (bool, string) {
	one := decimal.NewFromInt(1)
	var v violations
	for _, c := range s.Cohorts {
		month := c.CohortMonth.Format("2006-01")
		if c.CohortSize <= 0 {
			v.add("%s size=%d", month, c.CohortSize)
		}
		prev := decimal.Zero
		for _, w := range model.RetentionWindows {
			r := c.Retention(w)
			if r.IsNegative() || r.GreaterThan(one) || r.LessThan(prev) {
				v.add("%s d%d=%s", month, w.Days(), r)
			}
			prev = r
		}
		prev = decimal.Zero
		for _, w := range model.LTVWindows {
			l := c.LTV(w)
			if l.LessThan(prev) {
				v.add("%s ltv%d=%s", month, w.Days(), l)
			}
			prev = l
		}
		if c.AvgCAC.IsNegative() {
			v.add("%s cac=%s", month, c.AvgCAC)
		}
	}
	return v.result("cohort bound violations", fmt.Sprintf("%d cohorts within bounds", len(s.Cohorts)))
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}
