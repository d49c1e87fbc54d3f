package staging

import (
	"sort"
	"strings"
	"time"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/channel"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/shopspring/decimal"
)

// customerProfile is what a raw customer record contributes.
type customerProfile struct {
	id           string
	email        string
	firstOrderAt *time.Time
}

func normalizeCustomer(rec *v1.RawRecord) (customerProfile, error) {
	p := rec.Payload
	profile := customerProfile{
		id:    rec.ExternalID,
		email: strings.ToLower(str(p, "email")),
	}
	if ts := str(p, "first_order_at"); ts != "" {
		t, err := parseTimestamp(ts)
		if err != nil {
			return profile, err
		}
		profile.firstOrderAt = &t
	}
	return profile, nil
}

// buildCustomers unions customer records with order customers, accumulates
// lifetime totals from non-cancelled orders and marks each order's
// IsNewCustomer flag. The first-order date comes from the customer record
// when it carries one, otherwise from the earliest non-cancelled order. The
// acquisition channel is that of the first non-cancelled order on or after
// the first-order date. orders must be sorted by (OrderedAt, OrderID).
func buildCustomers(profiles map[string]customerProfile, orders []model.StagingOrder) []model.StagingCustomer {
	byID := make(map[string]*model.StagingCustomer, len(profiles))
	for id, prof := range profiles {
		byID[id] = &model.StagingCustomer{
			CustomerID:         id,
			Email:              prof.email,
			FirstOrderAt:       prof.firstOrderAt,
			AcquisitionChannel: channel.Other,
			LifetimeRevenue:    decimal.Zero,
		}
	}

	for _, o := range orders {
		c, ok := byID[o.CustomerID]
		if !ok {
			c = &model.StagingCustomer{
				CustomerID:         o.CustomerID,
				AcquisitionChannel: channel.Other,
				LifetimeRevenue:    decimal.Zero,
			}
			byID[o.CustomerID] = c
		}
		if o.Cancelled {
			continue
		}
		c.OrderCount++
		c.LifetimeRevenue = c.LifetimeRevenue.Add(o.RevenueNet)
		if c.FirstOrderAt == nil {
			t := o.OrderedAt
			c.FirstOrderAt = &t
		}
	}

	acquired := make(map[string]bool)
	for _, o := range orders {
		c := byID[o.CustomerID]
		if o.Cancelled || acquired[o.CustomerID] || o.OrderedAt.Before(*c.FirstOrderAt) {
			continue
		}
		acquired[o.CustomerID] = true
		c.AcquisitionChannel = o.Channel
	}

	for i := range orders {
		c := byID[orders[i].CustomerID]
		orders[i].IsNewCustomer = !orders[i].Cancelled &&
			c.FirstOrderAt != nil && !orders[i].OrderedAt.After(*c.FirstOrderAt)
	}

	out := make([]model.StagingCustomer, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out
}
