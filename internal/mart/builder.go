package mart

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aevon-lab/growthmart/internal/core/channel"
	"github.com/aevon-lab/growthmart/internal/core/costmodel"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
	"github.com/shopspring/decimal"
)

// Result summarizes one mart build.
type Result struct {
	Campaigns    int
	Customers    int
	Dates        int
	OrderFacts   int
	SpendFacts   int
	TrafficFacts int
}

// Rows is the number of dimension and fact rows upserted.
func (r Result) Rows() int {
	return r.Campaigns + r.Customers + r.Dates + r.OrderFacts + r.SpendFacts + r.TrafficFacts
}

// Builder upserts the star schema from the staging layer.
type Builder struct {
	staging storage.StagingStore
	mart    storage.MartStore
	costs   costmodel.Model
}

func NewBuilder(staging storage.StagingStore, mart storage.MartStore, costs costmodel.Model) *Builder {
	if staging == nil || mart == nil {
		panic("mart: stores must not be nil")
	}
	return &Builder{staging: staging, mart: mart, costs: costs}
}

// Build reads staging once and writes every dimension and fact table in a
// single transaction. Facts and dates are replaced wholesale, so the mart
// matches a from-scratch build over the same staging.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	snap, err := b.staging.LoadStaging(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load staging: %w", err)
	}

	var res Result
	err = b.mart.BuildTx(ctx, func(w storage.MartWriter) error {
		if err := w.UpsertChannels(ctx, model.ChannelDimension()); err != nil {
			return err
		}

		campaigns, err := b.buildCampaigns(ctx, w, snap.Spend)
		if err != nil {
			return err
		}
		res.Campaigns = campaigns.count

		customers := customerDimension(snap.Customers)
		if err := w.UpsertCustomers(ctx, customers); err != nil {
			return err
		}
		res.Customers = len(customers)

		if err := w.ClearFacts(ctx); err != nil {
			return err
		}

		orders := b.orderFacts(snap.Orders, campaigns, firstOrders(customers))
		spend := spendFacts(snap.Spend, campaigns)
		traffic := trafficFacts(snap.Traffic)
		dates := dateDimension(orders, spend, traffic)

		if err := w.UpsertDates(ctx, dates); err != nil {
			return err
		}
		if err := w.UpsertOrderFacts(ctx, orders); err != nil {
			return err
		}
		if err := w.UpsertSpendFacts(ctx, spend); err != nil {
			return err
		}
		if err := w.UpsertTrafficFacts(ctx, traffic); err != nil {
			return err
		}

		res.Dates = len(dates)
		res.OrderFacts = len(orders)
		res.SpendFacts = len(spend)
		res.TrafficFacts = len(traffic)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("mart build: %w", err)
	}

	slog.Info("[MartBuilder] Marts rebuilt",
		"campaigns", res.Campaigns,
		"customers", res.Customers,
		"dates", res.Dates,
		"order_facts", res.OrderFacts,
		"spend_facts", res.SpendFacts,
		"traffic_facts", res.TrafficFacts)
	return res, nil
}

// campaignIndex resolves campaigns by natural key and by (channel, name).
type campaignIndex struct {
	byKey  map[model.CampaignKey]model.DimCampaign
	byName map[nameKey]int64
	count  int
}

type nameKey struct {
	channel channel.Channel
	name    string
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// buildCampaigns lazily creates campaign rows for every campaign that spend
// references, then reads back the surrogate ids.
func (b *Builder) buildCampaigns(ctx context.Context, w storage.MartWriter, spend []model.StagingSpend) (campaignIndex, error) {
	seen := make(map[model.CampaignKey]model.DimCampaign)
	for _, s := range spend {
		if s.CampaignID == "" {
			continue
		}
		key := model.CampaignKey{Source: s.Source, CampaignID: s.CampaignID}
		c := seen[key]
		c.Source, c.CampaignID, c.Channel = s.Source, s.CampaignID, s.Channel
		// Spend is date-ordered, so the latest non-empty name wins.
		if s.CampaignName != "" {
			c.CampaignName = s.CampaignName
		}
		seen[key] = c
	}

	rows := make([]model.DimCampaign, 0, len(seen))
	for _, c := range seen {
		if c.CampaignName == "" {
			c.CampaignName = c.CampaignID
		}
		rows = append(rows, c)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Source != rows[j].Source {
			return rows[i].Source < rows[j].Source
		}
		return rows[i].CampaignID < rows[j].CampaignID
	})
	if err := w.UpsertCampaigns(ctx, rows); err != nil {
		return campaignIndex{}, err
	}

	all, err := w.ListCampaigns(ctx)
	if err != nil {
		return campaignIndex{}, fmt.Errorf("list campaigns: %w", err)
	}
	idx := campaignIndex{
		byKey:  make(map[model.CampaignKey]model.DimCampaign, len(all)),
		byName: make(map[nameKey]int64, len(all)),
		count:  len(rows),
	}
	for _, c := range all {
		idx.byKey[c.Key()] = c
		nk := nameKey{c.Channel, normalizeName(c.CampaignName)}
		if id, ok := idx.byName[nk]; !ok || c.ID < id {
			idx.byName[nk] = c.ID
		}
	}
	return idx, nil
}

// customerDimension derives the customer dimension from staging. The cohort
// month follows the staged first-order date, which the customer record pins
// when the source supplies one.
func customerDimension(staged []model.StagingCustomer) []model.DimCustomer {
	rows := make([]model.DimCustomer, 0, len(staged))
	for _, s := range staged {
		dim := model.DimCustomer{
			CustomerID:         s.CustomerID,
			Email:              s.Email,
			FirstOrderAt:       s.FirstOrderAt,
			AcquisitionChannel: s.AcquisitionChannel,
			LifetimeOrders:     s.OrderCount,
			LifetimeRevenue:    s.LifetimeRevenue.Round(moneyScale),
		}
		if dim.FirstOrderAt != nil {
			first := dim.FirstOrderAt.UTC()
			month := model.TruncateMonth(first)
			dim.FirstOrderAt = &first
			dim.CohortMonth = &month
		}
		if !dim.AcquisitionChannel.Valid() {
			dim.AcquisitionChannel = channel.Other
		}
		rows = append(rows, dim)
	}
	return rows
}

func firstOrders(customers []model.DimCustomer) map[string]time.Time {
	out := make(map[string]time.Time, len(customers))
	for _, c := range customers {
		if c.FirstOrderAt != nil {
			out[c.CustomerID] = *c.FirstOrderAt
		}
	}
	return out
}

// orderFacts builds fact rows for every non-cancelled order. An order is new
// business when it is not later than the customer's first-order date in the
// dimension. Campaign association is attempted only for paid channels, by
// case-insensitive campaign name within the order's channel.
func (b *Builder) orderFacts(orders []model.StagingOrder, campaigns campaignIndex, first map[string]time.Time) []model.FactOrder {
	facts := make([]model.FactOrder, 0, len(orders))
	for _, o := range orders {
		if o.Cancelled {
			continue
		}
		var campaignID *int64
		if o.Channel.Paid() && o.UTMCampaign != "" {
			if id, ok := campaigns.byName[nameKey{o.Channel, normalizeName(o.UTMCampaign)}]; ok {
				id := id
				campaignID = &id
			}
		}
		fact := orderFact(o, b.costs, campaignID)
		at, ok := first[o.CustomerID]
		fact.IsNewCustomer = ok && !fact.OrderedAt.After(at)
		facts = append(facts, fact)
	}
	return facts
}

// spendFacts sums staged spend per (date, channel, campaign).
func spendFacts(spend []model.StagingSpend, campaigns campaignIndex) []model.FactSpend {
	sums := make(map[model.SpendKey]*model.FactSpend)
	var keys []model.SpendKey
	for _, s := range spend {
		fact := model.FactSpend{Date: model.TruncateDay(s.SpendDate), ChannelID: s.Channel.ID()}
		if s.CampaignID != "" {
			if c, ok := campaigns.byKey[model.CampaignKey{Source: s.Source, CampaignID: s.CampaignID}]; ok {
				id := c.ID
				fact.CampaignID = &id
			}
		}
		key := fact.Key()
		acc, ok := sums[key]
		if !ok {
			fact.Spend = decimal.Zero
			acc = &fact
			sums[key] = acc
			keys = append(keys, key)
		}
		acc.Spend = acc.Spend.Add(s.Spend)
		acc.Impressions += s.Impressions
		acc.Clicks += s.Clicks
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.ChannelID != b.ChannelID {
			return a.ChannelID < b.ChannelID
		}
		return a.CampaignID < b.CampaignID
	})
	out := make([]model.FactSpend, 0, len(keys))
	for _, k := range keys {
		f := *sums[k]
		f.Spend = f.Spend.Round(moneyScale)
		out = append(out, f)
	}
	return out
}

// trafficFacts sums staged traffic per (date, channel). Several channel
// groups may resolve to the same canonical channel.
func trafficFacts(traffic []model.StagingTraffic) []model.FactTraffic {
	sums := make(map[model.TrafficKey]*model.FactTraffic)
	var keys []model.TrafficKey
	for _, t := range traffic {
		key := model.TrafficKey{Date: model.TruncateDay(t.TrafficDate), ChannelID: t.Channel.ID()}
		acc, ok := sums[key]
		if !ok {
			acc = &model.FactTraffic{Date: key.Date, ChannelID: key.ChannelID}
			sums[key] = acc
			keys = append(keys, key)
		}
		acc.Sessions += t.Sessions
		acc.PDPViews += t.PDPViews
		acc.AddToCart += t.AddToCart
		acc.Checkouts += t.Checkouts
		acc.Purchases += t.Purchases
	}

	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].Date.Equal(keys[j].Date) {
			return keys[i].Date.Before(keys[j].Date)
		}
		return keys[i].ChannelID < keys[j].ChannelID
	})
	out := make([]model.FactTraffic, 0, len(keys))
	for _, k := range keys {
		out = append(out, *sums[k])
	}
	return out
}

// dateDimension covers every calendar day between the earliest and latest
// fact date, so the dimension has no gaps.
func dateDimension(orders []model.FactOrder, spend []model.FactSpend, traffic []model.FactTraffic) []model.DimDate {
	var lo, hi time.Time
	observe := func(t time.Time) {
		d := model.TruncateDay(t)
		if lo.IsZero() || d.Before(lo) {
			lo = d
		}
		if hi.IsZero() || d.After(hi) {
			hi = d
		}
	}
	for _, o := range orders {
		observe(o.OrderedAt)
	}
	for _, s := range spend {
		observe(s.Date)
	}
	for _, t := range traffic {
		observe(t.Date)
	}
	if lo.IsZero() {
		return nil
	}

	var dates []model.DimDate
	for d := lo; !d.After(hi); d = d.AddDate(0, 0, 1) {
		dates = append(dates, model.NewDimDate(d))
	}
	return dates
}
