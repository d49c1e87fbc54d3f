package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aevon-lab/growthmart/internal/core/channel"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
)

// MartAdapter implements storage.MartStore using PostgreSQL.
type MartAdapter struct {
	db *sql.DB
}

// NewMartAdapter creates a MartAdapter sharing the given connection.
func NewMartAdapter(db *sql.DB) *MartAdapter {
	return &MartAdapter{db: db}
}

// BuildTx runs fn against a writer bound to one transaction. The transaction
// commits only when fn returns nil.
func (a *MartAdapter) BuildTx(ctx context.Context, fn func(w storage.MartWriter) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mart build: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&martTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mart build: commit: %w", err)
	}
	return nil
}

func (a *MartAdapter) ListChannels(ctx context.Context) ([]model.DimChannel, error) {
	return listChannels(ctx, a.db)
}

func (a *MartAdapter) ListCampaigns(ctx context.Context) ([]model.DimCampaign, error) {
	return listCampaigns(ctx, a.db)
}

func (a *MartAdapter) ListCustomers(ctx context.Context) ([]model.DimCustomer, error) {
	return listCustomers(ctx, a.db)
}

func (a *MartAdapter) ListDates(ctx context.Context) ([]model.DimDate, error) {
	rows, err := queryAll(ctx, a.db, querySelectDates, func(row scanner) (model.DimDate, error) {
		var d model.DimDate
		err := row.Scan(&d.Date, &d.Year, &d.Month, &d.Day, &d.ISOWeek, &d.Weekday)
		d.Date = asDate(d.Date)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("list dim_date: %w", err)
	}
	return rows, nil
}

func (a *MartAdapter) ListOrderFacts(ctx context.Context) ([]model.FactOrder, error) {
	rows, err := queryAll(ctx, a.db, querySelectOrderFacts, func(row scanner) (model.FactOrder, error) {
		var f model.FactOrder
		var campaignID sql.NullInt64
		err := row.Scan(
			&f.OrderID, &f.OrderedAt, &f.CustomerID, &f.RevenueGross, &f.RevenueNet, &f.Discounts,
			&f.Refunds, &f.COGS, &f.ShippingCost, &f.OpsCost, &f.ContributionMargin,
			&f.ChannelID, &campaignID, &f.IsNewCustomer,
		)
		f.OrderedAt = f.OrderedAt.UTC()
		f.CampaignID = int64Ptr(campaignID)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("list fact_orders: %w", err)
	}
	return rows, nil
}

func (a *MartAdapter) ListSpendFacts(ctx context.Context) ([]model.FactSpend, error) {
	rows, err := queryAll(ctx, a.db, querySelectSpendFacts, func(row scanner) (model.FactSpend, error) {
		var f model.FactSpend
		var campaignID sql.NullInt64
		err := row.Scan(&f.Date, &f.ChannelID, &campaignID, &f.Spend, &f.Impressions, &f.Clicks)
		f.Date = asDate(f.Date)
		f.CampaignID = int64Ptr(campaignID)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("list fact_spend: %w", err)
	}
	return rows, nil
}

func (a *MartAdapter) ListTrafficFacts(ctx context.Context) ([]model.FactTraffic, error) {
	rows, err := queryAll(ctx, a.db, querySelectTrafficFacts, func(row scanner) (model.FactTraffic, error) {
		var f model.FactTraffic
		err := row.Scan(&f.Date, &f.ChannelID, &f.Sessions, &f.PDPViews, &f.AddToCart, &f.Checkouts, &f.Purchases)
		f.Date = asDate(f.Date)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("list fact_traffic: %w", err)
	}
	return rows, nil
}

// martTx is the transactional storage.MartWriter handed to BuildTx callbacks.
type martTx struct {
	tx *sql.Tx
}

func (w *martTx) ClearFacts(ctx context.Context) error {
	for _, q := range []string{queryClearOrderFacts, queryClearSpendFacts, queryClearTrafficFacts, queryClearDates} {
		if _, err := w.tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear facts: %w", err)
		}
	}
	return nil
}

func (w *martTx) UpsertChannels(ctx context.Context, rows []model.DimChannel) error {
	return wrapUpsert("dim_channel", insertEach(ctx, w.tx, queryUpsertChannel, rows, func(c model.DimChannel) []interface{} {
		return []interface{}{c.ID, c.Slug, c.DisplayName}
	}))
}

func (w *martTx) UpsertCampaigns(ctx context.Context, rows []model.DimCampaign) error {
	return wrapUpsert("dim_campaign", insertEach(ctx, w.tx, queryUpsertCampaign, rows, func(c model.DimCampaign) []interface{} {
		return []interface{}{c.Source, c.CampaignID, c.CampaignName, c.Channel.ID()}
	}))
}

func (w *martTx) UpsertCustomers(ctx context.Context, rows []model.DimCustomer) error {
	return wrapUpsert("dim_customer", insertEach(ctx, w.tx, queryUpsertCustomer, rows, func(c model.DimCustomer) []interface{} {
		return []interface{}{
			c.CustomerID, c.Email, nullTime(c.FirstOrderAt), nullTime(c.CohortMonth),
			c.AcquisitionChannel.ID(), c.LifetimeOrders, c.LifetimeRevenue,
		}
	}))
}

func (w *martTx) UpsertDates(ctx context.Context, rows []model.DimDate) error {
	return wrapUpsert("dim_date", insertEach(ctx, w.tx, queryUpsertDate, rows, func(d model.DimDate) []interface{} {
		return []interface{}{d.Date, d.Year, d.Month, d.Day, d.ISOWeek, d.Weekday}
	}))
}

func (w *martTx) UpsertOrderFacts(ctx context.Context, rows []model.FactOrder) error {
	return wrapUpsert("fact_orders", insertEach(ctx, w.tx, queryUpsertOrderFact, rows, func(f model.FactOrder) []interface{} {
		return []interface{}{
			f.OrderID, f.OrderedAt, f.CustomerID, f.RevenueGross, f.RevenueNet, f.Discounts,
			f.Refunds, f.COGS, f.ShippingCost, f.OpsCost, f.ContributionMargin,
			f.ChannelID, nullInt64(f.CampaignID), f.IsNewCustomer,
		}
	}))
}

func (w *martTx) UpsertSpendFacts(ctx context.Context, rows []model.FactSpend) error {
	return wrapUpsert("fact_spend", insertEach(ctx, w.tx, queryUpsertSpendFact, rows, func(f model.FactSpend) []interface{} {
		return []interface{}{f.Date, f.ChannelID, nullInt64(f.CampaignID), f.Spend, f.Impressions, f.Clicks}
	}))
}

func (w *martTx) UpsertTrafficFacts(ctx context.Context, rows []model.FactTraffic) error {
	return wrapUpsert("fact_traffic", insertEach(ctx, w.tx, queryUpsertTrafficFact, rows, func(f model.FactTraffic) []interface{} {
		return []interface{}{f.Date, f.ChannelID, f.Sessions, f.PDPViews, f.AddToCart, f.Checkouts, f.Purchases}
	}))
}

func (w *martTx) ListCampaigns(ctx context.Context) ([]model.DimCampaign, error) {
	return listCampaigns(ctx, w.tx)
}

func wrapUpsert(table string, err error) error {
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func listChannels(ctx context.Context, db querier) ([]model.DimChannel, error) {
	rows, err := queryAll(ctx, db, querySelectChannels, func(row scanner) (model.DimChannel, error) {
		var c model.DimChannel
		err := row.Scan(&c.ID, &c.Slug, &c.DisplayName)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("list dim_channel: %w", err)
	}
	return rows, nil
}

func listCampaigns(ctx context.Context, db querier) ([]model.DimCampaign, error) {
	rows, err := queryAll(ctx, db, querySelectCampaigns, func(row scanner) (model.DimCampaign, error) {
		var c model.DimCampaign
		var channelID int
		err := row.Scan(&c.ID, &c.Source, &c.CampaignID, &c.CampaignName, &channelID)
		c.Channel = channelFromID(channelID)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("list dim_campaign: %w", err)
	}
	return rows, nil
}

func listCustomers(ctx context.Context, db querier) ([]model.DimCustomer, error) {
	rows, err := queryAll(ctx, db, querySelectCustomers, func(row scanner) (model.DimCustomer, error) {
		var c model.DimCustomer
		var first, cohort sql.NullTime
		var channelID int
		err := row.Scan(&c.CustomerID, &c.Email, &first, &cohort, &channelID, &c.LifetimeOrders, &c.LifetimeRevenue)
		c.FirstOrderAt = timePtr(first)
		c.CohortMonth = timePtr(cohort)
		if c.CohortMonth != nil {
			m := asDate(*c.CohortMonth)
			c.CohortMonth = &m
		}
		c.AcquisitionChannel = channelFromID(channelID)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("list dim_customer: %w", err)
	}
	return rows, nil
}

func channelFromID(id int) channel.Channel {
	c, err := channel.FromID(id)
	if err != nil {
		return channel.Other
	}
	return c
}
