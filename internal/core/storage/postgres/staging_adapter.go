package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/growthmart/internal/core/model"
)

const (
	queryDeleteStagingOrders    = `DELETE FROM staging_orders`
	queryDeleteStagingCustomers = `DELETE FROM staging_customers`
	queryDeleteStagingSpend     = `DELETE FROM staging_spend`
	queryDeleteStagingTraffic   = `DELETE FROM staging_traffic`

	queryInsertStagingOrder = `
		INSERT INTO staging_orders (
			order_id, source, customer_id, ordered_at, currency, cancelled,
			revenue_gross, discounts, refunds, revenue_net, cogs, line_item_count,
			channel_label, channel_slug, attribution_method, utm_campaign, is_new_customer
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	queryInsertStagingCustomer = `
		INSERT INTO staging_customers (
			customer_id, email, first_order_at, acquisition_channel, order_count, lifetime_revenue
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	queryInsertStagingSpend = `
		INSERT INTO staging_spend (
			source, external_id, spend_date, campaign_id, campaign_name, channel_slug, spend, impressions, clicks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	queryInsertStagingTraffic = `
		INSERT INTO staging_traffic (
			source, external_id, traffic_date, channel_group, channel_slug,
			sessions, pdp_views, add_to_cart, checkouts, purchases
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	querySelectStagingOrders = `
		SELECT order_id, source, customer_id, ordered_at, currency, cancelled,
			revenue_gross, discounts, refunds, revenue_net, cogs, line_item_count,
			channel_label, channel_slug, attribution_method, utm_campaign, is_new_customer
		FROM staging_orders
		ORDER BY ordered_at ASC, order_id ASC
	`

	querySelectStagingCustomers = `
		SELECT customer_id, email, first_order_at, acquisition_channel, order_count, lifetime_revenue
		FROM staging_customers
		ORDER BY customer_id ASC
	`

	querySelectStagingSpend = `
		SELECT source, external_id, spend_date, campaign_id, campaign_name, channel_slug, spend, impressions, clicks
		FROM staging_spend
		ORDER BY spend_date ASC, source ASC, external_id ASC
	`

	querySelectStagingTraffic = `
		SELECT source, external_id, traffic_date, channel_group, channel_slug,
			sessions, pdp_views, add_to_cart, checkouts, purchases
		FROM staging_traffic
		ORDER BY traffic_date ASC, source ASC, external_id ASC
	`
)

// StagingAdapter implements storage.StagingStore using PostgreSQL.
type StagingAdapter struct {
	db *sql.DB
}

// NewStagingAdapter creates a StagingAdapter sharing the given connection.
func NewStagingAdapter(db *sql.DB) *StagingAdapter {
	return &StagingAdapter{db: db}
}

// ReplaceStaging deletes every staging row and inserts snapshot in one
// transaction. Readers never observe a half-written staging layer.
func (a *StagingAdapter) ReplaceStaging(ctx context.Context, snapshot model.StagingSnapshot) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("staging replace: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{
		queryDeleteStagingOrders,
		queryDeleteStagingCustomers,
		queryDeleteStagingSpend,
		queryDeleteStagingTraffic,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("staging replace: clear: %w", err)
		}
	}

	if err := insertEach(ctx, tx, queryInsertStagingOrder, snapshot.Orders, func(o model.StagingOrder) []interface{} {
		return []interface{}{
			o.OrderID, o.Source, o.CustomerID, o.OrderedAt, o.Currency, o.Cancelled,
			o.RevenueGross, o.Discounts, o.Refunds, o.RevenueNet, o.COGS, o.LineItemCount,
			o.ChannelLabel, o.Channel.Slug(), string(o.Attribution), o.UTMCampaign, o.IsNewCustomer,
		}
	}); err != nil {
		return fmt.Errorf("staging replace: orders: %w", err)
	}

	if err := insertEach(ctx, tx, queryInsertStagingCustomer, snapshot.Customers, func(c model.StagingCustomer) []interface{} {
		return []interface{}{
			c.CustomerID, c.Email, nullTime(c.FirstOrderAt), c.AcquisitionChannel.Slug(), c.OrderCount, c.LifetimeRevenue,
		}
	}); err != nil {
		return fmt.Errorf("staging replace: customers: %w", err)
	}

	if err := insertEach(ctx, tx, queryInsertStagingSpend, snapshot.Spend, func(s model.StagingSpend) []interface{} {
		return []interface{}{
			s.Source, s.ExternalID, s.SpendDate, s.CampaignID, s.CampaignName, s.Channel.Slug(), s.Spend, s.Impressions, s.Clicks,
		}
	}); err != nil {
		return fmt.Errorf("staging replace: spend: %w", err)
	}

	if err := insertEach(ctx, tx, queryInsertStagingTraffic, snapshot.Traffic, func(t model.StagingTraffic) []interface{} {
		return []interface{}{
			t.Source, t.ExternalID, t.TrafficDate, t.ChannelGroup, t.Channel.Slug(),
			t.Sessions, t.PDPViews, t.AddToCart, t.Checkouts, t.Purchases,
		}
	}); err != nil {
		return fmt.Errorf("staging replace: traffic: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("staging replace: commit: %w", err)
	}

	slog.Debug("[Postgres] Staging replaced",
		"orders", len(snapshot.Orders),
		"customers", len(snapshot.Customers),
		"spend", len(snapshot.Spend),
		"traffic", len(snapshot.Traffic))
	return nil
}

// LoadStaging reads all four staging tables.
func (a *StagingAdapter) LoadStaging(ctx context.Context) (model.StagingSnapshot, error) {
	var snap model.StagingSnapshot

	orders, err := queryAll(ctx, a.db, querySelectStagingOrders, func(row scanner) (model.StagingOrder, error) {
		var o model.StagingOrder
		var slug, method string
		err := row.Scan(
			&o.OrderID, &o.Source, &o.CustomerID, &o.OrderedAt, &o.Currency, &o.Cancelled,
			&o.RevenueGross, &o.Discounts, &o.Refunds, &o.RevenueNet, &o.COGS, &o.LineItemCount,
			&o.ChannelLabel, &slug, &method, &o.UTMCampaign, &o.IsNewCustomer,
		)
		o.OrderedAt = o.OrderedAt.UTC()
		o.Channel = channelFromSlug(slug)
		o.Attribution = model.AttributionMethod(method)
		return o, err
	})
	if err != nil {
		return snap, fmt.Errorf("load staging orders: %w", err)
	}

	customers, err := queryAll(ctx, a.db, querySelectStagingCustomers, func(row scanner) (model.StagingCustomer, error) {
		var c model.StagingCustomer
		var first sql.NullTime
		var slug string
		err := row.Scan(&c.CustomerID, &c.Email, &first, &slug, &c.OrderCount, &c.LifetimeRevenue)
		c.FirstOrderAt = timePtr(first)
		c.AcquisitionChannel = channelFromSlug(slug)
		return c, err
	})
	if err != nil {
		return snap, fmt.Errorf("load staging customers: %w", err)
	}

	spend, err := queryAll(ctx, a.db, querySelectStagingSpend, func(row scanner) (model.StagingSpend, error) {
		var s model.StagingSpend
		var slug string
		err := row.Scan(&s.Source, &s.ExternalID, &s.SpendDate, &s.CampaignID, &s.CampaignName, &slug, &s.Spend, &s.Impressions, &s.Clicks)
		s.SpendDate = asDate(s.SpendDate)
		s.Channel = channelFromSlug(slug)
		return s, err
	})
	if err != nil {
		return snap, fmt.Errorf("load staging spend: %w", err)
	}

	traffic, err := queryAll(ctx, a.db, querySelectStagingTraffic, func(row scanner) (model.StagingTraffic, error) {
		var t model.StagingTraffic
		var slug string
		err := row.Scan(&t.Source, &t.ExternalID, &t.TrafficDate, &t.ChannelGroup, &slug,
			&t.Sessions, &t.PDPViews, &t.AddToCart, &t.Checkouts, &t.Purchases)
		t.TrafficDate = asDate(t.TrafficDate)
		t.Channel = channelFromSlug(slug)
		return t, err
	})
	if err != nil {
		return snap, fmt.Errorf("load staging traffic: %w", err)
	}

	snap.Orders = orders
	snap.Customers = customers
	snap.Spend = spend
	snap.Traffic = traffic
	return snap, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// insertEach prepares query once and executes it for every row.
func insertEach[T any](ctx context.Context, db execer, query string, rows []T, args func(T) []interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, args(row)...); err != nil {
			return err
		}
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// queryAll runs query and scans every row with scan.
func queryAll[T any](ctx context.Context, db querier, query string, scan func(scanner) (T, error), args ...interface{}) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
