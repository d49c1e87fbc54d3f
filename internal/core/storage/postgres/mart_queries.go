package postgres

// SQL for the dimensional model. Every upsert is keyed by the row's natural key
// so rebuilding from unchanged staging rewrites identical values.

const (
	queryClearOrderFacts   = `DELETE FROM fact_orders`
	queryClearSpendFacts   = `DELETE FROM fact_spend`
	queryClearTrafficFacts = `DELETE FROM fact_traffic`
	queryClearDates        = `DELETE FROM dim_date`

	queryUpsertChannel = `
		INSERT INTO dim_channel (channel_id, slug, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id) DO UPDATE SET
			slug         = EXCLUDED.slug,
			display_name = EXCLUDED.display_name
	`

	queryUpsertCampaign = `
		INSERT INTO dim_campaign (source, external_id, campaign_name, channel_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source, external_id) DO UPDATE SET
			campaign_name = EXCLUDED.campaign_name,
			channel_id    = EXCLUDED.channel_id
	`

	queryUpsertCustomer = `
		INSERT INTO dim_customer (
			customer_id, email, first_order_at, cohort_month,
			acquisition_channel_id, lifetime_orders, lifetime_revenue
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (customer_id) DO UPDATE SET
			email                  = EXCLUDED.email,
			first_order_at         = EXCLUDED.first_order_at,
			cohort_month           = EXCLUDED.cohort_month,
			acquisition_channel_id = EXCLUDED.acquisition_channel_id,
			lifetime_orders        = EXCLUDED.lifetime_orders,
			lifetime_revenue       = EXCLUDED.lifetime_revenue
	`

	queryUpsertDate = `
		INSERT INTO dim_date (date_key, year, month, day, iso_week, weekday)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (date_key) DO NOTHING
	`

	queryUpsertOrderFact = `
		INSERT INTO fact_orders (
			order_id, ordered_at, customer_id, revenue_gross, revenue_net, discounts,
			refunds, cogs, shipping_cost, ops_cost, contribution_margin,
			channel_id, campaign_id, is_new_customer
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (order_id) DO UPDATE SET
			ordered_at          = EXCLUDED.ordered_at,
			customer_id         = EXCLUDED.customer_id,
			revenue_gross       = EXCLUDED.revenue_gross,
			revenue_net         = EXCLUDED.revenue_net,
			discounts           = EXCLUDED.discounts,
			refunds             = EXCLUDED.refunds,
			cogs                = EXCLUDED.cogs,
			shipping_cost       = EXCLUDED.shipping_cost,
			ops_cost            = EXCLUDED.ops_cost,
			contribution_margin = EXCLUDED.contribution_margin,
			channel_id          = EXCLUDED.channel_id,
			campaign_id         = EXCLUDED.campaign_id,
			is_new_customer     = EXCLUDED.is_new_customer
	`

	queryUpsertSpendFact = `
		INSERT INTO fact_spend (spend_date, channel_id, campaign_id, spend, impressions, clicks)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (spend_date, channel_id, (COALESCE(campaign_id, 0))) DO UPDATE SET
			spend       = EXCLUDED.spend,
			impressions = EXCLUDED.impressions,
			clicks      = EXCLUDED.clicks
	`

	queryUpsertTrafficFact = `
		INSERT INTO fact_traffic (
			traffic_date, channel_id, sessions, pdp_views, add_to_cart, checkouts, purchases
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (traffic_date, channel_id) DO UPDATE SET
			sessions    = EXCLUDED.sessions,
			pdp_views   = EXCLUDED.pdp_views,
			add_to_cart = EXCLUDED.add_to_cart,
			checkouts   = EXCLUDED.checkouts,
			purchases   = EXCLUDED.purchases
	`

	querySelectChannels = `
		SELECT channel_id, slug, display_name FROM dim_channel ORDER BY channel_id ASC
	`

	querySelectCampaigns = `
		SELECT campaign_id, source, external_id, campaign_name, channel_id
		FROM dim_campaign
		ORDER BY campaign_id ASC
	`

	querySelectCustomers = `
		SELECT customer_id, email, first_order_at, cohort_month,
			acquisition_channel_id, lifetime_orders, lifetime_revenue
		FROM dim_customer
		ORDER BY customer_id ASC
	`

	querySelectDates = `
		SELECT date_key, year, month, day, iso_week, weekday FROM dim_date ORDER BY date_key ASC
	`

	querySelectOrderFacts = `
		SELECT order_id, ordered_at, customer_id, revenue_gross, revenue_net, discounts,
			refunds, cogs, shipping_cost, ops_cost, contribution_margin,
			channel_id, campaign_id, is_new_customer
		FROM fact_orders
		ORDER BY ordered_at ASC, order_id ASC
	`

	querySelectSpendFacts = `
		SELECT spend_date, channel_id, campaign_id, spend, impressions, clicks
		FROM fact_spend
		ORDER BY spend_date ASC, channel_id ASC, COALESCE(campaign_id, 0) ASC
	`

	querySelectTrafficFacts = `
		SELECT traffic_date, channel_id, sessions, pdp_views, add_to_cart, checkouts, purchases
		FROM fact_traffic
		ORDER BY traffic_date ASC, channel_id ASC
	`
)
