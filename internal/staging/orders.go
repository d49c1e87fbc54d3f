package staging

import (
	"errors"
	"fmt"
	"strings"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/channel"
	"github.com/aevon-lab/growthmart/internal/core/costmodel"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/money"
	"github.com/shopspring/decimal"
)

// normalizeOrder projects one raw order. IsNewCustomer is resolved later,
// once every order of the customer has been seen.
func normalizeOrder(rec *v1.RawRecord, costs costmodel.Model) (model.StagingOrder, error) {
	p := rec.Payload
	order := model.StagingOrder{
		OrderID:  rec.ExternalID,
		Source:   rec.Source,
		Currency: strings.ToUpper(str(p, "currency")),
	}

	order.CustomerID = orderCustomerID(p)
	if order.CustomerID == "" {
		return order, errors.New("customer id missing")
	}

	ts := str(p, "created_at")
	if ts == "" {
		ts = str(p, "processed_at")
	}
	orderedAt, err := parseTimestamp(ts)
	if err != nil {
		return order, fmt.Errorf("created_at: %w", err)
	}
	order.OrderedAt = orderedAt

	gross, err := orderGross(p)
	if err != nil {
		return order, err
	}
	discounts, err := money.ParseOptional(p["total_discounts"])
	if err != nil {
		return order, fmt.Errorf("total_discounts: %w", err)
	}
	refunds, err := orderRefunds(p)
	if err != nil {
		return order, err
	}
	if discounts.IsNegative() || refunds.IsNegative() {
		return order, errors.New("negative discount or refund amount")
	}

	order.RevenueGross = gross
	order.Discounts = discounts
	order.Refunds = refunds
	order.RevenueNet = money.Clamp(gross.Sub(discounts).Sub(refunds), decimal.Zero, gross)

	cogs, items, err := orderCOGS(p, order.RevenueNet, costs)
	if err != nil {
		return order, err
	}
	order.COGS = cogs
	order.LineItemCount = items

	order.Cancelled = str(p, "cancelled_at") != "" || strings.EqualFold(str(p, "financial_status"), "voided")

	attr := extractAttribution(p)
	order.ChannelLabel = attr.label
	order.Channel = channel.Resolve(attr.label, channel.OrderVocabulary)
	order.Attribution = attr.method
	order.UTMCampaign = attr.campaign

	return order, nil
}

func orderCustomerID(p map[string]interface{}) string {
	if id := str(p, "customer.id"); id != "" {
		return id
	}
	if id := str(p, "customer_id"); id != "" {
		return id
	}
	// Guest checkouts carry no customer object; the e-mail is the only
	// stable identity they have.
	if email := strings.ToLower(orderEmail(p)); email != "" {
		return "email:" + email
	}
	return ""
}

func orderEmail(p map[string]interface{}) string {
	if email := str(p, "customer.email"); email != "" {
		return email
	}
	if email := str(p, "email"); email != "" {
		return email
	}
	return str(p, "contact_email")
}

// orderGross is total_line_items_price, else total_price.
func orderGross(p map[string]interface{}) (decimal.Decimal, error) {
	gross, err := money.Field(p, "total_line_items_price")
	if errors.Is(err, money.ErrMissing) {
		gross, err = money.Field(p, "total_price")
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("gross revenue: %w", err)
	}
	if gross.IsNegative() {
		return decimal.Zero, fmt.Errorf("gross revenue: negative amount %s", gross)
	}
	return gross, nil
}

// orderRefunds sums refunds[].transactions[].amount, falling back to
// total_refunded when the order carries no refund transactions.
func orderRefunds(p map[string]interface{}) (decimal.Decimal, error) {
	total := decimal.Zero
	seen := false
	for _, r := range list(p, "refunds") {
		refund, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		for _, tx := range list(refund, "transactions") {
			txn, ok := tx.(map[string]interface{})
			if !ok {
				continue
			}
			if kind := str(txn, "kind"); kind != "" && kind != "refund" {
				continue
			}
			if status := str(txn, "status"); status != "" && status != "success" {
				continue
			}
			amount, err := money.Parse(txn["amount"])
			if err != nil {
				return decimal.Zero, fmt.Errorf("refund transaction amount: %w", err)
			}
			total = total.Add(amount)
			seen = true
		}
	}
	if seen {
		return total, nil
	}
	refunded, err := money.ParseOptional(p["total_refunded"])
	if err != nil {
		return decimal.Zero, fmt.Errorf("total_refunded: %w", err)
	}
	return refunded, nil
}

// orderCOGS estimates cost of goods as the sum over line items of
// price × quantity × (1 − category margin). Orders without line items fall
// back to net revenue × (1 − default margin).
func orderCOGS(p map[string]interface{}, net decimal.Decimal, costs costmodel.Model) (decimal.Decimal, int, error) {
	items := list(p, "line_items")
	if len(items) == 0 {
		return net.Mul(decimal.NewFromInt(1).Sub(costs.DefaultMargin)), 0, nil
	}

	cogs := decimal.Zero
	for i, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			return decimal.Zero, 0, fmt.Errorf("line_items[%d]: not an object", i)
		}
		price, err := money.Field(item, "price")
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("line_items[%d].price: %w", i, err)
		}
		qty, err := count(item, "quantity")
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("line_items[%d]: %w", i, err)
		}
		if qty == 0 {
			qty = 1
		}
		margin := costs.MarginFor(str(item, "product_type"))
		unitCost := price.Mul(decimal.NewFromInt(1).Sub(margin))
		cogs = cogs.Add(unitCost.Mul(decimal.NewFromInt(qty)))
	}
	return cogs, len(items), nil
}
