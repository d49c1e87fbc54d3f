package mart

import (
	"github.com/aevon-lab/growthmart/internal/core/costmodel"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/shopspring/decimal"
)

// moneyScale matches the NUMERIC(18,6) columns so a rebuilt row compares
// equal to the stored one.
const moneyScale = 6

// orderFact derives the fact row of a staged order. Shipping and ops cost are
// fixed fractions of net revenue; the contribution margin is recomputed from
// those inputs on every build.
func orderFact(o model.StagingOrder, costs costmodel.Model, campaignID *int64) model.FactOrder {
	shipping := o.RevenueNet.Mul(costs.ShippingRate).Round(moneyScale)
	ops := o.RevenueNet.Mul(costs.OpsRate).Round(moneyScale)
	cogs := o.COGS.Round(moneyScale)
	net := o.RevenueNet.Round(moneyScale)

	return model.FactOrder{
		OrderID:            o.OrderID,
		OrderedAt:          o.OrderedAt.UTC(),
		CustomerID:         o.CustomerID,
		RevenueGross:       o.RevenueGross.Round(moneyScale),
		RevenueNet:         net,
		Discounts:          o.Discounts.Round(moneyScale),
		Refunds:            o.Refunds.Round(moneyScale),
		COGS:               cogs,
		ShippingCost:       shipping,
		OpsCost:            ops,
		ContributionMargin: ContributionMargin(net, cogs, shipping, ops),
		ChannelID:          o.Channel.ID(),
		CampaignID:         campaignID,
	}
}

// ContributionMargin is net revenue minus cost of goods, shipping and ops cost.
func ContributionMargin(net, cogs, shipping, ops decimal.Decimal) decimal.Decimal {
	return net.Sub(cogs).Sub(shipping).Sub(ops)
}
