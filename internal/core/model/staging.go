package model

import (
	"time"

	"github.com/aevon-lab/growthmart/internal/core/channel"
	"github.com/shopspring/decimal"
)

// AttributionMethod records which step of the order attribution chain
// produced the channel label.
type AttributionMethod string

const (
	AttributionUTM     AttributionMethod = "utm"
	AttributionJourney AttributionMethod = "journey"
	AttributionTag     AttributionMethod = "tag"
	AttributionSearch  AttributionMethod = "search"
	AttributionDirect  AttributionMethod = "direct"
)

// StagingOrder is the typed projection of one raw order.
type StagingOrder struct {
	OrderID       string
	Source        string
	CustomerID    string
	OrderedAt     time.Time
	Currency      string
	Cancelled     bool
	RevenueGross  decimal.Decimal
	Discounts     decimal.Decimal
	Refunds       decimal.Decimal
	RevenueNet    decimal.Decimal
	COGS          decimal.Decimal
	LineItemCount int
	ChannelLabel  string
	Channel       channel.Channel
	Attribution   AttributionMethod
	UTMCampaign   string
	IsNewCustomer bool
}

// StagingCustomer is one deduplicated customer with lifetime accumulators.
type StagingCustomer struct {
	CustomerID         string
	Email              string
	FirstOrderAt       *time.Time
	AcquisitionChannel channel.Channel
	OrderCount         int
	LifetimeRevenue    decimal.Decimal
}

// StagingSpend is one ad-platform insight row. (Source, ExternalID) is its
// key; several rows may share a campaign and day (ad-level insights).
type StagingSpend struct {
	Source       string
	ExternalID   string
	SpendDate    time.Time
	CampaignID   string
	CampaignName string
	Channel      channel.Channel
	Spend        decimal.Decimal
	Impressions  int64
	Clicks       int64
}

// StagingTraffic is one analytics report row, keyed by (Source, ExternalID).
type StagingTraffic struct {
	Source       string
	ExternalID   string
	TrafficDate  time.Time
	ChannelGroup string
	Channel      channel.Channel
	Sessions     int64
	PDPViews     int64
	AddToCart    int64
	Checkouts    int64
	Purchases    int64
}

// StagingSnapshot is the full output of one normalization pass. Stores
// replace staging content with it atomically.
type StagingSnapshot struct {
	Orders    []StagingOrder
	Customers []StagingCustomer
	Spend     []StagingSpend
	Traffic   []StagingTraffic
}

// Rows returns the total row count across all entity types.
func (s StagingSnapshot) Rows() int {
	return len(s.Orders) + len(s.Customers) + len(s.Spend) + len(s.Traffic)
}
