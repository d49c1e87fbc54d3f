package model

import (
	"time"

	"github.com/aevon-lab/growthmart/internal/core/channel"
	"github.com/shopspring/decimal"
)

// DimChannel is a row of the channel dimension.
type DimChannel struct {
	ID          int
	Slug        string
	DisplayName string
}

// ChannelDimension returns the seeded rows for every canonical channel.
func ChannelDimension() []DimChannel {
	rows := make([]DimChannel, 0, len(channel.All))
	for _, c := range channel.All {
		rows = append(rows, DimChannel{ID: c.ID(), Slug: c.Slug(), DisplayName: c.DisplayName()})
	}
	return rows
}

// CampaignKey is the natural key of DimCampaign.
type CampaignKey struct {
	Source     string
	CampaignID string
}

// DimCampaign is a named ad campaign within a channel.
type DimCampaign struct {
	ID           int64
	Source       string
	CampaignID   string
	CampaignName string
	Channel      channel.Channel
}

// Key returns the campaign's natural key.
func (c DimCampaign) Key() CampaignKey {
	return CampaignKey{Source: c.Source, CampaignID: c.CampaignID}
}

// DimCustomer is one deduplicated customer. FirstOrderAt and CohortMonth
// are nil for customers with no completed order yet.
type DimCustomer struct {
	CustomerID         string
	Email              string
	FirstOrderAt       *time.Time
	CohortMonth        *time.Time
	AcquisitionChannel channel.Channel
	LifetimeOrders     int
	LifetimeRevenue    decimal.Decimal
}

// DimDate is one calendar day of the date dimension.
type DimDate struct {
	Date    time.Time
	Year    int
	Month   int
	Day     int
	ISOWeek int
	Weekday int
}

// NewDimDate derives the date attributes for day d (truncated to UTC midnight).
func NewDimDate(d time.Time) DimDate {
	day := TruncateDay(d)
	_, week := day.ISOWeek()
	return DimDate{
		Date:    day,
		Year:    day.Year(),
		Month:   int(day.Month()),
		Day:     day.Day(),
		ISOWeek: week,
		Weekday: int(day.Weekday()),
	}
}

// FactOrder is one completed order with cost allocation applied.
type FactOrder struct {
	OrderID            string
	OrderedAt          time.Time
	CustomerID         string
	RevenueGross       decimal.Decimal
	RevenueNet         decimal.Decimal
	Discounts          decimal.Decimal
	Refunds            decimal.Decimal
	COGS               decimal.Decimal
	ShippingCost       decimal.Decimal
	OpsCost            decimal.Decimal
	ContributionMargin decimal.Decimal
	ChannelID          int
	CampaignID         *int64
	IsNewCustomer      bool
}

// SpendKey is the natural key of FactSpend. CampaignID 0 means "no campaign".
type SpendKey struct {
	Date       time.Time
	ChannelID  int
	CampaignID int64
}

// FactSpend is daily spend per channel and campaign.
type FactSpend struct {
	Date        time.Time
	ChannelID   int
	CampaignID  *int64
	Spend       decimal.Decimal
	Impressions int64
	Clicks      int64
}

// Key returns the spend row's natural key.
func (f FactSpend) Key() SpendKey {
	k := SpendKey{Date: f.Date, ChannelID: f.ChannelID}
	if f.CampaignID != nil {
		k.CampaignID = *f.CampaignID
	}
	return k
}

// TrafficKey is the natural key of FactTraffic.
type TrafficKey struct {
	Date      time.Time
	ChannelID int
}

// FactTraffic is daily funnel counts per channel.
type FactTraffic struct {
	Date      time.Time
	ChannelID int
	Sessions  int64
	PDPViews  int64
	AddToCart int64
	Checkouts int64
	Purchases int64
}

// Key returns the traffic row's natural key.
func (f FactTraffic) Key() TrafficKey {
	return TrafficKey{Date: f.Date, ChannelID: f.ChannelID}
}

// TruncateDay returns t's calendar day at UTC midnight.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// TruncateMonth returns the first day of t's calendar month in UTC.
func TruncateMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
