package staging

import (
	"errors"
	"fmt"
	"strings"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/channel"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/money"
)

// normalizeSpend projects one ad-platform insight row. Two shapes are
// understood: Meta insights (date_start, campaign_id, spend) and Google Ads
// report rows (segments.date, campaign.id, metrics.cost_micros).
func normalizeSpend(rec *v1.RawRecord) (model.StagingSpend, error) {
	p := rec.Payload
	row := model.StagingSpend{
		Source:     strings.ToLower(rec.Source),
		ExternalID: rec.ExternalID,
		Channel:    channel.Resolve(rec.Source+"/cpc", channel.OrderVocabulary),
	}

	var (
		date string
		err  error
	)
	if _, googleShape := lookup(p, "metrics.cost_micros"); googleShape {
		date = str(p, "segments.date")
		row.CampaignID = str(p, "campaign.id")
		row.CampaignName = str(p, "campaign.name")
		row.Spend, err = money.Micros(valueAt(p, "metrics.cost_micros"))
		if err == nil {
			row.Impressions, err = count(p, "metrics.impressions")
		}
		if err == nil {
			row.Clicks, err = count(p, "metrics.clicks")
		}
	} else {
		date = str(p, "date_start")
		if date == "" {
			date = str(p, "date")
		}
		row.CampaignID = str(p, "campaign_id")
		row.CampaignName = str(p, "campaign_name")
		row.Spend, err = money.Field(p, "spend")
		if err == nil {
			row.Impressions, err = count(p, "impressions")
		}
		if err == nil {
			row.Clicks, err = count(p, "clicks")
		}
	}
	if err != nil {
		return row, fmt.Errorf("spend metrics: %w", err)
	}
	if row.Spend.IsNegative() {
		return row, fmt.Errorf("negative spend %s", row.Spend)
	}

	row.SpendDate, err = parseDate(date)
	if err != nil {
		return row, fmt.Errorf("spend date: %w", err)
	}
	return row, nil
}

// normalizeTraffic projects one analytics report row.
func normalizeTraffic(rec *v1.RawRecord) (model.StagingTraffic, error) {
	p := rec.Payload
	row := model.StagingTraffic{
		Source:       strings.ToLower(rec.Source),
		ExternalID:   rec.ExternalID,
		ChannelGroup: str(p, "sessionDefaultChannelGroup"),
	}
	if row.ChannelGroup == "" {
		row.ChannelGroup = str(p, "channel_group")
	}
	if row.ChannelGroup == "" {
		return row, errors.New("channel group missing")
	}
	row.Channel = channel.Resolve(row.ChannelGroup, channel.TrafficVocabulary)

	date, err := parseDate(str(p, "date"))
	if err != nil {
		return row, fmt.Errorf("traffic date: %w", err)
	}
	row.TrafficDate = date

	metrics := []struct {
		key string
		dst *int64
	}{
		{"sessions", &row.Sessions},
		{"itemViews", &row.PDPViews},
		{"addToCarts", &row.AddToCart},
		{"checkouts", &row.Checkouts},
		{"ecommercePurchases", &row.Purchases},
	}
	for _, m := range metrics {
		if *m.dst, err = count(p, m.key); err != nil {
			return row, err
		}
	}
	return row, nil
}

func valueAt(p map[string]interface{}, path string) interface{} {
	v, _ := lookup(p, path)
	return v
}
