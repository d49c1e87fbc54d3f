package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestStore_UpsertRawRecordsSkipsUnencodablePayload(t *testing.T) {
	s := NewStore()
	n, err := s.UpsertRawRecords(context.Background(), []*v1.RawRecord{
		{Source: "shopify", Entity: v1.EntityOrders, ExternalID: "1", Payload: map[string]interface{}{"total_price": math.NaN()}},
		{Source: "shopify", Entity: v1.EntityOrders, ExternalID: "2", Payload: map[string]interface{}{"total_price": "20.00"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, s.RawCount(v1.EntityOrders))
}

func TestStore_UpsertRawRecordsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	records := func() []*v1.RawRecord {
		return []*v1.RawRecord{
			{Source: "shopify", Entity: v1.EntityOrders, ExternalID: "1", Payload: map[string]interface{}{"total_price": "10.00"}},
			{Source: "shopify", Entity: v1.EntityOrders, ExternalID: "2", Payload: map[string]interface{}{"total_price": "20.00"}},
		}
	}

	n, err := s.UpsertRawRecords(ctx, records())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = s.UpsertRawRecords(ctx, records())
	require.NoError(t, err)
	require.Equal(t, 0, n, "identical payloads are not rewritten")

	changed := records()[:1]
	changed[0].Payload["total_price"] = "11.00"
	n, err = s.UpsertRawRecords(ctx, changed)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 2, s.RawCount(v1.EntityOrders))

	listed, err := s.ListRawRecords(ctx, v1.EntityOrders)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "1", listed[0].ExternalID)
	require.Equal(t, "11.00", listed[0].Payload["total_price"])
}

func TestStore_BuildTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.BuildTx(ctx, func(w storage.MartWriter) error {
		return w.UpsertChannels(ctx, model.ChannelDimension())
	}))

	boom := errors.New("boom")
	err := s.BuildTx(ctx, func(w storage.MartWriter) error {
		require.NoError(t, w.UpsertOrderFacts(ctx, []model.FactOrder{{
			OrderID:    "o-1",
			OrderedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			ChannelID:  1,
			RevenueNet: decimal.NewFromInt(5),
		}}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	orders, err := s.ListOrderFacts(ctx)
	require.NoError(t, err)
	require.Empty(t, orders)

	channels, err := s.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, len(model.ChannelDimension()))
}

func TestStore_CampaignIDsAreStable(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	upsert := func(name string) {
		require.NoError(t, s.BuildTx(ctx, func(w storage.MartWriter) error {
			return w.UpsertCampaigns(ctx, []model.DimCampaign{{Source: "meta", CampaignID: "c-1", CampaignName: name}})
		}))
	}
	upsert("Spring")
	upsert("Spring Sale")

	campaigns, err := s.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	require.Equal(t, int64(1), campaigns[0].ID)
	require.Equal(t, "Spring Sale", campaigns[0].CampaignName)
}

func TestStore_GetRunNotFound(t *testing.T) {
	_, err := NewStore().GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
