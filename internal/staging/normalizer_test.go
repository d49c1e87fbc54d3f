package staging

import (
	"context"
	"errors"
	"testing"
	"time"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/channel"
	"github.com/aevon-lab/growthmart/internal/core/costmodel"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage/memory"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *memory.Store, recs ...*v1.RawRecord) {
	t.Helper()
	_, err := store.UpsertRawRecords(context.Background(), recs)
	require.NoError(t, err)
}

func TestNormalize_BuildsAllEntities(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		orderRecord("1001", map[string]interface{}{
			"created_at": "2024-03-05T10:00:00Z", "customer": map[string]interface{}{"id": "c-1", "email": "c1@example.com"},
			"total_price": "100.00", "utm_source": "facebook", "utm_medium": "cpc",
		}),
		orderRecord("1002", map[string]interface{}{
			"created_at": "2024-03-09T10:00:00Z", "customer": map[string]interface{}{"id": "c-1"},
			"total_price": "50.00", "source_name": "web",
		}),
		orderRecord("1003", map[string]interface{}{
			"created_at": "2024-03-01T10:00:00Z", "customer": map[string]interface{}{"id": "c-1"},
			"total_price": "70.00", "cancelled_at": "2024-03-01T11:00:00Z",
		}),
		orderRecord("bad", map[string]interface{}{"created_at": "2024-03-05T10:00:00Z", "customer_id": "c-9", "total_price": "n/a"}),
		&v1.RawRecord{Source: "shopify", Entity: v1.EntityCustomers, ExternalID: "c-2", Payload: map[string]interface{}{
			"email": "C2@example.com",
		}},
		&v1.RawRecord{Source: "meta", Entity: v1.EntityAdSpend, ExternalID: "s1", Payload: map[string]interface{}{
			"date_start": "2024-03-05", "campaign_id": "1", "campaign_name": "Spring", "spend": "40",
		}},
		&v1.RawRecord{Source: "ga4", Entity: v1.EntityTraffic, ExternalID: "t1", Payload: map[string]interface{}{
			"date": "20240305", "sessionDefaultChannelGroup": "Direct", "sessions": "10",
		}},
	)

	res, err := NewNormalizer(store, store, costmodel.Default()).Normalize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, res.Orders)
	require.Equal(t, 2, res.Customers)
	require.Equal(t, 1, res.Spend)
	require.Equal(t, 1, res.Traffic)
	require.Equal(t, 1, res.Skipped[v1.EntityOrders])
	require.Equal(t, 7, res.Rows())

	snap, err := store.LoadStaging(context.Background())
	require.NoError(t, err)

	byID := map[string]model.StagingOrder{}
	for _, o := range snap.Orders {
		byID[o.OrderID] = o
	}
	require.True(t, byID["1001"].IsNewCustomer)
	require.False(t, byID["1002"].IsNewCustomer)
	require.False(t, byID["1003"].IsNewCustomer, "cancelled orders never count as acquisition")

	var c1, c2 model.StagingCustomer
	for _, c := range snap.Customers {
		switch c.CustomerID {
		case "c-1":
			c1 = c
		case "c-2":
			c2 = c
		}
	}
	require.Equal(t, 2, c1.OrderCount)
	require.True(t, dec("150").Equal(c1.LifetimeRevenue))
	require.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), *c1.FirstOrderAt)
	require.Equal(t, channel.Meta, c1.AcquisitionChannel)
	require.Equal(t, "c1@example.com", c1.Email)

	require.Equal(t, "c2@example.com", c2.Email)
	require.Nil(t, c2.FirstOrderAt)
	require.Zero(t, c2.OrderCount)
}

func TestNormalize_ReplacesPriorStaging(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, orderRecord("1", map[string]interface{}{
		"created_at": "2024-03-05T10:00:00Z", "customer_id": "c-1", "total_price": "10",
	}))
	n := NewNormalizer(store, store, costmodel.Default())

	_, err := n.Normalize(context.Background())
	require.NoError(t, err)

	// Re-capture with a corrected amount: the staging row is replaced, not duplicated.
	seed(t, store, orderRecord("1", map[string]interface{}{
		"created_at": "2024-03-05T10:00:00Z", "customer_id": "c-1", "total_price": "12",
	}))
	first, err := n.Normalize(context.Background())
	require.NoError(t, err)
	second, err := n.Normalize(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)

	snap, err := store.LoadStaging(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Orders, 1)
	require.True(t, dec("12").Equal(snap.Orders[0].RevenueGross))
}

func TestNormalize_CustomerRecordFirstOrderIsKept(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		&v1.RawRecord{Source: "shopify", Entity: v1.EntityCustomers, ExternalID: "c-1", Payload: map[string]interface{}{
			"first_order_at": "2023-12-24T08:00:00Z",
		}},
		orderRecord("1", map[string]interface{}{
			"created_at": "2024-03-05T10:00:00Z", "customer_id": "c-1", "total_price": "10",
		}),
	)

	_, err := NewNormalizer(store, store, costmodel.Default()).Normalize(context.Background())
	require.NoError(t, err)

	snap, err := store.LoadStaging(context.Background())
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, 12, 24, 8, 0, 0, 0, time.UTC), *snap.Customers[0].FirstOrderAt)
	require.False(t, snap.Orders[0].IsNewCustomer)
}

func TestNormalize_AdLevelSpendRowsAreKeptApart(t *testing.T) {
	store := memory.NewStore()
	adRow := func(id, amount string) *v1.RawRecord {
		return &v1.RawRecord{Source: "meta", Entity: v1.EntityAdSpend, ExternalID: id, Payload: map[string]interface{}{
			"date_start": "2024-03-05", "campaign_id": "42", "campaign_name": "Spring", "ad_id": id, "spend": amount,
		}}
	}
	gaRow := func(id, sessions string) *v1.RawRecord {
		return &v1.RawRecord{Source: "ga4", Entity: v1.EntityTraffic, ExternalID: id, Payload: map[string]interface{}{
			"date": "20240305", "sessionDefaultChannelGroup": "Direct", "sessions": sessions,
		}}
	}
	seed(t, store, adRow("ad-1", "60.00"), adRow("ad-2", "40.00"), gaRow("20240305:Direct:desktop", "30"), gaRow("20240305:Direct:mobile", "12"))

	res, err := NewNormalizer(store, store, costmodel.Default()).Normalize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Spend)
	require.Equal(t, 2, res.Traffic)
	require.Zero(t, res.SkippedTotal())

	snap, err := store.LoadStaging(context.Background())
	require.NoError(t, err)
	total := dec("0")
	for _, s := range snap.Spend {
		total = total.Add(s.Spend)
	}
	require.True(t, dec("100").Equal(total), total.String())
	require.Equal(t, "ad-1", snap.Spend[0].ExternalID)
	require.EqualValues(t, 42, snap.Traffic[0].Sessions+snap.Traffic[1].Sessions)
}

type failingRaw struct{}

func (f *failingRaw) UpsertRawRecords(ctx context.Context, records []*v1.RawRecord) (int, error) {
	return 0, nil
}

func (f *failingRaw) ListRawRecords(ctx context.Context, entity string) ([]*v1.RawRecord, error) {
	return nil, errors.New("connection refused")
}

func TestNormalize_StorageErrorIsFatal(t *testing.T) {
	store := memory.NewStore()
	_, err := NewNormalizer(&failingRaw{}, store, costmodel.Default()).Normalize(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}
