package staging

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/costmodel"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
	"golang.org/x/sync/errgroup"
)

// Result summarizes one normalization pass.
type Result struct {
	Orders    int
	Customers int
	Spend     int
	Traffic   int
	// Skipped counts malformed raw records per entity type.
	Skipped map[string]int
}

// Rows is the number of staging rows written.
func (r Result) Rows() int {
	return r.Orders + r.Customers + r.Spend + r.Traffic
}

// SkippedTotal is the number of raw records left out of staging.
func (r Result) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// Normalizer rebuilds the staging layer from the raw log.
type Normalizer struct {
	raw     storage.RawStore
	staging storage.StagingStore
	costs   costmodel.Model
}

func NewNormalizer(raw storage.RawStore, staging storage.StagingStore, costs costmodel.Model) *Normalizer {
	if raw == nil || staging == nil {
		panic("staging: stores must not be nil")
	}
	return &Normalizer{raw: raw, staging: staging, costs: costs}
}

// Normalize reads every raw record, projects it into typed staging rows and
// replaces the staging layer in one write. Malformed records are skipped and
// logged; only storage failures are returned.
func (n *Normalizer) Normalize(ctx context.Context) (Result, error) {
	raw, err := n.loadRaw(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Skipped: make(map[string]int)}
	skip := func(rec *v1.RawRecord, err error) {
		res.Skipped[rec.Entity]++
		slog.Warn("[Normalizer] Skipping malformed record",
			"source", rec.Source,
			"entity", rec.Entity,
			"external_id", rec.ExternalID,
			"error", err)
	}

	var snap model.StagingSnapshot

	orders := make(map[string]model.StagingOrder)
	orderEmails := make(map[string]string)
	for _, rec := range raw[v1.EntityOrders] {
		o, err := normalizeOrder(rec, n.costs)
		if err != nil {
			skip(rec, err)
			continue
		}
		orders[o.OrderID] = o
		if email := orderEmail(rec.Payload); email != "" {
			orderEmails[o.CustomerID] = strings.ToLower(email)
		}
	}
	snap.Orders = make([]model.StagingOrder, 0, len(orders))
	for _, o := range orders {
		snap.Orders = append(snap.Orders, o)
	}
	sort.Slice(snap.Orders, func(i, j int) bool {
		a, b := snap.Orders[i], snap.Orders[j]
		if !a.OrderedAt.Equal(b.OrderedAt) {
			return a.OrderedAt.Before(b.OrderedAt)
		}
		return a.OrderID < b.OrderID
	})

	profiles := make(map[string]customerProfile)
	for _, rec := range raw[v1.EntityCustomers] {
		prof, err := normalizeCustomer(rec)
		if err != nil {
			skip(rec, err)
			continue
		}
		profiles[prof.id] = prof
	}
	// Orders carry the e-mail too; fill it in for customers without a record.
	for id, email := range orderEmails {
		prof, ok := profiles[id]
		if ok && prof.email != "" {
			continue
		}
		prof.id = id
		prof.email = email
		profiles[id] = prof
	}
	snap.Customers = buildCustomers(profiles, snap.Orders)

	spend := make(map[rowKey]model.StagingSpend)
	for _, rec := range raw[v1.EntityAdSpend] {
		s, err := normalizeSpend(rec)
		if err != nil {
			skip(rec, err)
			continue
		}
		spend[rowKey{s.Source, s.ExternalID}] = s
	}
	for _, s := range spend {
		snap.Spend = append(snap.Spend, s)
	}
	sort.Slice(snap.Spend, func(i, j int) bool {
		a, b := snap.Spend[i], snap.Spend[j]
		if !a.SpendDate.Equal(b.SpendDate) {
			return a.SpendDate.Before(b.SpendDate)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ExternalID < b.ExternalID
	})

	traffic := make(map[rowKey]model.StagingTraffic)
	for _, rec := range raw[v1.EntityTraffic] {
		t, err := normalizeTraffic(rec)
		if err != nil {
			skip(rec, err)
			continue
		}
		traffic[rowKey{t.Source, t.ExternalID}] = t
	}
	for _, t := range traffic {
		snap.Traffic = append(snap.Traffic, t)
	}
	sort.Slice(snap.Traffic, func(i, j int) bool {
		a, b := snap.Traffic[i], snap.Traffic[j]
		if !a.TrafficDate.Equal(b.TrafficDate) {
			return a.TrafficDate.Before(b.TrafficDate)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ExternalID < b.ExternalID
	})

	if err := n.staging.ReplaceStaging(ctx, snap); err != nil {
		return Result{}, fmt.Errorf("replace staging: %w", err)
	}

	res.Orders = len(snap.Orders)
	res.Customers = len(snap.Customers)
	res.Spend = len(snap.Spend)
	res.Traffic = len(snap.Traffic)

	slog.Info("[Normalizer] Staging rebuilt",
		"orders", res.Orders,
		"customers", res.Customers,
		"spend", res.Spend,
		"traffic", res.Traffic,
		"skipped", res.SkippedTotal())
	return res, nil
}

// rowKey is the raw natural key of a spend or traffic row. The mart builder
// sums rows to the fact grain.
type rowKey struct {
	source     string
	externalID string
}

// loadRaw fetches the four entity types concurrently.
func (n *Normalizer) loadRaw(ctx context.Context) (map[string][]*v1.RawRecord, error) {
	results := make([][]*v1.RawRecord, len(v1.Entities))
	g, gctx := errgroup.WithContext(ctx)
	for i, entity := range v1.Entities {
		i, entity := i, entity
		g.Go(func() error {
			recs, err := n.raw.ListRawRecords(gctx, entity)
			if err != nil {
				return fmt.Errorf("list raw %s: %w", entity, err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]*v1.RawRecord, len(v1.Entities))
	for i, entity := range v1.Entities {
		out[entity] = results[i]
	}
	return out, nil
}
