package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
)

type rawKey struct {
	source, entity, externalID string
}

type rawRow struct {
	source, entity, externalID, cursor, hash string
	payload                                  []byte
	ingestedAt                               time.Time
}

// martState is the whole dimensional model. BuildTx works on a copy and
// swaps it in on success.
type martState struct {
	channels     map[int]model.DimChannel
	campaigns    map[model.CampaignKey]model.DimCampaign
	nextCampaign int64
	customers    map[string]model.DimCustomer
	dates        map[time.Time]model.DimDate
	orders       map[string]model.FactOrder
	spend        map[model.SpendKey]model.FactSpend
	traffic      map[model.TrafficKey]model.FactTraffic
}

func newMartState() *martState {
	return &martState{
		channels:     make(map[int]model.DimChannel),
		campaigns:    make(map[model.CampaignKey]model.DimCampaign),
		nextCampaign: 1,
		customers:    make(map[string]model.DimCustomer),
		dates:        make(map[time.Time]model.DimDate),
		orders:       make(map[string]model.FactOrder),
		spend:        make(map[model.SpendKey]model.FactSpend),
		traffic:      make(map[model.TrafficKey]model.FactTraffic),
	}
}

func (m *martState) clone() *martState {
	c := newMartState()
	c.nextCampaign = m.nextCampaign
	for k, v := range m.channels {
		c.channels[k] = v
	}
	for k, v := range m.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range m.customers {
		c.customers[k] = v
	}
	for k, v := range m.dates {
		c.dates[k] = v
	}
	for k, v := range m.orders {
		c.orders[k] = v
	}
	for k, v := range m.spend {
		c.spend[k] = v
	}
	for k, v := range m.traffic {
		c.traffic[k] = v
	}
	return c
}

// Store is an in-memory implementation of every storage interface.
// Useful for tests and local runs without PostgreSQL.
type Store struct {
	mu      sync.RWMutex
	raw     map[rawKey]rawRow
	staging model.StagingSnapshot
	mart    *martState
	cohorts []model.Cohort
	runs    map[string]model.JobRun
	now     func() time.Time
}

var (
	_ storage.RawStore     = (*Store)(nil)
	_ storage.StagingStore = (*Store)(nil)
	_ storage.MartStore    = (*Store)(nil)
	_ storage.CohortStore  = (*Store)(nil)
	_ storage.JobStore     = (*Store)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		raw:  make(map[rawKey]rawRow),
		mart: newMartState(),
		runs: make(map[string]model.JobRun),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// UpsertRawRecords stores records by natural key, skipping unchanged payloads
// and payloads that cannot be encoded.
func (s *Store) UpsertRawRecords(ctx context.Context, records []*v1.RawRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, rec := range records {
		payload, err := rec.HashPayload()
		if err != nil {
			continue
		}
		key := rawKey{rec.Source, rec.Entity, rec.ExternalID}
		if existing, ok := s.raw[key]; ok && existing.hash == rec.PayloadHash {
			continue
		}
		ingestedAt := rec.IngestedAt
		if ingestedAt.IsZero() {
			ingestedAt = s.now()
		}
		s.raw[key] = rawRow{
			source:     rec.Source,
			entity:     rec.Entity,
			externalID: rec.ExternalID,
			cursor:     rec.Cursor,
			hash:       rec.PayloadHash,
			payload:    payload,
			ingestedAt: ingestedAt,
		}
		written++
	}
	return written, nil
}

// ListRawRecords returns one entity's records ordered by (source, external id).
func (s *Store) ListRawRecords(ctx context.Context, entity string) ([]*v1.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*v1.RawRecord
	for _, row := range s.raw {
		if row.entity != entity {
			continue
		}
		rec := &v1.RawRecord{
			Source:      row.source,
			Entity:      row.entity,
			ExternalID:  row.externalID,
			Cursor:      row.cursor,
			IngestedAt:  row.ingestedAt,
			PayloadHash: row.hash,
		}
		if err := json.Unmarshal(row.payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out, nil
}

// ReplaceStaging swaps the staging snapshot.
func (s *Store) ReplaceStaging(ctx context.Context, snapshot model.StagingSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staging = model.StagingSnapshot{
		Orders:    append([]model.StagingOrder(nil), snapshot.Orders...),
		Customers: append([]model.StagingCustomer(nil), snapshot.Customers...),
		Spend:     append([]model.StagingSpend(nil), snapshot.Spend...),
		Traffic:   append([]model.StagingTraffic(nil), snapshot.Traffic...),
	}
	return nil
}

// LoadStaging returns a copy of the staging snapshot.
func (s *Store) LoadStaging(ctx context.Context) (model.StagingSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.StagingSnapshot{
		Orders:    append([]model.StagingOrder(nil), s.staging.Orders...),
		Customers: append([]model.StagingCustomer(nil), s.staging.Customers...),
		Spend:     append([]model.StagingSpend(nil), s.staging.Spend...),
		Traffic:   append([]model.StagingTraffic(nil), s.staging.Traffic...),
	}, nil
}

// BuildTx runs fn against a copy of the mart and commits it only if fn succeeds.
func (s *Store) BuildTx(ctx context.Context, fn func(w storage.MartWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.mart.clone()
	if err := fn(&martWriter{state: working}); err != nil {
		return err
	}
	s.mart = working
	return nil
}

func (s *Store) ListChannels(ctx context.Context) ([]model.DimChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mart.listChannels(), nil
}

func (s *Store) ListCampaigns(ctx context.Context) ([]model.DimCampaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mart.listCampaigns(), nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]model.DimCustomer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mart.listCustomers(), nil
}

func (s *Store) ListDates(ctx context.Context) ([]model.DimDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DimDate, 0, len(s.mart.dates))
	for _, d := range s.mart.dates {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ListOrderFacts(ctx context.Context) ([]model.FactOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FactOrder, 0, len(s.mart.orders))
	for _, o := range s.mart.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (s *Store) ListSpendFacts(ctx context.Context) ([]model.FactSpend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FactSpend, 0, len(s.mart.spend))
	for _, f := range s.mart.spend {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key(), out[j].Key()
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.ChannelID != b.ChannelID {
			return a.ChannelID < b.ChannelID
		}
		return a.CampaignID < b.CampaignID
	})
	return out, nil
}

func (s *Store) ListTrafficFacts(ctx context.Context) ([]model.FactTraffic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FactTraffic, 0, len(s.mart.traffic))
	for _, f := range s.mart.traffic {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ChannelID < out[j].ChannelID
	})
	return out, nil
}

// ReplaceCohorts swaps all cohort rows.
func (s *Store) ReplaceCohorts(ctx context.Context, cohorts []model.Cohort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cohorts = append([]model.Cohort(nil), cohorts...)
	return nil
}

func (s *Store) ListCohorts(ctx context.Context) ([]model.Cohort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]model.Cohort(nil), s.cohorts...)
	sort.Slice(out, func(i, j int) bool { return out[i].CohortMonth.Before(out[j].CohortMonth) })
	return out, nil
}

func (s *Store) CreateRun(ctx context.Context, run *model.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("job run %s already exists", run.ID)
	}
	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *Store) UpdateRun(ctx context.Context, run *model.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		return fmt.Errorf("job run %s: %w", run.ID, storage.ErrNotFound)
	}
	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*model.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("job run %s: %w", id, storage.ErrNotFound)
	}
	out := copyRun(&run)
	return &out, nil
}

func (s *Store) ListRuns(ctx context.Context, jobName string, limit int) ([]*model.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.JobRun
	for _, run := range s.runs {
		if jobName != "" && run.JobName != jobName {
			continue
		}
		c := copyRun(&run)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyRun(run *model.JobRun) model.JobRun {
	c := *run
	c.FailedChecks = append([]model.CheckResult(nil), run.FailedChecks...)
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		c.FinishedAt = &finished
	}
	return c
}

func (m *martState) listChannels() []model.DimChannel {
	out := make([]model.DimChannel, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *martState) listCampaigns() []model.DimCampaign {
	out := make([]model.DimCampaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *martState) listCustomers() []model.DimCustomer {
	out := make([]model.DimCustomer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out
}

// martWriter applies upserts to a working copy of the mart.
type martWriter struct {
	state *martState
}

func (w *martWriter) ClearFacts(ctx context.Context) error {
	w.state.dates = make(map[time.Time]model.DimDate)
	w.state.orders = make(map[string]model.FactOrder)
	w.state.spend = make(map[model.SpendKey]model.FactSpend)
	w.state.traffic = make(map[model.TrafficKey]model.FactTraffic)
	return nil
}

func (w *martWriter) UpsertChannels(ctx context.Context, rows []model.DimChannel) error {
	for _, r := range rows {
		w.state.channels[r.ID] = r
	}
	return nil
}

func (w *martWriter) UpsertCampaigns(ctx context.Context, rows []model.DimCampaign) error {
	for _, r := range rows {
		key := r.Key()
		if existing, ok := w.state.campaigns[key]; ok {
			r.ID = existing.ID
		} else {
			r.ID = w.state.nextCampaign
			w.state.nextCampaign++
		}
		w.state.campaigns[key] = r
	}
	return nil
}

func (w *martWriter) UpsertCustomers(ctx context.Context, rows []model.DimCustomer) error {
	for _, r := range rows {
		w.state.customers[r.CustomerID] = r
	}
	return nil
}

func (w *martWriter) UpsertDates(ctx context.Context, rows []model.DimDate) error {
	for _, r := range rows {
		w.state.dates[r.Date] = r
	}
	return nil
}

func (w *martWriter) UpsertOrderFacts(ctx context.Context, rows []model.FactOrder) error {
	for _, r := range rows {
		if _, ok := w.state.channels[r.ChannelID]; !ok {
			return fmt.Errorf("fact_orders %s: channel %d violates foreign key", r.OrderID, r.ChannelID)
		}
		w.state.orders[r.OrderID] = r
	}
	return nil
}

func (w *martWriter) UpsertSpendFacts(ctx context.Context, rows []model.FactSpend) error {
	for _, r := range rows {
		if _, ok := w.state.channels[r.ChannelID]; !ok {
			return fmt.Errorf("fact_spend: channel %d violates foreign key", r.ChannelID)
		}
		w.state.spend[r.Key()] = r
	}
	return nil
}

func (w *martWriter) UpsertTrafficFacts(ctx context.Context, rows []model.FactTraffic) error {
	for _, r := range rows {
		if _, ok := w.state.channels[r.ChannelID]; !ok {
			return fmt.Errorf("fact_traffic: channel %d violates foreign key", r.ChannelID)
		}
		w.state.traffic[r.Key()] = r
	}
	return nil
}

func (w *martWriter) ListCampaigns(ctx context.Context) ([]model.DimCampaign, error) {
	return w.state.listCampaigns(), nil
}

// RawCount returns the number of raw rows for an entity. Test helper.
func (s *Store) RawCount(entity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.raw {
		if entity == "" || strings.EqualFold(k.entity, entity) {
			n++
		}
	}
	return n
}
