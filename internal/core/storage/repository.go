package storage

import (
	"context"
	"errors"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/model"
)

// ErrNotFound is returned when a keyed lookup matches nothing.
var ErrNotFound = errors.New("not found")

// RawStore is the append/upsert raw log.
type RawStore interface {
	// UpsertRawRecords writes records keyed by (source, entity, external_id)
	// and returns the number of rows inserted or changed. Records whose
	// payload hash is unchanged are not rewritten.
	UpsertRawRecords(ctx context.Context, records []*v1.RawRecord) (int, error)

	// ListRawRecords returns every raw record of one entity type ordered by
	// (source, external_id).
	ListRawRecords(ctx context.Context, entity string) ([]*v1.RawRecord, error)
}

// StagingStore holds the typed projection of the raw log.
type StagingStore interface {
	// ReplaceStaging swaps the whole staging content for snapshot atomically.
	ReplaceStaging(ctx context.Context, snapshot model.StagingSnapshot) error

	// LoadStaging reads all staging rows.
	LoadStaging(ctx context.Context) (model.StagingSnapshot, error)
}

// MartReader reads the dimensional model.
type MartReader interface {
	ListChannels(ctx context.Context) ([]model.DimChannel, error)
	ListCampaigns(ctx context.Context) ([]model.DimCampaign, error)
	ListCustomers(ctx context.Context) ([]model.DimCustomer, error)
	ListDates(ctx context.Context) ([]model.DimDate, error)
	ListOrderFacts(ctx context.Context) ([]model.FactOrder, error)
	ListSpendFacts(ctx context.Context) ([]model.FactSpend, error)
	ListTrafficFacts(ctx context.Context) ([]model.FactTraffic, error)
}

// MartWriter is the write surface of one mart build. Every upsert is keyed
// by the row's natural key.
type MartWriter interface {
	// ClearFacts empties the fact tables and the date dimension so the build
	// rewrites them from current staging only.
	ClearFacts(ctx context.Context) error

	UpsertChannels(ctx context.Context, rows []model.DimChannel) error
	UpsertCampaigns(ctx context.Context, rows []model.DimCampaign) error
	UpsertCustomers(ctx context.Context, rows []model.DimCustomer) error
	UpsertDates(ctx context.Context, rows []model.DimDate) error
	UpsertOrderFacts(ctx context.Context, rows []model.FactOrder) error
	UpsertSpendFacts(ctx context.Context, rows []model.FactSpend) error
	UpsertTrafficFacts(ctx context.Context, rows []model.FactTraffic) error

	// ListCampaigns reads inside the build so surrogate ids of campaigns
	// upserted earlier in the same build are visible.
	ListCampaigns(ctx context.Context) ([]model.DimCampaign, error)
}

// MartStore is the dimensional model. BuildTx runs fn in one transaction:
// either every upsert lands or none does.
type MartStore interface {
	MartReader
	BuildTx(ctx context.Context, fn func(w MartWriter) error) error
}

// CohortStore holds the derived cohort aggregates.
type CohortStore interface {
	// ReplaceCohorts swaps all cohort rows atomically.
	ReplaceCohorts(ctx context.Context, cohorts []model.Cohort) error
	ListCohorts(ctx context.Context) ([]model.Cohort, error)
}

// JobStore tracks pipeline runs.
type JobStore interface {
	CreateRun(ctx context.Context, run *model.JobRun) error
	UpdateRun(ctx context.Context, run *model.JobRun) error
	// GetRun returns ErrNotFound for an unknown id.
	GetRun(ctx context.Context, id string) (*model.JobRun, error)
	ListRuns(ctx context.Context, jobName string, limit int) ([]*model.JobRun, error)
}
