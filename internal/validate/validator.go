package validate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
	"golang.org/x/sync/errgroup"
)

// Snapshot is everything the checks look at, read once per run.
type Snapshot struct {
	Channels  []model.DimChannel
	Campaigns []model.DimCampaign
	Customers []model.DimCustomer
	Dates     []model.DimDate
	Orders    []model.FactOrder
	Spend     []model.FactSpend
	Traffic   []model.FactTraffic
	Cohorts   []model.Cohort
}

// Check is one named structural assertion over the marts.
type Check struct {
	Name string
	Eval func(s *Snapshot) (passed bool, message string)
}

// Checks lists every check in reporting order.
var Checks = []Check{
	{"no_negative_spend", noNegativeSpend},
	{"revenue_net_le_gross", revenueNetLeGross},
	{"date_dimension_continuous", dateDimensionContinuous},
	{"channel_references_resolve", channelReferencesResolve},
	{"campaign_references_resolve", campaignReferencesResolve},
	{"customer_references_resolve", customerReferencesResolve},
	{"fact_orders_non_empty", nonEmpty("fact_orders", func(s *Snapshot) int { return len(s.Orders) })},
	{"fact_spend_non_empty", nonEmpty("fact_spend", func(s *Snapshot) int { return len(s.Spend) })},
	{"fact_traffic_non_empty", nonEmpty("fact_traffic", func(s *Snapshot) int { return len(s.Traffic) })},
	{"unique_natural_keys", uniqueNaturalKeys},
	{"cohort_bounds", cohortBounds},
}

// Validator runs read-only checks over the marts and the cohort table.
type Validator struct {
	mart    storage.MartReader
	cohorts storage.CohortStore
}

func NewValidator(mart storage.MartReader, cohorts storage.CohortStore) *Validator {
	if mart == nil || cohorts == nil {
		panic("validate: stores must not be nil")
	}
	return &Validator{mart: mart, cohorts: cohorts}
}

// Run evaluates every check. A failed check is reported in the results, not
// as an error; the error is reserved for failing to read the marts.
func (v *Validator) Run(ctx context.Context) ([]model.CheckResult, error) {
	snap, err := v.load(ctx)
	if err != nil {
		return nil, err
	}

	results := Evaluate(snap)
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
			slog.Warn("[Validator] Check failed", "check", r.Check, "message", r.Message)
		}
	}
	slog.Info("[Validator] Checks complete", "checks", len(results), "failed", failed)
	return results, nil
}

// Evaluate runs every check against snap.
func Evaluate(snap *Snapshot) []model.CheckResult {
	results := make([]model.CheckResult, 0, len(Checks))
	for _, c := range Checks {
		passed, msg := c.Eval(snap)
		results = append(results, model.CheckResult{Check: c.Name, Passed: passed, Message: msg})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []model.CheckResult) []model.CheckResult {
	var out []model.CheckResult
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func (v *Validator) load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Channels, err = v.mart.ListChannels(gctx)
		return wrap("channels", err)
	})
	g.Go(func() (err error) {
		snap.Campaigns, err = v.mart.ListCampaigns(gctx)
		return wrap("campaigns", err)
	})
	g.Go(func() (err error) {
		snap.Customers, err = v.mart.ListCustomers(gctx)
		return wrap("customers", err)
	})
	g.Go(func() (err error) {
		snap.Dates, err = v.mart.ListDates(gctx)
		return wrap("dates", err)
	})
	g.Go(func() (err error) {
		snap.Orders, err = v.mart.ListOrderFacts(gctx)
		return wrap("order facts", err)
	})
	g.Go(func() (err error) {
		snap.Spend, err = v.mart.ListSpendFacts(gctx)
		return wrap("spend facts", err)
	})
	g.Go(func() (err error) {
		snap.Traffic, err = v.mart.ListTrafficFacts(gctx)
		return wrap("traffic facts", err)
	})
	g.Go(func() (err error) {
		snap.Cohorts, err = v.cohorts.ListCohorts(gctx)
		return wrap("cohorts", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}
