package cohort

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Engine recomputes the cohort table from the marts.
type Engine struct {
	mart       storage.MartReader
	cohorts    storage.CohortStore
	marginRate decimal.Decimal
}

func NewEngine(mart storage.MartReader, cohorts storage.CohortStore, marginRate decimal.Decimal) *Engine {
	if mart == nil || cohorts == nil {
		panic("cohort: stores must not be nil")
	}
	return &Engine{mart: mart, cohorts: cohorts, marginRate: marginRate}
}

// Run loads customers, order facts and spend facts once, computes every
// cohort and replaces the cohort table.
func (e *Engine) Run(ctx context.Context) ([]model.Cohort, error) {
	var (
		customers []model.DimCustomer
		orders    []model.FactOrder
		spend     []model.FactSpend
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		customers, err = e.mart.ListCustomers(gctx)
		return wrap("customers", err)
	})
	g.Go(func() (err error) {
		orders, err = e.mart.ListOrderFacts(gctx)
		return wrap("order facts", err)
	})
	g.Go(func() (err error) {
		spend, err = e.mart.ListSpendFacts(gctx)
		return wrap("spend facts", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cohorts := Compute(customers, orders, spend, e.marginRate)
	if err := e.cohorts.ReplaceCohorts(ctx, cohorts); err != nil {
		return nil, fmt.Errorf("replace cohorts: %w", err)
	}

	slog.Info("[CohortEngine] Cohorts recomputed",
		"cohorts", len(cohorts),
		"customers", len(customers),
		"orders", len(orders))
	return cohorts, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}
