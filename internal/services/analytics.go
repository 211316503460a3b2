package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"chitieu/internal/core"
	"chitieu/internal/query"
	"chitieu/internal/storage"
)

// Analytics computes aggregations across both collections. Fetching the two
// sides is independent so it runs concurrently; the aggregation itself is
// pure and happens in core.
type Analytics struct {
	expenses *query.Runner
	incomes  *query.Runner
}

func NewAnalytics(store *storage.Store) *Analytics {
	return &Analytics{
		expenses: query.New(store.Expenses()),
		incomes:  query.New(store.Incomes()),
	}
}

// fetchBoth loads the matching records of both collections in parallel.
func (a *Analytics) fetchBoth(ctx context.Context, f query.Filter) (expenses, incomes []core.Record, err error) {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		expenses, err = a.expenses.All(ctx, f)
		if err != nil {
			return fmt.Errorf("fetch expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		incomes, err = a.incomes.All(ctx, f)
		if err != nil {
			return fmt.Errorf("fetch incomes: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return expenses, incomes, nil
}

// Summary returns totals, net balance and savings rate over the filtered
// window.
func (a *Analytics) Summary(ctx context.Context, f query.Filter) (core.FinancialStats, error) {
	expenses, incomes, err := a.fetchBoth(ctx, f)
	if err != nil {
		return core.FinancialStats{}, err
	}
	return core.CalculateFinancialStats(expenses, incomes), nil
}

// Categories returns the per-category breakdown of one collection.
func (a *Analytics) Categories(ctx context.Context, kind core.Kind, f query.Filter) ([]core.CategoryStats, error) {
	var runner *query.Runner
	switch kind {
	case core.KindExpense:
		runner = a.expenses
	case core.KindIncome:
		runner = a.incomes
	default:
		return nil, core.ErrInvalidKind
	}

	records, err := runner.All(ctx, f)
	if err != nil {
		return nil, err
	}
	return core.CalculateCategoryStats(records), nil
}

// Trends returns the month-by-month series for the trailing months window.
// The fetch is unfiltered; the bucketing in core decides which records land
// in which month.
func (a *Analytics) Trends(ctx context.Context, months int) ([]core.MonthlyStats, error) {
	expenses, incomes, err := a.fetchBoth(ctx, query.Filter{})
	if err != nil {
		return nil, err
	}
	return core.CalculateMonthlyTrends(expenses, incomes, months), nil
}
