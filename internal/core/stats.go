package core

import (
	"fmt"
	"sort"
	"time"
)

// Aggregations are pure functions over already-fetched record slices. They
// never touch storage and cannot fail: empty input yields zero-valued output.

type (
	// FinancialStats summarizes both collections over a record set.
	FinancialStats struct {
		TotalIncome  float64 `json:"totalIncome"`
		TotalExpense float64 `json:"totalExpense"`
		NetBalance   float64 `json:"netBalance"`
		SavingsRate  float64 `json:"savingsRate"`
		IncomeCount  int     `json:"incomeCount"`
		ExpenseCount int     `json:"expenseCount"`
	}

	// CategoryStats is one per-category bucket of a record set.
	CategoryStats struct {
		Category   string  `json:"category"`
		Amount     float64 `json:"amount"`
		Count      int     `json:"count"`
		Percentage float64 `json:"percentage"`
	}

	// MonthlyStats is one calendar-month bucket of the trend series.
	MonthlyStats struct {
		Month   string  `json:"month"`
		Income  float64 `json:"income"`
		Expense float64 `json:"expense"`
		Net     float64 `json:"net"`
	}
)

// CalculateFinancialStats sums both sides and derives net balance and the
// savings rate. The rate is 0, not NaN, when there is no income.
func CalculateFinancialStats(expenses, incomes []Record) FinancialStats {
	var totalExpense, totalIncome float64
	for _, e := range expenses {
		totalExpense += e.Amount
	}
	for _, i := range incomes {
		totalIncome += i.Amount
	}

	net := totalIncome - totalExpense
	var savingsRate float64
	if totalIncome > 0 {
		savingsRate = net / totalIncome * 100
	}

	return FinancialStats{
		TotalIncome:  totalIncome,
		TotalExpense: totalExpense,
		NetBalance:   net,
		SavingsRate:  savingsRate,
		IncomeCount:  len(incomes),
		ExpenseCount: len(expenses),
	}
}

// CalculateCategoryStats groups records by exact category name, sums amounts
// and counts, and computes each group's share of the set total. Groups are
// ordered by amount descending; equal amounts fall back to category name so
// the output is deterministic.
func CalculateCategoryStats(records []Record) []CategoryStats {
	type bucket struct {
		amount float64
		count  int
	}

	buckets := make(map[string]*bucket)
	var total float64
	for _, r := range records {
		b, ok := buckets[r.Category]
		if !ok {
			b = &bucket{}
			buckets[r.Category] = b
		}
		b.amount += r.Amount
		b.count++
		total += r.Amount
	}

	stats := make([]CategoryStats, 0, len(buckets))
	for category, b := range buckets {
		var pct float64
		if total > 0 {
			pct = b.amount / total * 100
		}
		stats = append(stats, CategoryStats{
			Category:   category,
			Amount:     b.amount,
			Count:      b.count,
			Percentage: pct,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Amount != stats[j].Amount {
			return stats[i].Amount > stats[j].Amount
		}
		return stats[i].Category < stats[j].Category
	})

	return stats
}

// CalculateMonthlyTrends produces exactly months buckets, one per calendar
// month, oldest first, ending at the current month. Months with no records
// yield zero sums rather than being omitted.
func CalculateMonthlyTrends(expenses, incomes []Record, months int) []MonthlyStats {
	return monthlyTrendsAt(time.Now(), expenses, incomes, months)
}

func monthlyTrendsAt(now time.Time, expenses, incomes []Record, months int) []MonthlyStats {
	if months <= 0 {
		return []MonthlyStats{}
	}

	stats := make([]MonthlyStats, 0, months)
	for i := months - 1; i >= 0; i-- {
		target := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location())

		var expenseTotal, incomeTotal float64
		for _, e := range expenses {
			if SameMonth(e.Date, target) {
				expenseTotal += e.Amount
			}
		}
		for _, in := range incomes {
			if SameMonth(in.Date, target) {
				incomeTotal += in.Amount
			}
		}

		stats = append(stats, MonthlyStats{
			Month:   monthLabel(target),
			Income:  incomeTotal,
			Expense: expenseTotal,
			Net:     incomeTotal - expenseTotal,
		})
	}

	return stats
}

// monthLabel renders the Vietnamese short month form, e.g. "Thg 1 2024".
func monthLabel(t time.Time) string {
	return fmt.Sprintf("Thg %d %d", int(t.Month()), t.Year())
}
