package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"iuran/internal/core"
)

// Aggregator computes the read-only financial summaries. It never mutates
// state; a failed read aborts the whole request rather than returning a
// partial aggregate.
type Aggregator struct {
	store AggregationStore
	now   func() time.Time
}

// FeeSummary is the cross-house collection overview for an optional
// period/status/group filter.
type FeeSummary struct {
	Houses []HouseLedger

	TotalUnits  int
	TotalPaid   core.Money
	TotalUnpaid core.Money
	TotalTBD    core.Money

	// HousesPaid counts houses with at least one fully paid month;
	// HousesSettled additionally counts houses whose months are merely
	// past Unpaid (partially paid, TBD). The percentage uses HousesPaid
	// over the unfiltered mandatory population.
	HousesPaid     int
	HousesSettled  int
	HousesUnpaid   int
	HousesTBD      int
	PercentagePaid float64
}

// OutstandingHouse lists a house's unpaid months and their summed fee.
type OutstandingHouse struct {
	HouseID      string
	ResidentName string
	Periods      []core.MonthKey
	TotalFee     core.Money
}

// BalanceRow is one month of the running-balance fold.
type BalanceRow struct {
	Month          core.MonthKey
	OpeningBalance int64
	Income         int64
	Expense        int64
	ClosingBalance int64
}

// TypeBreakdown holds a period's most recent transactions of one type and
// the type's full total for the period.
type TypeBreakdown struct {
	Transactions []core.Transaction
	Total        core.Money
}

// MonthlyReport is the periodic financial report for one target month.
// Raw* totals include community-fund transactions; Reported* exclude them,
// as does the balance row.
type MonthlyReport struct {
	Period          core.MonthKey
	Row             BalanceRow
	RawIncome       int64
	RawExpense      int64
	RawBalance      int64
	ReportedIncome  int64
	ReportedExpense int64
	ReportedBalance int64
	Income          TypeBreakdown
	Expense         TypeBreakdown
	FeePayments     TypeBreakdown
}

const recentTransactionsPerType = 5

func NewAggregator(store AggregationStore) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// FeeSummary aggregates obligations over mandatory-fee houses matching the
// filter. The paid percentage is computed against the unfiltered
// mandatory-fee population so the denominator always reflects the whole
// community.
func (a *Aggregator) FeeSummary(ctx context.Context, f ObligationFilter) (*FeeSummary, error) {
	f.MandatoryOnly = true
	houses, err := a.store.ListHouseLedgers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list house ledgers: %w", err)
	}
	totalUnits, err := a.store.CountMandatoryHouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("count mandatory houses: %w", err)
	}

	s := &FeeSummary{Houses: houses, TotalUnits: totalUnits}
	for _, hl := range houses {
		var hasPaid, hasUnpaid, hasTBD, hasSettled bool
		for _, ob := range hl.Obligations {
			amount := ob.Amount().Rupiah
			switch ob.Status {
			case core.ObligationPaid:
				s.TotalPaid.Rupiah += amount
				hasPaid = true
			case core.ObligationTBD:
				s.TotalTBD.Rupiah += amount
				s.TotalUnpaid.Rupiah += amount
				hasTBD = true
			default:
				s.TotalUnpaid.Rupiah += amount
			}
			if ob.Status == core.ObligationUnpaid {
				hasUnpaid = true
			} else {
				hasSettled = true
			}
		}
		if hasPaid {
			s.HousesPaid++
		}
		if hasSettled {
			s.HousesSettled++
		}
		if hasUnpaid {
			s.HousesUnpaid++
		}
		if hasTBD {
			s.HousesTBD++
		}
	}

	if totalUnits > 0 {
		s.PercentagePaid = decimal.NewFromInt(int64(s.HousesPaid)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(totalUnits))).
			Round(2).
			InexactFloat64()
	}
	return s, nil
}

// Outstanding reports, per mandatory-fee house, every month from the
// program epoch through the current month that is still exactly unpaid.
// Houses using the per-month status model only owe months marked occupied
// with the community fee due; houses without per-month entries owe by
// their house-level flag. Houses with nothing outstanding are omitted.
func (a *Aggregator) Outstanding(ctx context.Context) ([]OutstandingHouse, error) {
	houses, err := a.store.ListHouseLedgers(ctx, ObligationFilter{MandatoryOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list house ledgers: %w", err)
	}
	current := core.MonthOf(a.now())

	var out []OutstandingHouse
	for _, hl := range houses {
		statuses := monthStatusIndex(hl.MonthStatuses)
		row := OutstandingHouse{HouseID: hl.House.HouseID, ResidentName: hl.House.ResidentName}
		for _, ob := range hl.Obligations {
			if ob.Status != core.ObligationUnpaid {
				continue
			}
			if ob.Month.Before(core.ProgramEpoch) || ob.Month.After(current) {
				continue
			}
			if !monthOwed(statuses, ob.Month) {
				continue
			}
			row.Periods = append(row.Periods, ob.Month)
			row.TotalFee.Rupiah += ob.Amount().Rupiah
		}
		if len(row.Periods) == 0 {
			continue
		}
		sort.Slice(row.Periods, func(i, j int) bool { return row.Periods[i].Before(row.Periods[j]) })
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HouseID < out[j].HouseID })
	return out, nil
}

// HouseLedgers returns every house's obligations and status entries
// between the program epoch and the current month, restricted to months
// the house actually owed. This is the listing the collection dashboard
// renders.
func (a *Aggregator) HouseLedgers(ctx context.Context) ([]HouseLedger, error) {
	houses, err := a.store.ListHouseLedgers(ctx, ObligationFilter{})
	if err != nil {
		return nil, fmt.Errorf("list house ledgers: %w", err)
	}
	current := core.MonthOf(a.now())

	out := make([]HouseLedger, 0, len(houses))
	for _, hl := range houses {
		statuses := monthStatusIndex(hl.MonthStatuses)
		filtered := HouseLedger{House: hl.House}
		for _, ob := range hl.Obligations {
			if ob.Month.Before(core.ProgramEpoch) || ob.Month.After(current) {
				continue
			}
			if !monthOwed(statuses, ob.Month) {
				continue
			}
			filtered.Obligations = append(filtered.Obligations, ob)
		}
		for _, ms := range hl.MonthStatuses {
			if ms.Month.Before(core.ProgramEpoch) || ms.Month.After(current) {
				continue
			}
			if ms.Occupancy == core.OccupancyOccupied {
				filtered.MonthStatuses = append(filtered.MonthStatuses, ms)
			}
		}
		out = append(out, filtered)
	}
	return out, nil
}

// MonthlyReport folds income and expense month by month from the program
// epoch through the target period. Every intervening month is folded; the
// opening balance of a month is the prior month's closing balance, and the
// epoch month opens at zero. Community-fund transactions are excluded from
// the fold and the reported totals but kept in the raw totals.
func (a *Aggregator) MonthlyReport(ctx context.Context, period core.MonthKey) (*MonthlyReport, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if period.Before(core.ProgramEpoch) {
		return nil, fmt.Errorf("%w: period %s predates the program epoch %s", core.ErrInvalidInput, period, core.ProgramEpoch)
	}

	totals, err := a.store.MonthlyTotals(ctx, core.ProgramEpoch, period)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	byMonth := make(map[core.MonthKey]PeriodTotals, len(totals))
	for _, t := range totals {
		byMonth[t.Period] = t
	}

	report := &MonthlyReport{Period: period}
	months, err := core.MonthRange(core.ProgramEpoch, period)
	if err != nil {
		return nil, err
	}
	var opening int64
	for _, m := range months {
		t := byMonth[m]
		income := t.Income - t.FundIncome
		expense := t.Expense - t.FundExpense
		closing := opening + income - expense

		report.RawIncome += t.Income
		report.RawExpense += t.Expense
		report.ReportedIncome += income
		report.ReportedExpense += expense

		if m == period {
			report.Row = BalanceRow{
				Month:          m,
				OpeningBalance: opening,
				Income:         income,
				Expense:        expense,
				ClosingBalance: closing,
			}
		}
		opening = closing
	}
	report.RawBalance = report.RawIncome - report.RawExpense
	report.ReportedBalance = report.ReportedIncome - report.ReportedExpense

	if err := a.fillRecent(ctx, period, report); err != nil {
		return nil, err
	}
	return report, nil
}

// fillRecent attaches the period's five most recent transactions per type
// with per-type totals, excluding community-fund entries.
func (a *Aggregator) fillRecent(ctx context.Context, period core.MonthKey, report *MonthlyReport) error {
	txs, err := a.store.ListTransactionsBetween(ctx, period.Start(), period.End())
	if err != nil {
		return fmt.Errorf("list period transactions: %w", err)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })

	for _, tx := range txs {
		if tx.FundTagged() {
			continue
		}
		var bd *TypeBreakdown
		switch tx.Type {
		case core.TypeIncome:
			bd = &report.Income
		case core.TypeExpense:
			bd = &report.Expense
		case core.TypeFeePayment:
			bd = &report.FeePayments
		default:
			continue
		}
		bd.Total.Rupiah += tx.Amount.Rupiah
		if len(bd.Transactions) < recentTransactionsPerType {
			bd.Transactions = append(bd.Transactions, tx)
		}
	}
	return nil
}

func monthStatusIndex(statuses []core.MonthStatus) map[core.MonthKey]core.MonthStatus {
	if len(statuses) == 0 {
		return nil
	}
	idx := make(map[core.MonthKey]core.MonthStatus, len(statuses))
	for _, ms := range statuses {
		idx[ms.Month] = ms
	}
	return idx
}

// monthOwed decides whether a month counts toward a house's ledger. A nil
// index means the house predates the per-month model and owes by its
// house-level flag; otherwise the month needs an occupied entry with the
// community fee due.
func monthOwed(statuses map[core.MonthKey]core.MonthStatus, month core.MonthKey) bool {
	if statuses == nil {
		return true
	}
	ms, ok := statuses[month]
	return ok && ms.Occupancy == core.OccupancyOccupied && ms.CommunityFeeDue
}
