// Package ledger implements the billing ledger: provisioning of monthly
// obligations, reconciliation of fee payments against them, and the
// read-only aggregation reports. Storage is consumed through the narrow
// interfaces below; the SQLite repository in internal/storage implements
// all of them.
package ledger

import (
	"context"
	"time"

	"iuran/internal/core"
)

// HouseStore resolves houses by business key.
type HouseStore interface {
	GetHouse(ctx context.Context, houseID string) (*core.House, error)
	ListHouses(ctx context.Context) ([]core.House, error)
}

// ObligationStore mutates the per-month obligation ledger. All three
// writes are single-row atomic operations; none of them read-modify-write
// a house document, which is what keeps concurrent appliers from losing
// updates.
type ObligationStore interface {
	// ProvisionObligation inserts the obligation if no row exists for
	// (houseID, month) and reports whether it created one. Existing rows
	// are never touched.
	ProvisionObligation(ctx context.Context, houseID string, ob core.Obligation) (bool, error)

	// SettleObligation links a month to a transaction, creating the
	// obligation inline when the month was never provisioned. When a row
	// exists its component amounts are preserved and only the settlement
	// fields change, and only if ob.SettledAt is not older than the
	// current settlement (newer transaction wins deterministically).
	SettleObligation(ctx context.Context, houseID string, ob core.Obligation) error

	// ReleaseObligation resets the month to unpaid only when it still
	// points at transactionID, and reports whether it did. A month
	// re-settled by a different transaction is left untouched.
	ReleaseObligation(ctx context.Context, houseID string, month core.MonthKey, transactionID string) (bool, error)
}

// TransactionStore persists standalone transaction records.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx core.Transaction) error
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

// ObligationFilter narrows the house ledgers an aggregation reads. Zero
// values mean "no filter"; MandatoryOnly restricts to houses with the
// mandatory-fee flag set.
type ObligationFilter struct {
	Period        core.MonthKey
	Status        core.ObligationStatus
	Group         string
	MandatoryOnly bool
}

// HouseLedger is one house with its (possibly filtered) obligations,
// ordered by month, plus its per-month status overrides.
type HouseLedger struct {
	House         core.House
	Obligations   []core.Obligation
	MonthStatuses []core.MonthStatus
}

// PeriodTotals are the grouped transaction sums for one month. Income
// counts income and fee-payment types; Fund* are the community-fund-tagged
// subsets of each column.
type PeriodTotals struct {
	Period      core.MonthKey
	Income      int64
	Expense     int64
	FundIncome  int64
	FundExpense int64
}

// AggregationStore serves the read-only report queries.
type AggregationStore interface {
	// ListHouseLedgers returns houses matching the filter, sorted by
	// house id ascending, each carrying only the obligations the filter
	// matches.
	ListHouseLedgers(ctx context.Context, f ObligationFilter) ([]HouseLedger, error)

	// CountMandatoryHouses is the unfiltered mandatory-fee population,
	// used as the percentage denominator.
	CountMandatoryHouses(ctx context.Context) (int, error)

	// MonthlyTotals groups transaction sums per month over the inclusive
	// key range, using [monthStart, nextMonthStart) UTC windows. Months
	// with no transactions are absent from the result.
	MonthlyTotals(ctx context.Context, from, to core.MonthKey) ([]PeriodTotals, error)

	// ListTransactionsBetween returns transactions with from <= date < to.
	ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]core.Transaction, error)
}

// EventPublisher pushes payment events onto the notification stream.
// Publishing is best effort; reconciler operations never fail because of
// it.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, kind, transactionID string) error
}

// Payment event kinds.
const (
	EventPaymentApplied  = "payment_applied"
	EventPaymentReversed = "payment_reversed"
)
