package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"iuran/internal/core"
)

// Reconciler owns the state transitions linking transactions to monthly
// obligations. Fee payments settle their related months on create, release
// them on delete, and do both on edit. Income and expense transactions
// never touch obligations.
type Reconciler struct {
	houses      HouseStore
	txs         TransactionStore
	obligations ObligationStore
	events      EventPublisher
	now         func() time.Time
}

// TransactionInput carries the caller-supplied fields of a transaction.
// CreatedBy must come from the authenticated actor, never from the request
// body.
type TransactionInput struct {
	HouseID       string
	Type          core.TransactionType
	PaymentType   core.PaymentType
	Amount        core.Money
	Description   string
	ProofURL      string
	Date          time.Time
	Status        core.TransactionStatus
	RelatedMonths []core.MonthKey
	CreatedBy     string
}

func NewReconciler(houses HouseStore, txs TransactionStore, obligations ObligationStore, events EventPublisher) *Reconciler {
	return &Reconciler{
		houses:      houses,
		txs:         txs,
		obligations: obligations,
		events:      events,
		now:         time.Now,
	}
}

// CreateTransaction persists a new transaction and, for fee payments,
// settles every related month on the referenced house. The transaction is
// persisted before the house side so its identity exists before being
// linked; a failure between the two surfaces core.ErrPartialCommit, after
// which re-applying is safe and re-creating is not.
func (r *Reconciler) CreateTransaction(ctx context.Context, in TransactionInput) (*core.Transaction, error) {
	tx := core.Transaction{
		ID:            uuid.NewString(),
		HouseID:       in.HouseID,
		Type:          in.Type,
		PaymentType:   in.PaymentType,
		Amount:        in.Amount,
		Description:   in.Description,
		ProofURL:      in.ProofURL,
		Date:          in.Date,
		CreatedAt:     r.now().UTC(),
		Status:        in.Status,
		RelatedMonths: in.RelatedMonths,
		CreatedBy:     in.CreatedBy,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	var house *core.House
	if tx.Type == core.TypeFeePayment {
		var err error
		house, err = r.houses.GetHouse(ctx, tx.HouseID)
		if err != nil {
			return nil, fmt.Errorf("resolve house %q: %w", tx.HouseID, err)
		}
	}

	if err := r.txs.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("persist transaction: %w", err)
	}

	if tx.Type == core.TypeFeePayment {
		if err := r.applyMonths(ctx, house, tx); err != nil {
			return nil, err
		}
		r.publish(ctx, EventPaymentApplied, tx.ID)
		slog.InfoContext(ctx, "Fee payment applied",
			"transaction_id", tx.ID,
			"house_id", tx.HouseID,
			"months", tx.RelatedMonths,
			"amount", tx.Amount.Rupiah)
	}
	return &tx, nil
}

// UpdateTransaction edits a transaction as Reverse(old months) followed by
// Apply(new months). The reversal is conditional per month, so re-running
// the whole operation after a partial failure converges instead of
// corrupting state.
func (r *Reconciler) UpdateTransaction(ctx context.Context, id string, in TransactionInput) (*core.Transaction, error) {
	old, err := r.txs.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load transaction %q: %w", id, err)
	}

	updated := core.Transaction{
		ID:            old.ID,
		HouseID:       in.HouseID,
		Type:          in.Type,
		PaymentType:   in.PaymentType,
		Amount:        in.Amount,
		Description:   in.Description,
		ProofURL:      in.ProofURL,
		Date:          in.Date,
		CreatedAt:     old.CreatedAt,
		Status:        in.Status,
		RelatedMonths: in.RelatedMonths,
		CreatedBy:     old.CreatedBy,
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	var house *core.House
	if updated.Type == core.TypeFeePayment {
		house, err = r.houses.GetHouse(ctx, updated.HouseID)
		if err != nil {
			return nil, fmt.Errorf("resolve house %q: %w", updated.HouseID, err)
		}
	}

	if old.Type == core.TypeFeePayment {
		if err := r.reverseMonths(ctx, old); err != nil {
			return nil, err
		}
	}

	if err := r.txs.UpdateTransaction(ctx, updated); err != nil {
		return nil, fmt.Errorf("persist transaction update: %w", err)
	}

	if updated.Type == core.TypeFeePayment {
		if err := r.applyMonths(ctx, house, updated); err != nil {
			return nil, err
		}
		r.publish(ctx, EventPaymentApplied, updated.ID)
	}
	return &updated, nil
}

// DeleteTransaction reverses any settlements the transaction holds and
// only then removes the record, so an obligation is never left pointing at
// a transaction that no longer exists.
func (r *Reconciler) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := r.txs.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("load transaction %q: %w", id, err)
	}

	if tx.Type == core.TypeFeePayment {
		if err := r.reverseMonths(ctx, tx); err != nil {
			return err
		}
	}

	if err := r.txs.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	if tx.Type == core.TypeFeePayment {
		r.publish(ctx, EventPaymentReversed, id)
		slog.InfoContext(ctx, "Fee payment reversed",
			"transaction_id", id,
			"house_id", tx.HouseID,
			"months", tx.RelatedMonths)
	}
	return nil
}

// applyMonths settles each related month. Settling is an upsert: a month
// already provisioned keeps its snapshotted amounts and gains the
// settlement link, an unprovisioned month is created from the house's
// current rates. A month already settled by another transaction is
// overwritten on purpose; a house owes one settlement per month and the
// newer settle time wins.
func (r *Reconciler) applyMonths(ctx context.Context, house *core.House, tx core.Transaction) error {
	settledAt := r.now().UTC()
	components := house.MonthlyComponents()
	for _, month := range tx.RelatedMonths {
		ob := core.Obligation{
			Month:         month,
			Status:        core.ObligationPaid,
			Components:    components,
			TransactionID: tx.ID,
			SettledAt:     &settledAt,
		}
		if err := r.obligations.SettleObligation(ctx, house.HouseID, ob); err != nil {
			// The transaction record exists; only the house-side link
			// failed. Distinct error so callers retry the settle rather
			// than re-create the payment.
			slog.ErrorContext(ctx, "Settle failed after transaction persisted",
				"transaction_id", tx.ID,
				"house_id", house.HouseID,
				"month", month,
				"error", err)
			return fmt.Errorf("%w: settle %s for house %s: %w", core.ErrPartialCommit, month, house.HouseID, err)
		}
	}
	return nil
}

// reverseMonths resets every month the transaction settled, skipping any
// month that has since been re-settled by a different transaction.
func (r *Reconciler) reverseMonths(ctx context.Context, tx *core.Transaction) error {
	for _, month := range tx.RelatedMonths {
		released, err := r.obligations.ReleaseObligation(ctx, tx.HouseID, month, tx.ID)
		if err != nil {
			return fmt.Errorf("release %s for house %s: %w", month, tx.HouseID, err)
		}
		if !released {
			slog.InfoContext(ctx, "Obligation re-settled elsewhere, left untouched",
				"transaction_id", tx.ID,
				"house_id", tx.HouseID,
				"month", month)
		}
	}
	return nil
}

func (r *Reconciler) publish(ctx context.Context, kind, transactionID string) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishPaymentEvent(ctx, kind, transactionID); err != nil {
		// Best effort: the ledger write already succeeded.
		slog.ErrorContext(ctx, "Failed to publish payment event",
			"kind", kind,
			"transaction_id", transactionID,
			"error", err)
	}
}
