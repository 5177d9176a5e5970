// Package worker turns payment events from the queue into resident
// notifications.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"iuran/internal/amqp"
	"iuran/internal/core"
	"iuran/internal/ledger"
)

// TransactionGetter and HouseGetter are the two slices of storage the
// worker reads from.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
}

type HouseGetter interface {
	GetHouse(ctx context.Context, houseID string) (*core.House, error)
}

// Notifier delivers one message to a resident's number.
type Notifier interface {
	Send(ctx context.Context, number, message string) error
}

type NotifyWorker struct {
	txs      TransactionGetter
	houses   HouseGetter
	notifier Notifier
}

func NewNotifyWorker(txs TransactionGetter, houses HouseGetter, notifier Notifier) *NotifyWorker {
	return &NotifyWorker{txs: txs, houses: houses, notifier: notifier}
}

// HandlePaymentEvent processes one queue message. Reversal events for
// already-deleted transactions are acknowledged without a notification;
// everything else that fails is returned so the delivery is redelivered.
func (w *NotifyWorker) HandlePaymentEvent(ctx context.Context, msg *amqp.PaymentEventMessage) error {
	slog.InfoContext(ctx, "processing payment event",
		"kind", msg.Kind,
		"transaction_id", msg.TransactionID)

	tx, err := w.txs.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		if msg.Kind == ledger.EventPaymentReversed && errors.Is(err, core.ErrNotFound) {
			slog.InfoContext(ctx, "reversed transaction already deleted, nothing to send",
				"transaction_id", msg.TransactionID)
			return nil
		}
		return fmt.Errorf("load transaction %s: %w", msg.TransactionID, err)
	}

	if tx.HouseID == "" {
		slog.InfoContext(ctx, "transaction has no house, skipping notification",
			"transaction_id", tx.ID)
		return nil
	}

	house, err := w.houses.GetHouse(ctx, tx.HouseID)
	if err != nil {
		return fmt.Errorf("load house %s: %w", tx.HouseID, err)
	}
	if house.WhatsAppNumber == "" {
		slog.WarnContext(ctx, "house has no contact number, skipping notification",
			"house_id", house.HouseID,
			"transaction_id", tx.ID)
		return nil
	}

	message := composeMessage(msg.Kind, house, tx)
	if err := w.notifier.Send(ctx, house.WhatsAppNumber, message); err != nil {
		return fmt.Errorf("send notification for %s: %w", tx.ID, err)
	}

	slog.InfoContext(ctx, "notification sent",
		"house_id", house.HouseID,
		"transaction_id", tx.ID,
		"kind", msg.Kind)
	return nil
}

func composeMessage(kind string, house *core.House, tx *core.Transaction) string {
	months := make([]string, len(tx.RelatedMonths))
	for i, m := range tx.RelatedMonths {
		months[i] = string(m)
	}

	var b strings.Builder
	switch kind {
	case ledger.EventPaymentReversed:
		fmt.Fprintf(&b, "Pembayaran iuran untuk rumah %s telah dibatalkan.", house.HouseID)
	default:
		fmt.Fprintf(&b, "Terima kasih! Pembayaran iuran rumah %s sebesar %s telah diterima.",
			house.HouseID, FormatRupiah(tx.Amount.Rupiah))
	}
	if len(months) > 0 {
		fmt.Fprintf(&b, " Bulan: %s.", strings.Join(months, ", "))
	}
	return b.String()
}

// FormatRupiah renders a whole-rupiah amount with thousand separators,
// e.g. 140000 becomes "Rp140.000".
func FormatRupiah(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("Rp")
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte('.')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte('.')
		}
	}
	return b.String()
}
