package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"iuran/internal/core"
)

func componentAmounts(ob core.Obligation) (community, neighborhood int64) {
	for _, c := range ob.Components {
		switch c.Name {
		case core.ComponentCommunity:
			community += c.Amount.Rupiah
		case core.ComponentNeighborhood:
			neighborhood += c.Amount.Rupiah
		}
	}
	return community, neighborhood
}

func componentsFrom(community, neighborhood int64) []core.FeeComponent {
	cs := []core.FeeComponent{{Name: core.ComponentCommunity, Amount: core.Money{Rupiah: community}}}
	if neighborhood > 0 {
		cs = append(cs, core.FeeComponent{Name: core.ComponentNeighborhood, Amount: core.Money{Rupiah: neighborhood}})
	}
	return cs
}

func settledAtValue(ob core.Obligation) any {
	if ob.SettledAt == nil {
		return nil
	}
	return ob.SettledAt.UTC().UnixNano()
}

// ProvisionObligation inserts the month's row if absent and reports whether
// it created one. Existing rows, settled or not, are never modified.
func (r *SQLiteRepository) ProvisionObligation(ctx context.Context, houseID string, ob core.Obligation) (bool, error) {
	community, neighborhood := componentAmounts(ob)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO obligations (house_id, month, community_amount, neighborhood_amount, status, transaction_id, settled_at, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, NULL, ?)
		ON CONFLICT (house_id, month) DO NOTHING`,
		houseID, string(ob.Month), community, neighborhood, string(ob.Status), formatTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("provision %s/%s: %w", houseID, ob.Month, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("provision %s/%s: %w", houseID, ob.Month, err)
	}
	return n > 0, nil
}

// SettleObligation links the month to ob.TransactionID in one statement.
// When the row already exists its amounts are kept and only the settlement
// fields change, guarded so an older settlement never overwrites a newer
// one. Competing same-month settlements therefore resolve to the latest
// SettledAt no matter the arrival order.
func (r *SQLiteRepository) SettleObligation(ctx context.Context, houseID string, ob core.Obligation) error {
	community, neighborhood := componentAmounts(ob)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO obligations (house_id, month, community_amount, neighborhood_amount, status, transaction_id, settled_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (house_id, month) DO UPDATE SET
			status = excluded.status,
			transaction_id = excluded.transaction_id,
			settled_at = excluded.settled_at
		WHERE excluded.settled_at >= COALESCE(obligations.settled_at, 0)`,
		houseID, string(ob.Month), community, neighborhood, string(ob.Status),
		ob.TransactionID, settledAtValue(ob), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("settle %s/%s: %w", houseID, ob.Month, err)
	}
	return nil
}

// ReleaseObligation reverts the month to unpaid only while it still points
// at transactionID. The conditional update makes reversal of a re-settled
// month a no-op rather than a clobber.
func (r *SQLiteRepository) ReleaseObligation(ctx context.Context, houseID string, month core.MonthKey, transactionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE obligations SET status = ?, transaction_id = NULL, settled_at = NULL
		WHERE house_id = ? AND month = ? AND transaction_id = ?`,
		string(core.ObligationUnpaid), houseID, string(month), transactionID)
	if err != nil {
		return false, fmt.Errorf("release %s/%s: %w", houseID, month, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release %s/%s: %w", houseID, month, err)
	}
	return n > 0, nil
}

const obligationColumns = `month, community_amount, neighborhood_amount, status, transaction_id, settled_at`

func scanObligation(row interface{ Scan(...any) error }, dst *core.Obligation) error {
	var (
		month, status          string
		community, neighborhood int64
		txID                   sql.NullString
		settledAt              sql.NullInt64
	)
	if err := row.Scan(&month, &community, &neighborhood, &status, &txID, &settledAt); err != nil {
		return err
	}
	dst.Month = core.MonthKey(month)
	dst.Status = core.ObligationStatus(status)
	dst.Components = componentsFrom(community, neighborhood)
	dst.TransactionID = txID.String
	if settledAt.Valid {
		t := time.Unix(0, settledAt.Int64).UTC()
		dst.SettledAt = &t
	}
	return nil
}

// ListObligations returns every obligation of one house ordered by month.
func (r *SQLiteRepository) ListObligations(ctx context.Context, houseID string) ([]core.Obligation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE house_id = ? ORDER BY month`, houseID)
	if err != nil {
		return nil, fmt.Errorf("list obligations for %s: %w", houseID, err)
	}
	defer rows.Close()

	var obs []core.Obligation
	for rows.Next() {
		var ob core.Obligation
		if err := scanObligation(rows, &ob); err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		obs = append(obs, ob)
	}
	return obs, rows.Err()
}
