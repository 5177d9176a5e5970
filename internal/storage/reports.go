package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"iuran/internal/core"
	"iuran/internal/ledger"
)

// ListHouseLedgers assembles every house matching the filter together with
// its filtered obligations and month status overrides. Three queries, one
// per table, joined in memory by house id.
func (r *SQLiteRepository) ListHouseLedgers(ctx context.Context, f ledger.ObligationFilter) ([]ledger.HouseLedger, error) {
	houseConds, houseArgs := houseFilterConds(f)

	houseQuery := `SELECT ` + houseColumns + ` FROM houses h` + whereClause(houseConds) + ` ORDER BY house_id`
	rows, err := r.db.QueryContext(ctx, houseQuery, houseArgs...)
	if err != nil {
		return nil, fmt.Errorf("list ledger houses: %w", err)
	}
	defer rows.Close()

	var ledgers []ledger.HouseLedger
	index := make(map[string]int)
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger house: %w", err)
		}
		index[h.HouseID] = len(ledgers)
		ledgers = append(ledgers, ledger.HouseLedger{House: h})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	obConds, obArgs := houseFilterConds(f)
	if f.Period != "" {
		obConds = append(obConds, "o.month = ?")
		obArgs = append(obArgs, string(f.Period))
	}
	if f.Status != "" {
		obConds = append(obConds, "o.status = ?")
		obArgs = append(obArgs, string(f.Status))
	}
	obQuery := `
		SELECT o.house_id, o.month, o.community_amount, o.neighborhood_amount, o.status, o.transaction_id, o.settled_at
		FROM obligations o JOIN houses h ON h.house_id = o.house_id` +
		whereClause(obConds) + ` ORDER BY o.house_id, o.month`

	obRows, err := r.db.QueryContext(ctx, obQuery, obArgs...)
	if err != nil {
		return nil, fmt.Errorf("list ledger obligations: %w", err)
	}
	defer obRows.Close()
	for obRows.Next() {
		var (
			houseID, month, status  string
			community, neighborhood int64
			txID                    sql.NullString
			settledAt               sql.NullInt64
		)
		if err := obRows.Scan(&houseID, &month, &community, &neighborhood, &status, &txID, &settledAt); err != nil {
			return nil, fmt.Errorf("scan ledger obligation: %w", err)
		}
		i, ok := index[houseID]
		if !ok {
			continue
		}
		ob := core.Obligation{
			Month:         core.MonthKey(month),
			Status:        core.ObligationStatus(status),
			Components:    componentsFrom(community, neighborhood),
			TransactionID: txID.String,
		}
		if settledAt.Valid {
			t := time.Unix(0, settledAt.Int64).UTC()
			ob.SettledAt = &t
		}
		ledgers[i].Obligations = append(ledgers[i].Obligations, ob)
	}
	if err := obRows.Err(); err != nil {
		return nil, err
	}

	msRows, err := r.db.QueryContext(ctx, `
		SELECT house_id, month, occupancy, community_fee_due, neighborhood_fee_due
		FROM month_statuses ORDER BY house_id, month`)
	if err != nil {
		return nil, fmt.Errorf("list ledger month statuses: %w", err)
	}
	defer msRows.Close()
	for msRows.Next() {
		var (
			houseID, month, occupancy string
			communityDue, hoodDue     int
		)
		if err := msRows.Scan(&houseID, &month, &occupancy, &communityDue, &hoodDue); err != nil {
			return nil, fmt.Errorf("scan ledger month status: %w", err)
		}
		i, ok := index[houseID]
		if !ok {
			continue
		}
		ledgers[i].MonthStatuses = append(ledgers[i].MonthStatuses, core.MonthStatus{
			Month:              core.MonthKey(month),
			Occupancy:          core.Occupancy(occupancy),
			CommunityFeeDue:    communityDue != 0,
			NeighborhoodFeeDue: hoodDue != 0,
		})
	}
	return ledgers, msRows.Err()
}

func houseFilterConds(f ledger.ObligationFilter) ([]string, []any) {
	var conds []string
	var args []any
	if f.MandatoryOnly {
		conds = append(conds, "h.mandatory_fee = 1")
	}
	if f.Group != "" {
		conds = append(conds, "h.group_name = ?")
		args = append(args, f.Group)
	}
	return conds, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// CountMandatoryHouses is the percentage denominator: every house flagged
// mandatory, regardless of any report filter.
func (r *SQLiteRepository) CountMandatoryHouses(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM houses WHERE mandatory_fee = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count mandatory houses: %w", err)
	}
	return n, nil
}

// MonthlyTotals groups transaction sums per calendar month over the key
// range. The month key is the date column's leading "YYYY-MM", valid
// because dates are stored canonically in UTC. Fund columns are the
// community-fund-tagged subsets.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, from, to core.MonthKey) ([]ledger.PeriodTotals, error) {
	tag := "%" + strings.ToLower(core.FundTag) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS period,
			COALESCE(SUM(CASE WHEN transaction_type IN ('income', 'fee_payment') THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN transaction_type = 'expense' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN transaction_type IN ('income', 'fee_payment') AND lower(description) LIKE ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN transaction_type = 'expense' AND lower(description) LIKE ? THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE date >= ? AND date < ?
		GROUP BY period
		ORDER BY period`,
		tag, tag, formatTime(from.Start()), formatTime(to.End()))
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var totals []ledger.PeriodTotals
	for rows.Next() {
		var (
			period string
			pt     ledger.PeriodTotals
		)
		if err := rows.Scan(&period, &pt.Income, &pt.Expense, &pt.FundIncome, &pt.FundExpense); err != nil {
			return nil, fmt.Errorf("scan monthly totals: %w", err)
		}
		pt.Period = core.MonthKey(period)
		totals = append(totals, pt)
	}
	return totals, rows.Err()
}
