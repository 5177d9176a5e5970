package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"iuran/internal/core"
)

const transactionColumns = `id, house_id, transaction_type, payment_type, amount,
	description, proof_url, date, created_at, status, related_months, created_by`

func encodeMonths(months []core.MonthKey) (string, error) {
	if len(months) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(months)
	if err != nil {
		return "", fmt.Errorf("encode related months: %w", err)
	}
	return string(b), nil
}

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                        core.Transaction
		txType, payType, status  string
		date, createdAt, months  string
	)
	err := row.Scan(&t.ID, &t.HouseID, &txType, &payType, &t.Amount.Rupiah,
		&t.Description, &t.ProofURL, &date, &createdAt, &status, &months, &t.CreatedBy)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(txType)
	t.PaymentType = core.PaymentType(payType)
	t.Status = core.TransactionStatus(status)
	if t.Date, err = parseTime(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(months), &t.RelatedMonths); err != nil {
		return core.Transaction{}, fmt.Errorf("decode related months: %w", err)
	}
	if len(t.RelatedMonths) == 0 {
		t.RelatedMonths = nil
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	months, err := encodeMonths(tx.RelatedMonths)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, house_id, transaction_type, payment_type, amount,
			description, proof_url, date, created_at, status, related_months, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.HouseID, string(tx.Type), string(tx.PaymentType), tx.Amount.Rupiah,
		tx.Description, tx.ProofURL, formatTime(tx.Date), formatTime(tx.CreatedAt),
		string(tx.Status), months, tx.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return &t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	months, err := encodeMonths(tx.RelatedMonths)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET house_id = ?, transaction_type = ?, payment_type = ?,
			amount = ?, description = ?, proof_url = ?, date = ?, status = ?,
			related_months = ?, created_by = ?
		WHERE id = ?`,
		tx.HouseID, string(tx.Type), string(tx.PaymentType), tx.Amount.Rupiah,
		tx.Description, tx.ProofURL, formatTime(tx.Date), string(tx.Status),
		months, tx.CreatedBy, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// ListTransactions returns every transaction newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListTransactionsBetween returns transactions with from <= date < to,
// oldest first. The bounds are compared as stored RFC3339 strings.
func (r *SQLiteRepository) ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE date >= ? AND date < ? ORDER BY date, id`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("list transactions between: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
