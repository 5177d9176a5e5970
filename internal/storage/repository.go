package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"iuran/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is how every timestamp column is stored: RFC3339 seconds in
// UTC, which keeps lexicographic and chronological order identical so
// range scans on the date column work as string comparisons.
const timeLayout = time.RFC3339

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// modernc.org/sqlite serializes writers; a single connection plus a
	// busy timeout avoids SQLITE_BUSY under concurrent provisioning.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateHouse inserts a new house with version 1.
func (r *SQLiteRepository) CreateHouse(ctx context.Context, h core.House) error {
	now := formatTime(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO houses (house_id, resident_name, whatsapp_number, occupancy_status,
			mandatory_fee, group_name, community_fee, neighborhood_fee, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		h.HouseID, h.ResidentName, h.WhatsAppNumber, string(h.OccupancyStatus),
		boolToInt(h.MandatoryFee), h.Group, h.CommunityFee.Rupiah, h.NeighborhoodFee.Rupiah,
		now, now)
	if err != nil {
		return fmt.Errorf("insert house %s: %w", h.HouseID, err)
	}
	return nil
}

const houseColumns = `house_id, resident_name, whatsapp_number, occupancy_status,
	mandatory_fee, group_name, community_fee, neighborhood_fee, version, created_at, updated_at`

func scanHouse(row interface{ Scan(...any) error }) (core.House, error) {
	var (
		h                    core.House
		occupancy            string
		mandatory            int
		createdAt, updatedAt string
	)
	err := row.Scan(&h.HouseID, &h.ResidentName, &h.WhatsAppNumber, &occupancy,
		&mandatory, &h.Group, &h.CommunityFee.Rupiah, &h.NeighborhoodFee.Rupiah,
		&h.Version, &createdAt, &updatedAt)
	if err != nil {
		return core.House{}, err
	}
	h.OccupancyStatus = core.Occupancy(occupancy)
	h.MandatoryFee = mandatory != 0
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.House{}, fmt.Errorf("parse created_at: %w", err)
	}
	if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.House{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return h, nil
}

func (r *SQLiteRepository) GetHouse(ctx context.Context, houseID string) (*core.House, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+houseColumns+` FROM houses WHERE house_id = ?`, houseID)
	h, err := scanHouse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("house %s: %w", houseID, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get house %s: %w", houseID, err)
	}
	return &h, nil
}

func (r *SQLiteRepository) ListHouses(ctx context.Context) ([]core.House, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+houseColumns+` FROM houses ORDER BY house_id`)
	if err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	defer rows.Close()

	var houses []core.House
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan house: %w", err)
		}
		houses = append(houses, h)
	}
	return houses, rows.Err()
}

// UpdateHouse saves the house only if its version still matches, bumping
// the version on success. A stale version yields ErrConcurrencyConflict so
// the caller can re-read and retry.
func (r *SQLiteRepository) UpdateHouse(ctx context.Context, h core.House) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE houses SET resident_name = ?, whatsapp_number = ?, occupancy_status = ?,
			mandatory_fee = ?, group_name = ?, community_fee = ?, neighborhood_fee = ?,
			version = version + 1, updated_at = ?
		WHERE house_id = ? AND version = ?`,
		h.ResidentName, h.WhatsAppNumber, string(h.OccupancyStatus),
		boolToInt(h.MandatoryFee), h.Group, h.CommunityFee.Rupiah, h.NeighborhoodFee.Rupiah,
		formatTime(time.Now()), h.HouseID, h.Version)
	if err != nil {
		return fmt.Errorf("update house %s: %w", h.HouseID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update house %s: %w", h.HouseID, err)
	}
	if n == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM houses WHERE house_id = ?`, h.HouseID).Scan(&exists); err != nil {
			return fmt.Errorf("update house %s: %w", h.HouseID, err)
		}
		if exists == 0 {
			return fmt.Errorf("house %s: %w", h.HouseID, core.ErrNotFound)
		}
		return fmt.Errorf("house %s version %d: %w", h.HouseID, h.Version, core.ErrConcurrencyConflict)
	}
	return nil
}

// DeleteHouse removes the house along with its obligations and month
// status overrides.
func (r *SQLiteRepository) DeleteHouse(ctx context.Context, houseID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete house %s: %w", houseID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM obligations WHERE house_id = ?`, houseID); err != nil {
		return fmt.Errorf("delete obligations for %s: %w", houseID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM month_statuses WHERE house_id = ?`, houseID); err != nil {
		return fmt.Errorf("delete month statuses for %s: %w", houseID, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM houses WHERE house_id = ?`, houseID)
	if err != nil {
		return fmt.Errorf("delete house %s: %w", houseID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete house %s: %w", houseID, err)
	}
	if n == 0 {
		return fmt.Errorf("house %s: %w", houseID, core.ErrNotFound)
	}
	return tx.Commit()
}

// SetMonthStatus upserts one per-month billing override for a house.
func (r *SQLiteRepository) SetMonthStatus(ctx context.Context, houseID string, ms core.MonthStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO month_statuses (house_id, month, occupancy, community_fee_due, neighborhood_fee_due)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (house_id, month) DO UPDATE SET
			occupancy = excluded.occupancy,
			community_fee_due = excluded.community_fee_due,
			neighborhood_fee_due = excluded.neighborhood_fee_due`,
		houseID, string(ms.Month), string(ms.Occupancy),
		boolToInt(ms.CommunityFeeDue), boolToInt(ms.NeighborhoodFeeDue))
	if err != nil {
		return fmt.Errorf("set month status %s/%s: %w", houseID, ms.Month, err)
	}
	return nil
}

func (r *SQLiteRepository) ListMonthStatuses(ctx context.Context, houseID string) ([]core.MonthStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT month, occupancy, community_fee_due, neighborhood_fee_due
		FROM month_statuses WHERE house_id = ? ORDER BY month`, houseID)
	if err != nil {
		return nil, fmt.Errorf("list month statuses for %s: %w", houseID, err)
	}
	defer rows.Close()

	var statuses []core.MonthStatus
	for rows.Next() {
		var (
			ms                   core.MonthStatus
			month, occupancy     string
			communityDue, hoodDue int
		)
		if err := rows.Scan(&month, &occupancy, &communityDue, &hoodDue); err != nil {
			return nil, fmt.Errorf("scan month status: %w", err)
		}
		ms.Month = core.MonthKey(month)
		ms.Occupancy = core.Occupancy(occupancy)
		ms.CommunityFeeDue = communityDue != 0
		ms.NeighborhoodFeeDue = hoodDue != 0
		statuses = append(statuses, ms)
	}
	return statuses, rows.Err()
}
