package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"iuran/internal/core"
)

// ErrDuplicateUser is returned when a username or email is already taken.
var ErrDuplicateUser = fmt.Errorf("%w: username or email already registered", core.ErrInvalidInput)

const userColumns = `id, username, email, password_hash, role, house_id, created_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u         core.User
		role      string
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.HouseID, &createdAt)
	if err != nil {
		return core.User{}, err
	}
	u.Role = core.Role(role)
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, house_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.HouseID, formatTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("user %s: %w", u.Username, ErrDuplicateUser)
		}
		return fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", username, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return &u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) CreateUpload(ctx context.Context, up core.Upload) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO uploads (id, title, url, created_at) VALUES (?, ?, ?, ?)`,
		up.ID, up.Title, up.URL, formatTime(up.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert upload %s: %w", up.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListUploads(ctx context.Context) ([]core.Upload, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, url, created_at FROM uploads ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []core.Upload
	for rows.Next() {
		var (
			up        core.Upload
			createdAt string
		)
		if err := rows.Scan(&up.ID, &up.Title, &up.URL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		var perr error
		if up.CreatedAt, perr = parseTime(createdAt); perr != nil {
			return nil, fmt.Errorf("parse created_at: %w", perr)
		}
		uploads = append(uploads, up)
	}
	return uploads, rows.Err()
}
