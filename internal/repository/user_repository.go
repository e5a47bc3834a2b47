package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskpanel/internal/common"
	"taskpanel/internal/models"
)

var ErrUserNotFound = common.NewError(common.ErrNotFound, "user not found")

// UserRecord is a user row as stored, hash included.
type UserRecord struct {
	models.User
	PasswordHash string
}

// UserQuery filters List. Empty fields match everything.
type UserQuery struct {
	Email  string
	Role   models.UserRole
	Status models.UserStatus
}

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, role, status, permissions`

func (r *UserRepository) Create(ctx context.Context, rec UserRecord) error {
	const query = `
		INSERT INTO users (
			id, name, email, password_hash, role, status, permissions, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Name,
		rec.Email,
		rec.PasswordHash,
		rec.Role,
		rec.Status,
		rec.Permissions,
	)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (UserRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context, q UserQuery) ([]UserRecord, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if q.Email != "" {
		add("email", q.Email)
	}
	if q.Role != "" {
		add("role", q.Role)
	}
	if q.Status != "" {
		add("status", q.Status)
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserRecord
	for rows.Next() {
		rec, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of patch and returns the new row.
func (r *UserRepository) Update(ctx context.Context, id string, patch models.UserPatch) (UserRecord, error) {
	const query = `
		UPDATE users
		SET status = COALESCE($2, status),
		    role = COALESCE($3, role),
		    permissions = COALESCE($4, permissions),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	row := r.pool.QueryRow(ctx, query, id, patch.Status, patch.Role, patch.Permissions)
	return scanUser(row)
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var rec UserRecord
	if err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Email,
		&rec.PasswordHash,
		&rec.Role,
		&rec.Status,
		&rec.Permissions,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, err
	}
	return rec, nil
}
