package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukahub/dukahub/internal/auth"
	"github.com/dukahub/dukahub/internal/shared"
)

const userColumns = `id, name, email, role, is_active, created_at, updated_at`

// Repository persists user accounts in PostgreSQL. It also serves as the
// credential source for login.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateUser(ctx context.Context, u User, passwordHash string) (User, error) {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	err := r.pool.QueryRow(ctx, `INSERT INTO users (name, email, password_hash, role, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
		u.Name, u.Email, passwordHash, u.Role, u.Active, now).Scan(&u.ID)
	return u, err
}

func (r *Repository) UpdateUser(ctx context.Context, u User) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET name=$2, email=$3, role=$4, updated_at=NOW()
WHERE id=$1`, u.ID, u.Name, u.Email, u.Role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", u.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return u, err
}

func (r *Repository) ListUsers(ctx context.Context, activeOnly bool) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE (NOT $1 OR is_active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) SetUserActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// GetCredentialByEmail implements auth.CredentialPort.
func (r *Repository) GetCredentialByEmail(ctx context.Context, email string) (auth.Credential, error) {
	var cred auth.Credential
	err := r.pool.QueryRow(ctx, `SELECT id, password_hash, is_active FROM users WHERE email=$1`, email).
		Scan(&cred.UserID, &cred.PasswordHash, &cred.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Credential{}, fmt.Errorf("user %s: %w", email, shared.ErrNotFound)
	}
	return cred, err
}
