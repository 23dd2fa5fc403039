package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishgate/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) loadMemberships(ctx context.Context, u *models.User) error {
	const q = `SELECT tenant_id, role FROM tenant_users WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var m models.TenantMembership
		if err := rows.Scan(&m.TenantID, &m.Role); err != nil {
			return err
		}
		u.Tenants = append(u.Tenants, m)
	}
	return rows.Err()
}

// GetByID returns a user with tenant memberships.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, password_hash, full_name, role, created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := r.loadMemberships(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user with tenant memberships.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, password_hash, full_name, role, created_at, updated_at FROM users WHERE email = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := r.loadMemberships(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user and, when tenantID is non-nil, attaches the
// initial tenant membership in the same transaction.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role, tenantID *uuid.UUID, tenantRole string) (*models.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `INSERT INTO users (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, full_name, role, created_at, updated_at`
	var u models.User
	if err := tx.QueryRow(ctx, q, email, passwordHash, fullName, string(role)).
		Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	if tenantID != nil {
		const mq = `INSERT INTO tenant_users (tenant_id, user_id, role) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, mq, *tenantID, u.ID, tenantRole); err != nil {
			return nil, err
		}
		u.Tenants = []models.TenantMembership{{TenantID: *tenantID, Role: tenantRole}}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes a user. Memberships cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}
