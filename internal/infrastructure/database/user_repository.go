package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casabria/booking-security-backend/internal/infrastructure/crypto"
	"github.com/casabria/booking-security-backend/internal/service/session"
)

// UserRepository is the credential authority backed by Postgres. Password
// hashes are produced and checked by the crypto gateway; raw passwords never
// touch the database.
type UserRepository struct {
	pool    *pgxpool.Pool
	gateway *crypto.Gateway
}

func NewUserRepository(pool *pgxpool.Pool, gateway *crypto.Gateway) *UserRepository {
	return &UserRepository{pool: pool, gateway: gateway}
}

func (r *UserRepository) Verify(ctx context.Context, username, password string) (session.Identity, bool, error) {
	query := `SELECT id, role, password_hash FROM users WHERE username = $1`

	var id, role, hash string
	err := r.pool.QueryRow(ctx, query, username).Scan(&id, &role, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Identity{}, false, nil
	}
	if err != nil {
		return session.Identity{}, false, fmt.Errorf("load user: %w", err)
	}

	if !r.gateway.VerifyPassword(password, hash) {
		return session.Identity{}, false, nil
	}
	return session.Identity{UserID: id, Role: role}, true, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, username, newPassword string) error {
	hash, err := r.gateway.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE username = $2`, hash, username)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password: user %q not found", username)
	}
	return nil
}
