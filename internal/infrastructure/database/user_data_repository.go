package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserDataRepository stores the personal-data record that the privacy
// ledger processes, anonymizes, and exports. One row per user, the fields
// as a JSONB document.
type UserDataRepository struct {
	pool *pgxpool.Pool
}

func NewUserDataRepository(pool *pgxpool.Pool) *UserDataRepository {
	return &UserDataRepository{pool: pool}
}

func (r *UserDataRepository) Get(ctx context.Context, userID string) (map[string]string, time.Time, error) {
	query := `SELECT data, created_at FROM user_profiles WHERE user_id = $1`

	var raw []byte
	var createdAt time.Time
	err := r.pool.QueryRow(ctx, query, userID).Scan(&raw, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load user profile: %w", err)
	}

	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal user profile: %w", err)
	}
	return data, createdAt, nil
}

func (r *UserDataRepository) Put(ctx context.Context, userID string, data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal user profile: %w", err)
	}

	query := `
		INSERT INTO user_profiles (user_id, data, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data`

	if _, err := r.pool.Exec(ctx, query, userID, raw); err != nil {
		return fmt.Errorf("store user profile: %w", err)
	}
	return nil
}
