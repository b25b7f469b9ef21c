package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type SettingsRepositoryInterface interface {
	LoadAll(ctx context.Context) (map[string]string, error)
}

type SettingsRepository struct {
	DB *sql.DB
}

func (r *SettingsRepository) LoadAll(ctx context.Context) (map[string]string, error) {
	const op = "repository.SettingsRepository.LoadAll"

	rows, err := r.DB.QueryContext(ctx, `SELECT key, COALESCE(value, '') FROM portal_settings`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		values[k] = v
	}
	return values, rows.Err()
}

var _ SettingsRepositoryInterface = (*SettingsRepository)(nil)
