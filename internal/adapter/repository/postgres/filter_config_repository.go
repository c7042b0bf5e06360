package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/V4T54L/display-watch/internal/domain"
)

// FilterConfigRepository implements domain.FilterConfigRepository with a
// single JSONB slot. There is exactly one active configuration; saves
// overwrite it and the previous value is not kept.
type FilterConfigRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFilterConfigRepository creates a new PostgreSQL filter config repository.
func NewFilterConfigRepository(db *sql.DB, logger *slog.Logger) *FilterConfigRepository {
	return &FilterConfigRepository{db: db, logger: logger}
}

// Load returns the stored configuration, or defaults when none was ever saved.
func (r *FilterConfigRepository) Load(ctx context.Context) (domain.FilterConfig, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT config FROM filter_config WHERE id = 1;`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultFilterConfig(), nil
	}
	if err != nil {
		return domain.FilterConfig{}, err
	}

	var cfg domain.FilterConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.FilterConfig{}, fmt.Errorf("failed to unmarshal stored filter config: %w", err)
	}
	cfg.Canonicalize()
	return cfg, nil
}

// Save overwrites the slot. Last write wins.
func (r *FilterConfigRepository) Save(ctx context.Context, cfg domain.FilterConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal filter config: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO filter_config (id, config, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = NOW();
	`, raw)
	return err
}
