package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/V4T54L/display-watch/internal/domain"
)

// FilterConfigUseCase manages the single persisted filter configuration and
// evaluates candidate configurations against recorded results. Previews are
// always dry runs; only Update, Toggle and Reset write the slot.
type FilterConfigUseCase struct {
	repo    domain.FilterConfigRepository
	history domain.JobHistoryRepository
	logger  *slog.Logger
}

// NewFilterConfigUseCase creates a new FilterConfigUseCase.
func NewFilterConfigUseCase(repo domain.FilterConfigRepository, history domain.JobHistoryRepository, logger *slog.Logger) *FilterConfigUseCase {
	return &FilterConfigUseCase{repo: repo, history: history, logger: logger}
}

// Get returns the active configuration.
func (uc *FilterConfigUseCase) Get(ctx context.Context) (domain.FilterConfig, error) {
	return uc.repo.Load(ctx)
}

// Update validates and stores a full replacement configuration.
func (uc *FilterConfigUseCase) Update(ctx context.Context, cfg domain.FilterConfig) (domain.FilterConfig, error) {
	cfg.Canonicalize()
	if err := cfg.Validate(); err != nil {
		return domain.FilterConfig{}, err
	}
	if err := uc.repo.Save(ctx, cfg); err != nil {
		return domain.FilterConfig{}, fmt.Errorf("saving filter config: %w", err)
	}
	uc.logger.Info("filter config updated", "enabled", cfg.Enabled,
		"min_threshold", cfg.MinThreshold,
		"whitelisted", len(cfg.WhitelistedModels), "blacklisted", len(cfg.BlacklistedModels))
	return cfg, nil
}

// Toggle flips only the enabled flag and leaves the rest of the
// configuration untouched.
func (uc *FilterConfigUseCase) Toggle(ctx context.Context) (domain.FilterConfig, error) {
	cfg, err := uc.repo.Load(ctx)
	if err != nil {
		return domain.FilterConfig{}, err
	}
	cfg.Enabled = !cfg.Enabled
	if err := uc.repo.Save(ctx, cfg); err != nil {
		return domain.FilterConfig{}, fmt.Errorf("saving toggled filter config: %w", err)
	}
	uc.logger.Info("filter config toggled", "enabled", cfg.Enabled)
	return cfg, nil
}

// Reset restores and stores the default configuration.
func (uc *FilterConfigUseCase) Reset(ctx context.Context) (domain.FilterConfig, error) {
	cfg := domain.DefaultFilterConfig()
	if err := uc.repo.Save(ctx, cfg); err != nil {
		return domain.FilterConfig{}, fmt.Errorf("saving default filter config: %w", err)
	}
	uc.logger.Info("filter config reset to defaults")
	return cfg, nil
}

// Preview evaluates a candidate configuration against the unfiltered records
// of the latest completed job, optionally restricted to one week. Nothing is
// persisted. ErrNotFound means there is no completed job to preview against.
func (uc *FilterConfigUseCase) Preview(ctx context.Context, cfg domain.FilterConfig, week *int) (*domain.FilterPreview, error) {
	cfg.Canonicalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rec, err := uc.history.LatestCompleted(ctx, week)
	if err != nil {
		return nil, err
	}
	records, err := uc.history.Records(ctx, rec.JobID, false)
	if err != nil {
		return nil, fmt.Errorf("loading records for preview: %w", err)
	}

	preview := domain.PreviewFilters(records, cfg)
	return &preview, nil
}

// Options lists the distinct models, channels and stores of the latest
// completed job, substring-filtered by query.
func (uc *FilterConfigUseCase) Options(ctx context.Context, query string) (*domain.FilterOptions, error) {
	rec, err := uc.history.LatestCompleted(ctx, nil)
	if err != nil {
		return nil, err
	}
	records, err := uc.history.Records(ctx, rec.JobID, false)
	if err != nil {
		return nil, fmt.Errorf("loading records for options: %w", err)
	}

	options := domain.CollectFilterOptions(records, query)
	return &options, nil
}
