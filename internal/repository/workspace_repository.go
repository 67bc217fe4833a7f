package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// WorkspaceRepository reads workspace-level ticket configuration. The
// config gates every interaction, so reads go through a short-lived
// redis cache; a cache miss or redis outage falls back to postgres.
type WorkspaceRepository interface {
	GetConfig(ctx context.Context, workspaceID string) (*domain.WorkspaceConfig, error)
	InvalidateConfig(ctx context.Context, workspaceID string) error
}

type workspaceRepository struct {
	pool       *pgxpool.Pool
	cache      *redis.Client
	categories CategoryRepository
	ttl        time.Duration
	logger     *zap.Logger
}

// NewWorkspaceRepository instantiates repository.
func NewWorkspaceRepository(pool *pgxpool.Pool, cache *redis.Client, categories CategoryRepository, ttl time.Duration, logger *zap.Logger) WorkspaceRepository {
	return &workspaceRepository{
		pool:       pool,
		cache:      cache,
		categories: categories,
		ttl:        ttl,
		logger:     logger,
	}
}

func configCacheKey(workspaceID string) string {
	return "workspace_config:" + workspaceID
}

func (r *workspaceRepository) GetConfig(ctx context.Context, workspaceID string) (*domain.WorkspaceConfig, error) {
	if cached := r.fromCache(ctx, workspaceID); cached != nil {
		return cached, nil
	}

	const query = `SELECT workspace_id, tickets_enabled, updated_at FROM workspace_configs WHERE workspace_id=$1`
	var cfg domain.WorkspaceConfig
	if err := r.pool.QueryRow(ctx, query, workspaceID).Scan(&cfg.WorkspaceID, &cfg.TicketsEnabled, &cfg.UpdatedAt); err != nil {
		return nil, err
	}

	categories, err := r.categories.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	cfg.Categories = categories

	r.toCache(ctx, &cfg)
	return &cfg, nil
}

func (r *workspaceRepository) InvalidateConfig(ctx context.Context, workspaceID string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Del(ctx, configCacheKey(workspaceID)).Err()
}

func (r *workspaceRepository) fromCache(ctx context.Context, workspaceID string) *domain.WorkspaceConfig {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, configCacheKey(workspaceID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("workspace config cache read failed", zap.Error(err))
		}
		return nil
	}
	var cfg domain.WorkspaceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		r.logger.Warn("workspace config cache decode failed", zap.Error(err))
		return nil
	}
	return &cfg
}

func (r *workspaceRepository) toCache(ctx context.Context, cfg *domain.WorkspaceConfig) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, configCacheKey(cfg.WorkspaceID), raw, r.ttl).Err(); err != nil {
		r.logger.Warn("workspace config cache write failed", zap.Error(err))
	}
}
