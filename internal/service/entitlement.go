package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oguzkaracar/coursecommerce/internal/domain"
	"github.com/oguzkaracar/coursecommerce/internal/repository"
)

const entitlementKeyPrefix = "entitlements:"

// EntitlementService manages course access grants. Reads go through a
// per-user Redis cache; every write invalidates it. The cache is an
// optimization only, postgres remains the source of truth and any cache
// failure falls back to it.
type EntitlementService struct {
	repo   repository.EntitlementRepository
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewEntitlementService creates a new entitlement service. cache may be nil
// to disable caching.
func NewEntitlementService(repo repository.EntitlementRepository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *EntitlementService {
	return &EntitlementService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Grant gives a user access to a resource. Granting twice is a no-op.
func (s *EntitlementService) Grant(ctx context.Context, userID, resourceID, orderID string) error {
	entitlement := &domain.Entitlement{
		ID:         uuid.New().String(),
		UserID:     userID,
		ResourceID: resourceID,
		OrderID:    orderID,
		GrantedAt:  time.Now().UTC(),
	}

	if err := s.repo.Grant(ctx, entitlement); err != nil {
		return fmt.Errorf("grant entitlement: %w", err)
	}

	s.invalidate(ctx, userID)

	s.logger.InfoContext(ctx, "entitlement granted",
		slog.String("user_id", userID),
		slog.String("resource_id", resourceID),
		slog.String("order_id", orderID),
	)

	return nil
}

// Revoke removes a user's access to a resource. Revoking a missing
// entitlement is a no-op.
func (s *EntitlementService) Revoke(ctx context.Context, userID, resourceID string) error {
	if err := s.repo.Revoke(ctx, userID, resourceID); err != nil {
		return fmt.Errorf("revoke entitlement: %w", err)
	}

	s.invalidate(ctx, userID)

	s.logger.InfoContext(ctx, "entitlement revoked",
		slog.String("user_id", userID),
		slog.String("resource_id", resourceID),
	)

	return nil
}

// ListByUser returns all entitlements held by a user, serving from cache
// when possible.
func (s *EntitlementService) ListByUser(ctx context.Context, userID string) ([]domain.Entitlement, error) {
	if cached, ok := s.fromCache(ctx, userID); ok {
		return cached, nil
	}

	entitlements, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	s.toCache(ctx, userID, entitlements)

	return entitlements, nil
}

// Has reports whether the user currently holds access to the resource.
func (s *EntitlementService) Has(ctx context.Context, userID, resourceID string) (bool, error) {
	if cached, ok := s.fromCache(ctx, userID); ok {
		for i := range cached {
			if cached[i].ResourceID == resourceID {
				return true, nil
			}
		}
		return false, nil
	}

	has, err := s.repo.Has(ctx, userID, resourceID)
	if err != nil {
		return false, fmt.Errorf("check entitlement: %w", err)
	}
	return has, nil
}

func (s *EntitlementService) fromCache(ctx context.Context, userID string) ([]domain.Entitlement, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, entitlementKeyPrefix+userID).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.WarnContext(ctx, "entitlement cache read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var entitlements []domain.Entitlement
	if err := json.Unmarshal(data, &entitlements); err != nil {
		return nil, false
	}
	return entitlements, true
}

func (s *EntitlementService) toCache(ctx context.Context, userID string, entitlements []domain.Entitlement) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(entitlements)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, entitlementKeyPrefix+userID, data, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "entitlement cache write failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *EntitlementService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, entitlementKeyPrefix+userID).Err(); err != nil {
		s.logger.WarnContext(ctx, "entitlement cache invalidation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
