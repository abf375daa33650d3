package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultCacheTTL = 10 * time.Minute

type cachedProductService struct {
	next        ProductService
	redisClient redis.UniversalClient
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewCachedProductService(next ProductService, redisClient redis.UniversalClient, ttl time.Duration, logger *zap.Logger) ProductService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &cachedProductService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    ttl,
		logger:      logger,
	}
}

func CacheKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func (s *cachedProductService) Create(ctx context.Context, product *domain.Product) error {
	return s.next.Create(ctx, product)
}

func (s *cachedProductService) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	key := CacheKey(id)

	val, err := s.redisClient.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var product domain.Product
		if err := json.Unmarshal(val, &product); err == nil {
			return &product, nil
		}
		mylogger.Warn(ctx, s.logger, "corrupt cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		mylogger.Warn(ctx, s.logger, "cache read failed", zap.String("key", key), zap.Error(err))
	}

	product, err := s.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(product)
	if err != nil {
		return product, nil
	}

	if err := s.redisClient.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
		mylogger.Warn(ctx, s.logger, "cache write failed", zap.String("key", key), zap.Error(err))
	}

	return product, nil
}

func (s *cachedProductService) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	return s.next.List(ctx, limit, offset, search)
}

func (s *cachedProductService) Update(ctx context.Context, id string, input *domain.UpdateProductInput) error {
	if err := s.next.Update(ctx, id, input); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *cachedProductService) Delete(ctx context.Context, id string) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *cachedProductService) invalidate(ctx context.Context, id string) {
	if err := s.redisClient.Del(ctx, CacheKey(id)).Err(); err != nil {
		mylogger.Warn(ctx, s.logger, "cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}
