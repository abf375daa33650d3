package tests

import (
	"context"
	"time"

	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/domain"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/repository"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func (s *IntegrationTestSuite) TestFindByID_CachesResult() {
	product := newProduct("vinyl-1", "A Great Chaos Vinyl", "99.99", 5)
	s.Require().NoError(s.CachedProductService.Create(s.Ctx, product))

	found, err := s.CachedProductService.FindByID(s.Ctx, product.ID)
	s.Require().NoError(err)
	s.Require().Equal(product.Title, found.Title)
	s.Require().True(found.Price.Equal(product.Price))
	s.Require().Equal(product.Count, found.Count)

	val, err := s.RedisClient.Get(s.Ctx, service.CacheKey(product.ID)).Result()
	s.Require().NoError(err)
	s.Require().NotEmpty(val)

	ttl, err := s.RedisClient.TTL(s.Ctx, service.CacheKey(product.ID)).Result()
	s.Require().NoError(err)
	s.Require().Greater(ttl, time.Duration(0))

	// served from cache even after the row is gone
	_, err = s.DbPool.Exec(s.Ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	s.Require().NoError(err)

	cached, err := s.CachedProductService.FindByID(s.Ctx, product.ID)
	s.Require().NoError(err)
	s.Require().Equal(product.Title, cached.Title)
}

func (s *IntegrationTestSuite) TestFindByID_Unicode() {
	product := newProduct("kuronami", "黒波・混沌 Edition", "150", 1)
	product.Description = "真のサムライのための武器。⛩️"
	s.Require().NoError(s.ProductService.Create(s.Ctx, product))

	found, err := s.ProductService.FindByID(s.Ctx, product.ID)
	s.Require().NoError(err)
	s.Require().Equal(product.Title, found.Title)
	s.Require().Equal(product.Description, found.Description)
}

func (s *IntegrationTestSuite) TestFindByID_Failure() {
	product, err := s.CachedProductService.FindByID(s.Ctx, "missing")
	s.Require().ErrorIs(err, repository.ErrProductNotFound)
	s.Require().Nil(product)

	_, err = s.RedisClient.Get(s.Ctx, service.CacheKey("missing")).Result()
	s.Require().ErrorIs(err, redis.Nil)
}

func (s *IntegrationTestSuite) TestUpdate_InvalidatesCache() {
	product := newProduct("vinyl-1", "A Great Chaos Vinyl", "99.99", 5)
	s.Require().NoError(s.CachedProductService.Create(s.Ctx, product))

	_, err := s.CachedProductService.FindByID(s.Ctx, product.ID)
	s.Require().NoError(err)

	price := decimal.RequireFromString("79.50")
	count := int64(2)
	err = s.CachedProductService.Update(s.Ctx, product.ID, &domain.UpdateProductInput{Price: &price, Count: &count})
	s.Require().NoError(err)

	_, err = s.RedisClient.Get(s.Ctx, service.CacheKey(product.ID)).Result()
	s.Require().ErrorIs(err, redis.Nil)

	updated, err := s.CachedProductService.FindByID(s.Ctx, product.ID)
	s.Require().NoError(err)
	s.Require().True(updated.Price.Equal(price))
	s.Require().Equal(count, updated.Count)
	s.Require().Equal(product.Title, updated.Title)
}

func (s *IntegrationTestSuite) TestDelete_SoftDeletes() {
	product := newProduct("vinyl-1", "A Great Chaos Vinyl", "99.99", 5)
	s.Require().NoError(s.CachedProductService.Create(s.Ctx, product))
	_, err := s.CachedProductService.FindByID(s.Ctx, product.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.CachedProductService.Delete(s.Ctx, product.ID))

	_, err = s.CachedProductService.FindByID(s.Ctx, product.ID)
	s.Require().ErrorIs(err, repository.ErrProductNotFound)

	err = s.CachedProductService.Delete(s.Ctx, product.ID)
	s.Require().ErrorIs(err, repository.ErrProductNotFound)

	var events int
	s.Require().NoError(s.DbPool.QueryRow(
		s.Ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = 'ProductDeleted'`,
		product.ID,
	).Scan(&events))
	s.Require().Equal(1, events)
}

func (s *IntegrationTestSuite) TestFindByID_ContextTimeout() {
	timeoutCtx, cancel := context.WithTimeout(s.Ctx, time.Microsecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	val, err := s.ProductService.FindByID(timeoutCtx, "vinyl-1")
	s.Require().ErrorIs(err, context.DeadlineExceeded)
	s.Require().Nil(val)
}
