package tests

import (
	"context"
	"time"

	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/repository"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/service"
	"github.com/shopspring/decimal"
)

func (s *IntegrationTestSuite) TestCreateProduct_Success() {
	product := newProduct("vinyl-1", "A Great Chaos Vinyl", "99.99", 5)

	err := s.ProductService.Create(s.Ctx, product)
	s.Require().NoError(err)
	s.Require().False(product.CreatedAt.IsZero())

	var (
		dbTitle string
		dbPrice string
	)
	err = s.DbPool.QueryRow(s.Ctx, `SELECT title, price::text FROM products WHERE id = $1`, product.ID).
		Scan(&dbTitle, &dbPrice)
	s.Require().NoError(err)
	s.Require().Equal(product.Title, dbTitle)
	s.Require().True(decimal.RequireFromString(dbPrice).Equal(product.Price))

	publishedAtQuery := `
		SELECT published_at
		FROM outbox
		WHERE aggregate_id = $1 AND event_type = 'ProductCreated'
	`

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time

		err := s.DbPool.QueryRow(s.Ctx, publishedAtQuery, product.ID).Scan(&publishedAt)
		return err == nil && publishedAt != nil
	}, 10*time.Second, 100*time.Millisecond)
}

func (s *IntegrationTestSuite) TestCreateProductUnique_Failed() {
	product := newProduct("vinyl-1", "A Great Chaos Vinyl", "99.99", 5)

	s.Require().NoError(s.ProductService.Create(s.Ctx, product))

	err := s.ProductService.Create(s.Ctx, newProduct("vinyl-1", "Another", "1", 1))
	s.Require().ErrorIs(err, repository.ErrProductExists)

	var outboxRows int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM outbox`).Scan(&outboxRows))
	s.Require().Equal(1, outboxRows)
}

func (s *IntegrationTestSuite) TestCreateProductInvalid_Failed() {
	err := s.ProductService.Create(s.Ctx, newProduct("", "No id", "1", 1))
	s.Require().ErrorIs(err, service.ErrInvalidProduct)

	err = s.ProductService.Create(s.Ctx, newProduct("neg", "Negative", "-1", 1))
	s.Require().ErrorIs(err, service.ErrInvalidProduct)

	err = s.ProductService.Create(s.Ctx, newProduct("neg-count", "Negative count", "1", -1))
	s.Require().ErrorIs(err, service.ErrInvalidProduct)
}

func (s *IntegrationTestSuite) TestCreateProductContextTimeout_Failed() {
	ctxTimeout, cancel := context.WithTimeout(s.Ctx, time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	err := s.ProductService.Create(ctxTimeout, newProduct("vinyl-1", "A Great Chaos Vinyl", "99.99", 5))
	s.Require().ErrorIs(err, context.DeadlineExceeded)
}
