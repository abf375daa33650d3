package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/carusalgiz/shop-cloudfront/pkg/db"
	shared "github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	outboxDomain "github.com/carusalgiz/shop-cloudfront/pkg/outbox/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/outbox/worker"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/domain"
	"github.com/carusalgiz/shop-cloudfront/services/catalog/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var ErrInvalidProduct = errors.New("invalid product")

type ProductService interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error)
	Update(ctx context.Context, id string, input *domain.UpdateProductInput) error
	Delete(ctx context.Context, id string) error
}

type productService struct {
	productRepo repository.ProductRepository
	outboxRepo  worker.OutboxRepository
	pool        *pgxpool.Pool
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewProductService(
	productRepo repository.ProductRepository,
	outboxRepo worker.OutboxRepository,
	pool *pgxpool.Pool,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		pool:        pool,
		validate:    validator.New(),
		logger:      logger,
	}
}

func (s *productService) Create(ctx context.Context, product *domain.Product) error {
	if err := s.validate.Struct(product.Product); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	if product.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}

	return db.InTx(ctx, s.pool, s.logger, func(tx pgx.Tx) error {
		if err := s.productRepo.Create(ctx, tx, product); err != nil {
			if !errors.Is(err, repository.ErrProductExists) {
				mylogger.Error(ctx, s.logger, "create error", zap.Error(err))
			}
			return err
		}

		return s.saveEvent(ctx, tx, product.ID, shared.EventProductCreated)
	})
}

func (s *productService) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	res, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			mylogger.Warn(ctx, s.logger, "product not found", zap.String("product_id", id))
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "error getting product", zap.Error(err))
		return nil, fmt.Errorf("error getting product by id: %w", err)
	}

	return res, nil
}

func (s *productService) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	list, total, err := s.productRepo.List(ctx, limit, offset, search)
	if err != nil {
		mylogger.Error(ctx, s.logger, "list error", zap.Error(err))
		return nil, 0, fmt.Errorf("error listing products: %w", err)
	}

	return list, total, nil
}

func (s *productService) Update(ctx context.Context, id string, input *domain.UpdateProductInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	if input.Price != nil && input.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}

	return db.InTx(ctx, s.pool, s.logger, func(tx pgx.Tx) error {
		if err := s.productRepo.Update(ctx, tx, id, input); err != nil {
			return err
		}

		return s.saveEvent(ctx, tx, id, shared.EventProductUpdated)
	})
}

func (s *productService) Delete(ctx context.Context, id string) error {
	return db.InTx(ctx, s.pool, s.logger, func(tx pgx.Tx) error {
		if err := s.productRepo.DeleteByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				mylogger.Warn(ctx, s.logger, "product not found", zap.String("product_id", id))
			}
			return err
		}

		return s.saveEvent(ctx, tx, id, shared.EventProductDeleted)
	})
}

func (s *productService) saveEvent(ctx context.Context, tx pgx.Tx, productID, eventType string) error {
	outboxEvent, err := outboxDomain.NewOutboxEvent(
		shared.TopicProductEvents,
		"Product",
		productID,
		eventType,
		shared.ProductChangedEvent{ProductID: productID},
	)
	if err != nil {
		return err
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, outboxEvent); err != nil {
		mylogger.Error(ctx, s.logger, "Error saving outbox event", zap.Error(err))
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}
