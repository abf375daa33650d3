package client

import (
	"context"
	"fmt"
	"time"

	"github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	"github.com/carusalgiz/shop-cloudfront/pkg/stream"
	"github.com/carusalgiz/shop-cloudfront/pkg/utils"
	pb "github.com/carusalgiz/shop-cloudfront/proto/catalog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultTimeout = 2 * time.Second

// CatalogClient talks to the catalog service through a circuit breaker.
type CatalogClient struct {
	client  pb.CatalogServiceClient
	conn    *grpc.ClientConn
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

func NewCatalogClient(url string, timeout time.Duration, logger *zap.Logger) (*CatalogClient, error) {
	conn, err := grpc.NewClient(
		url,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating catalog client: %w", err)
	}

	c := NewCatalogClientFromConn(conn, timeout, logger)
	c.conn = conn

	return c, nil
}

// NewCatalogClientFromConn wraps an existing connection. Close does not
// close cc.
func NewCatalogClientFromConn(cc grpc.ClientConnInterface, timeout time.Duration, logger *zap.Logger) *CatalogClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &CatalogClient{
		client:  pb.NewCatalogServiceClient(cc),
		cb:      utils.NewBreaker("CatalogService", logger),
		timeout: timeout,
		logger:  logger,
	}
}

func (c *CatalogClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *CatalogClient) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := utils.ExecuteWithBreaker(c.cb, func() (*pb.GetProductResponse, error) {
		return c.client.GetProduct(ctx, &pb.GetProductRequest{Id: id})
	})
	if err != nil {
		return domain.Product{}, err
	}

	return fromProto(res.Product)
}

// GetProductByID emits the product once it has been fetched. Failures are
// logged and nothing is emitted.
func (c *CatalogClient) GetProductByID(ctx context.Context, id string) stream.Observable[domain.Product] {
	return stream.FromFunc(ctx, func(ctx context.Context) (domain.Product, error) {
		return c.GetProduct(ctx, id)
	}, func(err error) {
		mylogger.Warn(ctx, c.logger, "product fetch failed", zap.String("product_id", id), zap.Error(err))
	})
}

func (c *CatalogClient) ListProducts(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := utils.ExecuteWithBreaker(c.cb, func() (*pb.ListProductsResponse, error) {
		return c.client.ListProducts(ctx, &pb.ListProductsRequest{
			Limit:  limit,
			Offset: offset,
			Search: search,
		})
	})
	if err != nil {
		return nil, 0, err
	}

	products := make([]domain.Product, 0, len(res.Products))
	for _, p := range res.Products {
		product, err := fromProto(p)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}

	return products, res.TotalCount, nil
}

func fromProto(p *pb.Product) (domain.Product, error) {
	if p == nil {
		return domain.Product{}, fmt.Errorf("empty product in response")
	}

	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid price %q for product %s: %w", p.Price, p.Id, err)
	}

	return domain.Product{
		ID:          p.Id,
		Title:       p.Title,
		Description: p.Description,
		Price:       price,
		Count:       p.Count,
	}, nil
}
