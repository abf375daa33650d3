package handler

import (
	"context"
	"time"

	"github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	"github.com/carusalgiz/shop-cloudfront/pkg/stream"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/navigation"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/productitem"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProductHandler struct {
	catalog  Catalog
	carts    Carts
	validate *validator.Validate
	timeout  time.Duration
	logger   *zap.Logger
}

func NewProductHandler(catalog Catalog, carts Carts, timeout time.Duration, logger *zap.Logger) *ProductHandler {
	if timeout <= 0 {
		timeout = time.Second
	}

	return &ProductHandler{
		catalog:  catalog,
		carts:    carts,
		validate: validator.New(),
		timeout:  timeout,
		logger:   logger,
	}
}

type listProductsQuery struct {
	Limit  int64  `query:"limit" validate:"gte=0,max=100"`
	Offset int64  `query:"offset" validate:"gte=0"`
	Search string `query:"search" validate:"max=100"`
}

type productView struct {
	domain.Product
	Index       int   `json:"index"`
	CountInCart int64 `json:"countInCart"`
}

// currentCount reads the replayed count of an initialised item.
func currentCount(item *productitem.Item) int64 {
	var count int64
	stream.Take(item.CountInCart(), 1).Subscribe(func(v int64) { count = v })
	return count
}

func (h *ProductHandler) view(ctx context.Context, p domain.Product, index int, sc productitem.Cart, params map[string]string) productView {
	item := productitem.New(&p, index, productitem.Deps{
		Cart:      sc,
		Navigator: navigation.NewRequest(params),
		Logger:    h.logger,
	})
	item.Init(ctx)

	return productView{Product: p, Index: item.Index(), CountInCart: currentCount(item)}
}

func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	query := new(listProductsQuery)
	if err := c.QueryParser(query); err != nil {
		mylogger.Warn(ctx, h.logger, "query parsing failed", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid query",
		})
	}

	if err := h.validate.Struct(query); err != nil {
		return badRequest(c, err)
	}

	products, total, err := h.catalog.ListProducts(ctx, query.Limit, query.Offset, query.Search)
	if err != nil {
		return respondError(ctx, c, h.logger, "list products failed", err)
	}

	sc, err := h.carts.ForSession(ctx, middleware.SessionID(c))
	if err != nil {
		return respondError(ctx, c, h.logger, "cart load failed", err)
	}

	views := make([]productView, 0, len(products))
	for i, p := range products {
		views = append(views, h.view(ctx, p, int(query.Offset)+i, sc, nil))
	}

	mylogger.Info(
		ctx,
		h.logger,
		"list products succeeded",
		zap.Int64("offset", query.Offset),
		zap.Int64("limit", query.Limit),
		zap.String("search", query.Search),
		zap.Int64("total", total),
	)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"products":    views,
		"total_count": total,
	})
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, err := parseProductID(c, h.validate)
	if err != nil {
		mylogger.Warn(ctx, h.logger, "id is invalid", zap.String("id", c.Params("id")))
		return badRequest(c, err)
	}

	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		return respondError(ctx, c, h.logger, "find by id failed", err)
	}

	sc, err := h.carts.ForSession(ctx, middleware.SessionID(c))
	if err != nil {
		return respondError(ctx, c, h.logger, "cart load failed", err)
	}

	view := h.view(ctx, product, 0, sc, map[string]string{productitem.RouteParam: id})

	return c.Status(fiber.StatusOK).JSON(view)
}
