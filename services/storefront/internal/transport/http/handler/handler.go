package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	"github.com/carusalgiz/shop-cloudfront/pkg/stream"
	"github.com/carusalgiz/shop-cloudfront/pkg/utils"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/cart"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Catalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	GetProductByID(ctx context.Context, id string) stream.Observable[domain.Product]
	ListProducts(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error)
}

type Carts interface {
	ForSession(ctx context.Context, sessionID string) (*cart.SessionCart, error)
	Checkout(ctx context.Context, sessionID string, lookup cart.ProductLookup) ([]domain.ProductCheckout, error)
}

type productIDParam struct {
	ID string `validate:"required,max=64,printascii"`
}

func parseProductID(c *fiber.Ctx, validate *validator.Validate) (string, error) {
	in := productIDParam{ID: c.Params("id")}
	if err := validate.Struct(in); err != nil {
		return "", err
	}
	return in.ID, nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": utils.FormatValidationError(err),
	})
}

// respondError maps cart and catalog failures to an HTTP response.
func respondError(ctx context.Context, c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	switch {
	case errors.Is(err, cart.ErrInvalidProductID), errors.Is(err, cart.ErrInvalidSession):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		mylogger.Warn(ctx, logger, "Circuit breaker open", zap.String("op", msg))

		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service temporarily unavailable",
		})
	case errors.Is(err, context.DeadlineExceeded):
		mylogger.Warn(ctx, logger, msg, zap.Error(err))
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "request timed out"})
	}

	httpCode := utils.GRPCStatusToHTTP(err)
	if httpCode >= fiber.StatusInternalServerError {
		mylogger.Error(ctx, logger, msg, zap.Int("http_code", httpCode), zap.Error(err))
	} else {
		mylogger.Warn(ctx, logger, msg, zap.Int("http_code", httpCode), zap.Error(err))
	}

	return c.Status(httpCode).JSON(fiber.Map{
		"error": http.StatusText(httpCode),
	})
}
