package http

import (
	"github.com/carusalgiz/shop-cloudfront/pkg/config"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/transport/http/handler"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/middleware"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type Handlers struct {
	Product *handler.ProductHandler
	Cart    *handler.CartHandler
	Metrics fiber.Handler
}

// NewApp builds the fiber app with tracing and per-IP rate limiting. A zero
// limiter Max disables limiting.
func NewApp(cfg config.Limiter) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(otelfiber.Middleware())

	if cfg.Max > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.Max,
			Expiration: cfg.Expiration,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests. Try again later.",
				})
			},
		}))
	}

	return app
}

func RegisterRoutes(app *fiber.App, h *Handlers, secureCookies bool) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("Storefront is alive!")
	})

	if h.Metrics != nil {
		app.Get("/metrics", h.Metrics)
	}

	api := app.Group("/api", middleware.NewSessionMiddleware(secureCookies))

	product := api.Group("/products")
	product.Get("", h.Product.ListProducts)
	product.Get("/:id", h.Product.FindByID)
	product.Post("/:id/open", h.Cart.Open)
	product.Post("/:id/cart", h.Cart.Add)
	product.Delete("/:id/cart", h.Cart.Remove)
	product.Get("/:id/stream", h.Cart.Stream)

	cart := api.Group("/cart")
	cart.Get("/checkout", h.Cart.Checkout)
}
