package handler

import (
	"bufio"
	"context"
	"time"

	"github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/eventloop"
	"github.com/carusalgiz/shop-cloudfront/pkg/metrics"
	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/navigation"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/productitem"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultKeepAlive  = 15 * time.Second
	defaultStreamLife = 30 * time.Minute

	// HXLocation asks an htmx client to navigate without a full reload.
	HXLocation = "HX-Location"
)

type CartHandler struct {
	carts         Carts
	catalog       Catalog
	scheduler     eventloop.Scheduler
	validate      *validator.Validate
	timeout       time.Duration
	streamTimeout time.Duration
	keepAlive     time.Duration
	metrics       *metrics.Storefront
	logger        *zap.Logger
}

type CartOption func(*CartHandler)

func WithStreamTimeout(d time.Duration) CartOption {
	return func(h *CartHandler) { h.streamTimeout = d }
}

func WithKeepAlive(d time.Duration) CartOption {
	return func(h *CartHandler) { h.keepAlive = d }
}

func WithMetrics(m *metrics.Storefront) CartOption {
	return func(h *CartHandler) { h.metrics = m }
}

func NewCartHandler(
	carts Carts,
	catalog Catalog,
	scheduler eventloop.Scheduler,
	timeout time.Duration,
	logger *zap.Logger,
	opts ...CartOption,
) *CartHandler {
	if timeout <= 0 {
		timeout = time.Second
	}

	h := &CartHandler{
		carts:         carts,
		catalog:       catalog,
		scheduler:     scheduler,
		validate:      validator.New(),
		timeout:       timeout,
		streamTimeout: defaultStreamLife,
		keepAlive:     defaultKeepAlive,
		logger:        logger,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	return h.mutate(c, "add", (*productitem.Item).Add)
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	return h.mutate(c, "remove", (*productitem.Item).Remove)
}

func (h *CartHandler) mutate(c *fiber.Ctx, op string, fn func(*productitem.Item, context.Context) error) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, err := parseProductID(c, h.validate)
	if err != nil {
		mylogger.Warn(ctx, h.logger, "invalid product id", zap.String("id", c.Params("id")))
		return badRequest(c, err)
	}

	sc, err := h.carts.ForSession(ctx, middleware.SessionID(c))
	if err != nil {
		return respondError(ctx, c, h.logger, "cart load failed", err)
	}

	item := productitem.New(&domain.Product{ID: id}, 0, productitem.Deps{
		Cart:   sc,
		Logger: h.logger,
	})

	err = fn(item, ctx)
	h.metrics.ObserveMutation(op, err)
	if err != nil {
		return respondError(ctx, c, h.logger, "cart "+op+" failed", err)
	}

	mylogger.Info(
		ctx,
		h.logger,
		"cart "+op+" succeeded",
		zap.String("product_id", id),
		zap.String("session_id", sc.SessionID()),
	)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"productId":   id,
		"countInCart": sc.Snapshot().Count(id),
	})
}

// Open asks the product item to navigate to the detail page. From a list
// the client is redirected through HX-Location; on the detail page itself
// (detail=1) nothing happens.
func (h *CartHandler) Open(c *fiber.Ctx) error {
	id, err := parseProductID(c, h.validate)
	if err != nil {
		return badRequest(c, err)
	}

	params := map[string]string{}
	if c.FormValue("detail") == "1" || c.Query("detail") == "1" {
		params[productitem.RouteParam] = id
	}

	nav := navigation.NewRequest(params)
	item := productitem.New(&domain.Product{ID: id}, 0, productitem.Deps{
		Navigator: nav,
		Logger:    h.logger,
	})
	item.NavigateToProduct()

	location, ok := nav.Location()
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}

	c.Set(HXLocation, location)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"location": location,
	})
}

func (h *CartHandler) Checkout(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	lines, err := h.carts.Checkout(ctx, middleware.SessionID(c), h.catalog)
	if err != nil {
		return respondError(ctx, c, h.logger, "checkout failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"items": lines,
		"total": domain.CheckoutTotal(lines).StringFixed(2),
	})
}

// Stream serves the live cart count of one product as server-sent events.
// The product is handled as on its detail page: it is fetched from the
// catalog and focus events follow the 0/1 count transitions.
func (h *CartHandler) Stream(c *fiber.Ctx) error {
	id, err := parseProductID(c, h.validate)
	if err != nil {
		return badRequest(c, err)
	}

	sc, err := h.carts.ForSession(c.UserContext(), middleware.SessionID(c))
	if err != nil {
		return respondError(c.UserContext(), c, h.logger, "cart load failed", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), h.streamTimeout)

	queue := newSSEQueue()

	item := productitem.New(&domain.Product{ID: id}, 0, productitem.Deps{
		Cart:      sc,
		Catalog:   h.catalog,
		Navigator: navigation.NewRequest(map[string]string{productitem.RouteParam: id}),
		Scheduler: h.scheduler,
		Logger:    h.logger,
	})
	item.BindAddControl(focusControl{queue: queue, target: productitem.FocusAdd.String()})
	item.BindCartButton(focusControl{queue: queue, target: productitem.FocusCartButton.String()})
	item.Init(ctx)

	sub := item.CountInCart().Subscribe(func(n int64) {
		queue.replace(sseEvent{name: "count", data: fiber.Map{"productId": id, "count": n}})
	})

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	h.metrics.StreamOpened()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.metrics.StreamClosed()
		defer cancel()
		defer item.Close()
		defer sub.Unsubscribe()

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-queue.ready():
				for _, ev := range queue.drain() {
					if err := writeEvent(w, ev); err != nil {
						mylogger.Debug(ctx, h.logger, "sse client gone", zap.Error(err))
						return
					}
				}
				if err := w.Flush(); err != nil {
					mylogger.Debug(ctx, h.logger, "sse client gone", zap.Error(err))
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
