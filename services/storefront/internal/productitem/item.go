// Package productitem is the per-product cart control: it shows one product,
// derives how many of it are in the session cart and moves focus between
// the cart button and the quantity controls when that count crosses 0 and 1.
package productitem

import (
	"context"
	"sync"

	"github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/eventloop"
	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	"github.com/carusalgiz/shop-cloudfront/pkg/stream"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/cart"
	"go.uber.org/zap"
)

// RouteParam is the route parameter holding the product id on detail pages.
const RouteParam = "id"

type Cart interface {
	Cart() stream.Observable[cart.Mapping]
	AddItem(ctx context.Context, productID string) error
	RemoveItem(ctx context.Context, productID string) error
}

type Catalog interface {
	// GetProductByID emits at most one product.
	GetProductByID(ctx context.Context, id string) stream.Observable[domain.Product]
}

type Navigator interface {
	Param(name string) (string, bool)
	Navigate(path string)
}

// Control is a focusable view element.
type Control interface {
	Focus()
}

type Deps struct {
	Cart      Cart
	Catalog   Catalog
	Navigator Navigator
	Scheduler eventloop.Scheduler
	Logger    *zap.Logger
}

type Item struct {
	deps    Deps
	index   int
	routeID string
	detail  bool

	mu          sync.Mutex
	product     *domain.Product
	addControl  Control
	cartButton  Control
	fetch       stream.Subscription
	countInCart *stream.Shared[int64]
}

// New builds an item for product, which may be nil until resolved. The
// route id is read here, once.
func New(product *domain.Product, index int, deps Deps) *Item {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	item := &Item{
		deps:    deps,
		index:   index,
		product: product,
	}

	if deps.Navigator != nil {
		id, ok := deps.Navigator.Param(RouteParam)
		item.routeID, item.detail = id, ok && id != ""
	}

	return item
}

// Init starts the product fetch on detail pages and builds the count
// stream. Calling it again has no effect.
func (i *Item) Init(ctx context.Context) {
	i.mu.Lock()
	if i.countInCart != nil {
		i.mu.Unlock()
		return
	}

	i.countInCart = stream.ShareReplay(stream.ObservableFunc[int64](func(next func(int64)) stream.Subscription {
		t := newTracker(i.scheduleFocus)
		counts := stream.Map(i.deps.Cart.Cart(), func(m cart.Mapping) int64 {
			return m.Count(i.ID())
		})

		return stream.Tap(counts, t.observe).Subscribe(next)
	}))
	i.mu.Unlock()

	if !i.detail || i.deps.Catalog == nil {
		return
	}

	sub := stream.Take(i.deps.Catalog.GetProductByID(ctx, i.routeID), 1).Subscribe(i.setProduct)

	i.mu.Lock()
	i.fetch = sub
	i.mu.Unlock()
}

// Close cancels a pending product fetch.
func (i *Item) Close() {
	i.mu.Lock()
	fetch := i.fetch
	i.fetch = nil
	i.mu.Unlock()

	if fetch != nil {
		fetch.Unsubscribe()
	}
}

func (i *Item) setProduct(p domain.Product) {
	i.mu.Lock()
	i.product = &p
	i.mu.Unlock()
}

// ID returns the product id, or "" while the product is unresolved.
func (i *Item) ID() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.product == nil {
		return ""
	}
	return i.product.ID
}

func (i *Item) Product() (domain.Product, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.product == nil {
		return domain.Product{}, false
	}
	return *i.product, true
}

func (i *Item) Index() int {
	return i.index
}

// Detail reports whether the item was built on a product detail route.
func (i *Item) Detail() bool {
	return i.detail
}

// CountInCart is the quantity of this product in the cart. It is nil
// before Init.
func (i *Item) CountInCart() stream.Observable[int64] {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.countInCart == nil {
		return nil
	}
	return i.countInCart
}

func (i *Item) BindAddControl(c Control) {
	i.mu.Lock()
	i.addControl = c
	i.mu.Unlock()
}

func (i *Item) BindCartButton(c Control) {
	i.mu.Lock()
	i.cartButton = c
	i.mu.Unlock()
}

// NavigateToProduct opens the detail page unless already on it.
func (i *Item) NavigateToProduct() {
	if i.detail || i.deps.Navigator == nil {
		return
	}

	i.deps.Navigator.Navigate("products/" + i.ID())
}

func (i *Item) Add(ctx context.Context) error {
	id := i.ID()
	if err := i.deps.Cart.AddItem(ctx, id); err != nil {
		mylogger.Warn(ctx, i.deps.Logger, "add to cart failed", zap.String("product_id", id), zap.Error(err))
		return err
	}
	return nil
}

func (i *Item) Remove(ctx context.Context) error {
	id := i.ID()
	if err := i.deps.Cart.RemoveItem(ctx, id); err != nil {
		mylogger.Warn(ctx, i.deps.Logger, "remove from cart failed", zap.String("product_id", id), zap.Error(err))
		return err
	}
	return nil
}

func (i *Item) scheduleFocus(f Focus) {
	if i.deps.Scheduler == nil {
		return
	}

	if !i.deps.Scheduler.Schedule(func() { i.focus(f) }) {
		i.deps.Logger.Debug("focus dropped, loop stopped", zap.String("focus", f.String()))
	}
}

// focus runs on the loop; the bound control is read at that point.
func (i *Item) focus(f Focus) {
	i.mu.Lock()
	var target Control
	switch f {
	case FocusAdd:
		target = i.addControl
	case FocusCartButton:
		target = i.cartButton
	}
	i.mu.Unlock()

	if target != nil {
		target.Focus()
	}
}
