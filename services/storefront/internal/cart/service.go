package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carusalgiz/shop-cloudfront/pkg/db"
	"github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/mylogger"
	outboxDomain "github.com/carusalgiz/shop-cloudfront/pkg/outbox/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/outbox/worker"
	"github.com/carusalgiz/shop-cloudfront/pkg/stream"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrInvalidProductID = errors.New("invalid product id")
	ErrInvalidSession   = errors.New("invalid session")
)

// ProductLookup resolves the catalog data of a cart line.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type session struct {
	// mu serializes mutations so the subject sees quantities in commit order.
	mu       sync.Mutex
	subject  *stream.BehaviorSubject[Mapping]
	versions map[string]int64

	// lastUsed is guarded by Service.mu.
	lastUsed time.Time
}

func newSession(lines map[string]Line, now time.Time) *session {
	items := make(Mapping, len(lines))
	versions := make(map[string]int64, len(lines))
	for id, line := range lines {
		items[id] = line.Quantity
		versions[id] = line.Version
	}

	return &session{
		subject:  stream.NewBehaviorSubject(items),
		versions: versions,
		lastUsed: now,
	}
}

// apply sets the quantity of productID unless version is not newer than the
// last one applied for it. Callers hold mu.
func (s *session) apply(productID string, qty, version int64) bool {
	if version <= s.versions[productID] {
		return false
	}
	s.versions[productID] = version

	s.subject.Update(func(m Mapping) Mapping {
		return m.With(productID, qty)
	})

	return true
}

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultEvictInterval = time.Minute
)

// Service owns the carts of all sessions served by this instance. Each
// session cart is a behaviour subject seeded from the database on first
// access and kept current by local mutations and remote CartChanged events.
// Sessions nobody observes are dropped after idleTTL and reloaded on demand.
type Service struct {
	pool       *pgxpool.Pool
	repo       Repository
	outboxRepo worker.OutboxRepository
	origin     string
	logger     *zap.Logger

	idleTTL       time.Duration
	evictInterval time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*Service)

func WithIdleTTL(d time.Duration) Option {
	return func(s *Service) { s.idleTTL = d }
}

func WithEvictInterval(d time.Duration) Option {
	return func(s *Service) { s.evictInterval = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	pool *pgxpool.Pool,
	repo Repository,
	outboxRepo worker.OutboxRepository,
	origin string,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		pool:          pool,
		repo:          repo,
		outboxRepo:    outboxRepo,
		origin:        origin,
		logger:        logger,
		idleTTL:       defaultIdleTTL,
		evictInterval: defaultEvictInterval,
		now:           time.Now,
		sessions:      make(map[string]*session),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Origin identifies this instance in published CartChanged events.
func (s *Service) Origin() string {
	return s.origin
}

// ForSession returns the cart of sessionID, loading persisted items on
// first access.
func (s *Service) ForSession(ctx context.Context, sessionID string) (*SessionCart, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionCart{svc: s, sessionID: sessionID, state: sess}, nil
}

func (s *Service) session(ctx context.Context, sessionID string) (*session, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		sess.lastUsed = s.now()
	}
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	lines, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		mylogger.Error(ctx, s.logger, "error loading cart", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sessionID]; ok {
		sess.lastUsed = s.now()
		return sess, nil
	}

	sess = newSession(lines, s.now())
	s.sessions[sessionID] = sess

	return sess, nil
}

// Sessions returns the number of session carts held in memory.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// EvictIdle drops every session that has no observers and has not been
// accessed for idleTTL. Sessions with a mutation in flight are kept. It
// returns the number of sessions dropped.
func (s *Service) EvictIdle() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUsed) < s.idleTTL || sess.subject.Observers() > 0 {
			continue
		}
		if !sess.mu.TryLock() {
			continue
		}

		delete(s.sessions, id)
		sess.subject.Close()
		sess.mu.Unlock()
		evicted++
	}

	return evicted
}

// StartEviction runs EvictIdle every evictInterval until ctx is done.
func (s *Service) StartEviction(ctx context.Context) {
	mylogger.Info(
		ctx,
		s.logger,
		"Starting cart eviction",
		zap.Duration("interval", s.evictInterval),
		zap.Duration("idle_ttl", s.idleTTL),
	)

	ticker := time.NewTicker(s.evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, s.logger, "Cart eviction stopping")
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				mylogger.Debug(ctx, s.logger, "evicted idle carts", zap.Int("count", n), zap.Int("remaining", s.Sessions()))
			}
		}
	}
}

// Cart returns the live mapping of sessionID.
func (s *Service) Cart(ctx context.Context, sessionID string) (stream.Observable[Mapping], error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return sess.subject, nil
}

func (s *Service) AddItem(ctx context.Context, sessionID, productID string) error {
	return s.mutate(ctx, sessionID, productID, func(ctx context.Context, tx pgx.Tx) (Line, bool, error) {
		line, err := s.repo.Increment(ctx, tx, sessionID, productID)
		return line, err == nil, err
	})
}

// RemoveItem decrements the quantity of productID, deleting the line when it
// reaches zero. Removing an item that is not in the cart does nothing.
func (s *Service) RemoveItem(ctx context.Context, sessionID, productID string) error {
	return s.mutate(ctx, sessionID, productID, func(ctx context.Context, tx pgx.Tx) (Line, bool, error) {
		return s.repo.Decrement(ctx, tx, sessionID, productID)
	})
}

func (s *Service) mutate(
	ctx context.Context,
	sessionID string,
	productID string,
	op func(ctx context.Context, tx pgx.Tx) (Line, bool, error),
) error {
	if productID == "" {
		return ErrInvalidProductID
	}

	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	var (
		line    Line
		changed bool
	)

	err = db.InTx(ctx, s.pool, s.logger, func(tx pgx.Tx) error {
		var err error
		line, changed, err = op(ctx, tx)
		if err != nil || !changed {
			return err
		}

		return s.saveEvent(ctx, tx, domain.CartChangedEvent{
			SessionID: sessionID,
			ProductID: productID,
			Quantity:  line.Quantity,
			Version:   line.Version,
			Origin:    s.origin,
			ChangedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	if changed {
		sess.apply(productID, line.Quantity, line.Version)
	}

	mylogger.Debug(
		ctx,
		s.logger,
		"cart updated",
		zap.String("session_id", sessionID),
		zap.String("product_id", productID),
		zap.Int64("quantity", line.Quantity),
		zap.Int64("version", line.Version),
		zap.Bool("changed", changed),
	)

	return nil
}

func (s *Service) saveEvent(ctx context.Context, tx pgx.Tx, event domain.CartChangedEvent) error {
	outboxEvent, err := outboxDomain.NewOutboxEvent(
		domain.TopicCartEvents,
		"Cart",
		event.SessionID,
		domain.EventCartChanged,
		event,
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

// ApplyRemote folds a CartChanged event from another instance into the
// local subject of its session. Events from this instance, events for
// sessions not loaded here and events older than the line state already
// applied are ignored. It reports whether a subject was updated.
func (s *Service) ApplyRemote(ctx context.Context, event domain.CartChangedEvent) bool {
	if event.Origin == s.origin {
		return false
	}

	s.mu.Lock()
	sess, ok := s.sessions[event.SessionID]
	s.mu.Unlock()
	if !ok {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	fields := []zap.Field{
		zap.String("session_id", event.SessionID),
		zap.String("product_id", event.ProductID),
		zap.Int64("quantity", event.Quantity),
		zap.Int64("version", event.Version),
		zap.String("origin", event.Origin),
	}

	if !sess.apply(event.ProductID, event.Quantity, event.Version) {
		mylogger.Debug(ctx, s.logger, "stale remote cart change dropped", fields...)
		return false
	}

	mylogger.Debug(ctx, s.logger, "remote cart change applied", fields...)

	return true
}

// Checkout prices every line of the session cart, ordered by product id.
func (s *Service) Checkout(ctx context.Context, sessionID string, lookup ProductLookup) ([]domain.ProductCheckout, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	items := sess.subject.Value()
	lines := make([]domain.ProductCheckout, 0, len(items))

	for _, id := range items.IDs() {
		product, err := lookup.GetProduct(ctx, id)
		if err != nil {
			mylogger.Warn(ctx, s.logger, "checkout lookup failed", zap.String("product_id", id), zap.Error(err))
			return nil, fmt.Errorf("error resolving product %s: %w", id, err)
		}

		lines = append(lines, domain.NewProductCheckout(product, items.Count(id)))
	}

	return lines, nil
}

// SessionCart is the cart of one session.
type SessionCart struct {
	svc       *Service
	sessionID string
	state     *session
}

func (c *SessionCart) SessionID() string {
	return c.sessionID
}

func (c *SessionCart) Cart() stream.Observable[Mapping] {
	return c.state.subject
}

// Snapshot returns the current mapping.
func (c *SessionCart) Snapshot() Mapping {
	return c.state.subject.Value()
}

func (c *SessionCart) AddItem(ctx context.Context, productID string) error {
	return c.svc.AddItem(ctx, c.sessionID, productID)
}

func (c *SessionCart) RemoveItem(ctx context.Context, productID string) error {
	return c.svc.RemoveItem(ctx, c.sessionID, productID)
}
