package tests

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/carusalgiz/shop-cloudfront/pkg/stream"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/cart"
)

func (s *StorefrontSuite) TestAddItem_PersistsAndWritesOutbox() {
	sc, err := s.CartService.ForSession(s.Ctx, testSession)
	s.Require().NoError(err)

	s.Require().NoError(sc.AddItem(s.Ctx, "p1"))
	s.Require().NoError(sc.AddItem(s.Ctx, "p1"))
	s.Require().NoError(sc.AddItem(s.Ctx, "p2"))

	s.Require().Equal(int64(2), sc.Snapshot().Count("p1"))
	s.Require().Equal(int64(1), sc.Snapshot().Count("p2"))

	s.Require().Equal(3, s.countRows(
		"SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = $2 AND topic = $3",
		testSession, domain.EventCartChanged, domain.TopicCartEvents,
	))

	var payload []byte
	err = s.DbPool.QueryRow(s.Ctx, "SELECT payload FROM outbox ORDER BY id DESC LIMIT 1").Scan(&payload)
	s.Require().NoError(err)

	var envelope domain.EventWrapper
	s.Require().NoError(json.Unmarshal(payload, &envelope))
	s.Require().Equal(domain.EventCartChanged, envelope.Event)

	var event domain.CartChangedEvent
	s.Require().NoError(json.Unmarshal(envelope.Payload, &event))
	s.Require().Equal("p2", event.ProductID)
	s.Require().Equal(int64(1), event.Quantity)
	s.Require().Equal("instance-a", event.Origin)
}

func (s *StorefrontSuite) TestRemoveItem_FloorsAtZero() {
	sc, err := s.CartService.ForSession(s.Ctx, testSession)
	s.Require().NoError(err)

	s.Require().NoError(sc.RemoveItem(s.Ctx, "p1"))
	s.Require().Equal(int64(0), sc.Snapshot().Count("p1"))
	s.Require().Equal(0, s.countRows("SELECT COUNT(*) FROM outbox"))

	s.Require().NoError(sc.AddItem(s.Ctx, "p1"))
	s.Require().NoError(sc.RemoveItem(s.Ctx, "p1"))
	s.Require().NoError(sc.RemoveItem(s.Ctx, "p1"))

	s.Require().Equal(int64(0), sc.Snapshot().Count("p1"))
	s.Require().Equal(0, s.countRows("SELECT COUNT(*) FROM cart_items WHERE session_id = $1", testSession))
	s.Require().Equal(2, s.countRows("SELECT COUNT(*) FROM outbox"))
}

func (s *StorefrontSuite) TestMutations_RejectEmptyIdentifiers() {
	s.Require().ErrorIs(s.CartService.AddItem(s.Ctx, testSession, ""), cart.ErrInvalidProductID)
	s.Require().ErrorIs(s.CartService.AddItem(s.Ctx, "", "p1"), cart.ErrInvalidSession)

	_, err := s.CartService.ForSession(s.Ctx, "")
	s.Require().ErrorIs(err, cart.ErrInvalidSession)
}

func (s *StorefrontSuite) TestForSession_LoadsPersistedCart() {
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p1"))
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p1"))

	restarted := s.newCartService("instance-b")
	sc, err := restarted.ForSession(s.Ctx, testSession)
	s.Require().NoError(err)

	s.Require().Equal(cart.Mapping{"p1": 2}, sc.Snapshot())

	other, err := restarted.ForSession(s.Ctx, otherSession)
	s.Require().NoError(err)
	s.Require().Empty(other.Snapshot())
}

func (s *StorefrontSuite) TestCart_EmitsCurrentThenChanges() {
	live, err := s.CartService.Cart(s.Ctx, testSession)
	s.Require().NoError(err)

	var seen []int64
	sub := stream.Map(live, func(m cart.Mapping) int64 { return m.Count("p1") }).Subscribe(func(n int64) {
		seen = append(seen, n)
	})
	defer sub.Unsubscribe()

	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p1"))
	s.Require().NoError(s.CartService.RemoveItem(s.Ctx, testSession, "p1"))

	s.Require().Equal([]int64{0, 1, 0}, seen)
}

func (s *StorefrontSuite) TestApplyRemote() {
	local, err := s.CartService.ForSession(s.Ctx, testSession)
	s.Require().NoError(err)

	event := domain.CartChangedEvent{
		SessionID: testSession,
		ProductID: "p2",
		Quantity:  4,
		Version:   1,
		Origin:    "instance-b",
		ChangedAt: time.Now().UTC(),
	}

	s.Require().True(s.CartService.ApplyRemote(s.Ctx, event))
	s.Require().Equal(int64(4), local.Snapshot().Count("p2"))

	event.Quantity = 0
	event.Version = 2
	s.Require().True(s.CartService.ApplyRemote(s.Ctx, event))
	s.Require().Empty(local.Snapshot())

	event.Origin = "instance-a"
	event.Quantity = 9
	event.Version = 3
	s.Require().False(s.CartService.ApplyRemote(s.Ctx, event), "own events are already applied")

	event.Origin = "instance-b"
	event.SessionID = otherSession
	s.Require().False(s.CartService.ApplyRemote(s.Ctx, event), "session not loaded here")
}

func (s *StorefrontSuite) lineVersion(sessionID, productID string) int64 {
	var v int64
	s.Require().NoError(s.DbPool.QueryRow(
		s.Ctx,
		"SELECT version FROM cart_items WHERE session_id = $1 AND product_id = $2",
		sessionID, productID,
	).Scan(&v))
	return v
}

func (s *StorefrontSuite) TestApplyRemote_DropsEventOlderThanLoadedCart() {
	remote := s.newCartService("instance-b")
	s.Require().NoError(remote.AddItem(s.Ctx, testSession, "p1"))
	s.Require().NoError(remote.AddItem(s.Ctx, testSession, "p1"))
	second := s.lineVersion(testSession, "p1")
	s.Require().NoError(remote.AddItem(s.Ctx, testSession, "p1"))
	third := s.lineVersion(testSession, "p1")
	s.Require().Greater(third, second)

	local, err := s.CartService.ForSession(s.Ctx, testSession)
	s.Require().NoError(err)
	s.Require().Equal(int64(3), local.Snapshot().Count("p1"))

	late := domain.CartChangedEvent{
		SessionID: testSession,
		ProductID: "p1",
		Quantity:  2,
		Version:   second,
		Origin:    "instance-b",
	}
	s.Require().False(s.CartService.ApplyRemote(s.Ctx, late))
	s.Require().Equal(int64(3), local.Snapshot().Count("p1"))

	s.Require().NoError(remote.RemoveItem(s.Ctx, testSession, "p1"))
	s.Require().NoError(remote.RemoveItem(s.Ctx, testSession, "p1"))
	s.Require().NoError(remote.RemoveItem(s.Ctx, testSession, "p1"))

	var payload []byte
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, "SELECT payload FROM outbox ORDER BY id DESC LIMIT 1").Scan(&payload))
	var envelope domain.EventWrapper
	s.Require().NoError(json.Unmarshal(payload, &envelope))
	var removed domain.CartChangedEvent
	s.Require().NoError(json.Unmarshal(envelope.Payload, &removed))
	s.Require().Zero(removed.Quantity)
	s.Require().Greater(removed.Version, third)

	s.Require().True(s.CartService.ApplyRemote(s.Ctx, removed))
	s.Require().Empty(local.Snapshot())

	s.Require().False(s.CartService.ApplyRemote(s.Ctx, late), "line removed after this change")
	s.Require().Empty(local.Snapshot())
}

func (s *StorefrontSuite) TestLocalMutationsCarryIncreasingVersions() {
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p1"))
	first := s.lineVersion(testSession, "p1")
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p1"))
	second := s.lineVersion(testSession, "p1")
	s.Require().Greater(second, first)

	rows, err := s.DbPool.Query(s.Ctx, "SELECT payload FROM outbox ORDER BY id")
	s.Require().NoError(err)
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var payload []byte
		s.Require().NoError(rows.Scan(&payload))

		var envelope domain.EventWrapper
		s.Require().NoError(json.Unmarshal(payload, &envelope))
		var event domain.CartChangedEvent
		s.Require().NoError(json.Unmarshal(envelope.Payload, &event))
		versions = append(versions, event.Version)
	}
	s.Require().NoError(rows.Err())
	s.Require().Equal([]int64{first, second}, versions)
}

func (s *StorefrontSuite) TestCheckout() {
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p2"))
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p1"))
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p1"))

	lines, err := s.CartService.Checkout(s.Ctx, testSession, s.Catalog)
	s.Require().NoError(err)
	s.Require().Len(lines, 2)

	s.Require().Equal("p1", lines[0].ID)
	s.Require().Equal(int64(2), lines[0].OrderedCount)
	s.Require().Equal("39.98", lines[0].TotalPrice.StringFixed(2))
	s.Require().Equal("p2", lines[1].ID)
	s.Require().Equal("5.50", lines[1].TotalPrice.StringFixed(2))
	s.Require().Equal("45.48", domain.CheckoutTotal(lines).StringFixed(2))

	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "missing"))
	_, err = s.CartService.Checkout(s.Ctx, testSession, s.Catalog)
	s.Require().ErrorContains(err, "missing")
}

func (s *StorefrontSuite) cartMessage(eventID int64, event domain.CartChangedEvent) *sarama.ConsumerMessage {
	payload, err := json.Marshal(event)
	s.Require().NoError(err)

	value, err := json.Marshal(domain.EventWrapper{
		Event:   domain.EventCartChanged,
		EventID: eventID,
		Payload: payload,
	})
	s.Require().NoError(err)

	return &sarama.ConsumerMessage{Topic: domain.TopicCartEvents, Key: []byte(event.SessionID), Value: value}
}

func (s *StorefrontSuite) TestConsumer_AppliesRemoteEventOnce() {
	local, err := s.CartService.ForSession(s.Ctx, testSession)
	s.Require().NoError(err)

	msg := s.cartMessage(7, domain.CartChangedEvent{
		SessionID: testSession,
		ProductID: "p1",
		Quantity:  2,
		Version:   1,
		Origin:    "instance-b",
	})

	s.Require().NoError(s.Consumer.Handle(s.Ctx, msg))
	s.Require().Equal(int64(2), local.Snapshot().Count("p1"))

	s.CartService.ApplyRemote(s.Ctx, domain.CartChangedEvent{
		SessionID: testSession,
		ProductID: "p1",
		Quantity:  5,
		Version:   2,
		Origin:    "instance-c",
	})

	s.Require().NoError(s.Consumer.Handle(s.Ctx, msg))
	s.Require().Equal(int64(5), local.Snapshot().Count("p1"), "redelivered event must not be applied again")

	s.Require().Equal(1, s.countRows(
		"SELECT COUNT(*) FROM processed_events WHERE consumer = $1 AND event_id = $2",
		s.Consumer.Name(), 7,
	))
}

func (s *StorefrontSuite) TestConsumer_SkipsOwnAndForeignMessages() {
	local, err := s.CartService.ForSession(s.Ctx, testSession)
	s.Require().NoError(err)

	own := s.cartMessage(8, domain.CartChangedEvent{
		SessionID: testSession,
		ProductID: "p1",
		Quantity:  3,
		Version:   1,
		Origin:    s.CartService.Origin(),
	})
	s.Require().NoError(s.Consumer.Handle(s.Ctx, own))

	s.Require().NoError(s.Consumer.Handle(s.Ctx, &sarama.ConsumerMessage{Value: []byte("{not json")}))

	product, err := domain.NewEventWrapper(domain.EventProductUpdated, domain.ProductChangedEvent{ProductID: "p1"})
	s.Require().NoError(err)
	s.Require().NoError(s.Consumer.Handle(s.Ctx, &sarama.ConsumerMessage{Value: product}))

	s.Require().Empty(local.Snapshot())
	s.Require().Equal(0, s.countRows("SELECT COUNT(*) FROM processed_events"))
}
