package tests

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/carusalgiz/shop-cloudfront/services/storefront/internal/transport/http/handler"
	"github.com/carusalgiz/shop-cloudfront/services/storefront/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

type productBody struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Index       int             `json:"index"`
	CountInCart int64           `json:"countInCart"`
}

func (s *StorefrontSuite) do(method, target string) *http.Response {
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: testSession})

	resp, err := s.App.Test(req, 5000)
	s.Require().NoError(err)
	return resp
}

func (s *StorefrontSuite) decode(resp *http.Response, out any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
}

func (s *StorefrontSuite) TestHTTP_ListProductsWithCartCounts() {
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p2"))

	resp := s.do(http.MethodGet, "/api/products?limit=2&offset=1")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Products   []productBody `json:"products"`
		TotalCount int64         `json:"total_count"`
	}
	s.decode(resp, &body)

	s.Require().Equal(int64(3), body.TotalCount)
	s.Require().Len(body.Products, 2)
	s.Require().Equal("p2", body.Products[0].ID)
	s.Require().Equal(1, body.Products[0].Index)
	s.Require().Equal(int64(1), body.Products[0].CountInCart)
	s.Require().Equal("p3", body.Products[1].ID)
	s.Require().Equal(2, body.Products[1].Index)
	s.Require().Zero(body.Products[1].CountInCart)
}

func (s *StorefrontSuite) TestHTTP_ListProductsRejectsBadQuery() {
	resp := s.do(http.MethodGet, "/api/products?limit=500")
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *StorefrontSuite) TestHTTP_FindByID() {
	resp := s.do(http.MethodGet, "/api/products/p1")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body productBody
	s.decode(resp, &body)
	s.Require().Equal("Vinyl", body.Title)
	s.Require().Equal("19.99", body.Price.StringFixed(2))

	resp = s.do(http.MethodGet, "/api/products/nope")
	s.Require().Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/products/"+strings.Repeat("x", 65))
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *StorefrontSuite) TestHTTP_AddAndRemove() {
	var body struct {
		ProductID   string `json:"productId"`
		CountInCart int64  `json:"countInCart"`
	}

	resp := s.do(http.MethodPost, "/api/products/p1/cart")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &body)
	s.Require().Equal("p1", body.ProductID)
	s.Require().Equal(int64(1), body.CountInCart)

	resp = s.do(http.MethodPost, "/api/products/p1/cart")
	s.decode(resp, &body)
	s.Require().Equal(int64(2), body.CountInCart)

	for range 3 {
		resp = s.do(http.MethodDelete, "/api/products/p1/cart")
		s.Require().Equal(http.StatusOK, resp.StatusCode)
		s.decode(resp, &body)
	}
	s.Require().Zero(body.CountInCart)

	s.Require().Equal(2.0, testutil.ToFloat64(s.Metrics.CartMutations.WithLabelValues("add", "ok")))
	s.Require().Equal(3.0, testutil.ToFloat64(s.Metrics.CartMutations.WithLabelValues("remove", "ok")))

	resp = s.do(http.MethodGet, "/metrics")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
}

func (s *StorefrontSuite) TestHTTP_IssuesSessionCookie() {
	req := httptest.NewRequest(http.MethodPost, "/api/products/p1/cart", nil)
	resp, err := s.App.Test(req, 5000)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var sid string
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			sid = c.Value
		}
	}
	s.Require().NotEmpty(sid)
	s.Require().Equal(1, s.countRows("SELECT COUNT(*) FROM cart_items WHERE session_id = $1", sid))
}

func (s *StorefrontSuite) TestHTTP_OpenNavigatesFromList() {
	resp := s.do(http.MethodPost, "/api/products/p1/open")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal("/products/p1", resp.Header.Get(handler.HXLocation))

	var body struct {
		Location string `json:"location"`
	}
	s.decode(resp, &body)
	s.Require().Equal("/products/p1", body.Location)
}

func (s *StorefrontSuite) TestHTTP_OpenOnDetailPageDoesNothing() {
	resp := s.do(http.MethodPost, "/api/products/p1/open?detail=1")
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)
	s.Require().Empty(resp.Header.Get(handler.HXLocation))
}

func (s *StorefrontSuite) TestHTTP_Checkout() {
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p1"))
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p1"))
	s.Require().NoError(s.CartService.AddItem(s.Ctx, testSession, "p3"))

	resp := s.do(http.MethodGet, "/api/cart/checkout")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Items []struct {
			ID           string          `json:"id"`
			OrderedCount int64           `json:"orderedCount"`
			TotalPrice   decimal.Decimal `json:"totalPrice"`
		} `json:"items"`
		Total string `json:"total"`
	}
	s.decode(resp, &body)

	s.Require().Len(body.Items, 2)
	s.Require().Equal("p1", body.Items[0].ID)
	s.Require().Equal("39.98", body.Items[0].TotalPrice.StringFixed(2))
	s.Require().Equal("p3", body.Items[1].ID)
	s.Require().Equal("40.98", body.Total)
}

func (s *StorefrontSuite) TestHTTP_StreamEmitsCountsAndFocus() {
	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = s.CartService.AddItem(s.Ctx, testSession, "p1")
		time.Sleep(100 * time.Millisecond)
		_ = s.CartService.RemoveItem(s.Ctx, testSession, "p1")
	}()

	resp := s.do(http.MethodGet, "/api/products/p1/stream")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Equal("text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	body := string(raw)

	first := strings.Index(body, `"count":0`)
	added := strings.Index(body, `"count":1`)
	s.Require().GreaterOrEqual(first, 0, body)
	s.Require().Greater(added, first, body)
	s.Require().Greater(strings.LastIndex(body, `"count":0`), added, body)

	s.Require().Contains(body, `event: focus`+"\n"+`data: {"target":"add"}`)
	s.Require().Contains(body, `event: focus`+"\n"+`data: {"target":"cart-button"}`)
	s.Require().Zero(testutil.ToFloat64(s.Metrics.OpenStreams))
}
