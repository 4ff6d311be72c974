package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/adapter/memory"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/service"
)

const testSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	favs   *memory.FavoritesStore
}

func newTestEnv(t *testing.T, rps float64) *testEnv {
	t.Helper()
	return newTestEnvWithSource(t, rps, nil)
}

// newTestEnvWithSource serves the default table unless source is given.
func newTestEnvWithSource(t *testing.T, rps float64, source service.ProductSource) *testEnv {
	t.Helper()
	log := logger.NewNop()
	table, err := memory.DefaultProductTable()
	require.NoError(t, err)
	if source == nil {
		source = service.NewLocalSource(table, 50)
	}

	store := memory.NewKeyValueStore()
	favs := memory.NewFavoritesStore()
	sessions := service.NewSessionService(store, favs, nil, log, nil, nil, service.SessionServiceConfig{WriteTimeout: time.Second})
	h := NewHandler(
		source,
		table,
		sessions,
		service.NewPriceHistoryService(table, nil, nil, log),
		service.NewAlertService(memory.NewAlertRepository(), nil, nil, log, nil, nil),
		service.QueryCoordinatorConfig{Debounce: 10 * time.Millisecond, FetchTimeout: time.Second},
		log,
		nil,
	)
	srv := httptest.NewServer(NewRouter(h, RouterConfig{JWTSecret: testSecret, RateLimitRPS: rps, RateLimitBurst: 1}))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, favs: favs}
}

func signToken(t *testing.T, userID string, expires time.Time) string {
	t.Helper()
	claims := Claims{
		UserID:           userID,
		Email:            userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expires)},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type requestOpts struct {
	session string
	token   string
	body    interface{}
}

func (e *testEnv) do(t *testing.T, method, path string, opts requestOpts) (*http.Response, map[string]interface{}) {
	t.Helper()
	var body bytes.Buffer
	if opts.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(opts.body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &body)
	require.NoError(t, err)
	if opts.session != "" {
		req.Header.Set(SessionHeader, opts.session)
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 0)
	resp, body := env.do(t, http.MethodGet, "/health", requestOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestParseFilterQuery(t *testing.T) {
	values := url.Values{}
	values.Set("q", "phone")
	values.Set("minPrice", "10")
	values.Set("maxPrice", "200")
	values.Set("marketplaces", "ebay")
	values.Set("sortBy", "price_asc")

	f, err := ParseFilterQuery(values)
	require.NoError(t, err)
	assert.Equal(t, "phone", f.Query)
	assert.Equal(t, 10.0, *f.MinPrice)
	assert.Equal(t, 200.0, *f.MaxPrice)
	assert.False(t, f.Includes(entity.MarketplaceAmazon))
	assert.True(t, f.Includes(entity.MarketplaceEbay))
	assert.Equal(t, entity.SortPriceAsc, f.SortBy)

	_, err = ParseFilterQuery(url.Values{"minPrice": {"abc"}})
	assert.ErrorIs(t, err, entity.ErrInvalidFilter)
	_, err = ParseFilterQuery(url.Values{"minPrice": {"50"}, "maxPrice": {"10"}})
	assert.ErrorIs(t, err, entity.ErrInvalidFilter)
	_, err = ParseFilterQuery(url.Values{"marketplaces": {"walmart"}})
	assert.ErrorIs(t, err, entity.ErrInvalidFilter)
	_, err = ParseFilterQuery(url.Values{"sortBy": {"random"}})
	assert.ErrorIs(t, err, entity.ErrInvalidFilter)
}

func TestSearchProducts(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, body := env.do(t, http.MethodGet, "/api/products?marketplaces=amazon&sortBy=price_asc", requestOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 8.0, body["total"])
	products := body["products"].([]interface{})
	require.Len(t, products, 8)
	prev := 0.0
	for _, raw := range products {
		p := raw.(map[string]interface{})
		assert.Equal(t, "amazon", p["marketplace"])
		assert.GreaterOrEqual(t, p["price"].(float64), prev)
		prev = p["price"].(float64)
	}

	resp, body = env.do(t, http.MethodGet, "/api/products?minPrice=100&maxPrice=10", requestOpts{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

type failingQueryService struct {
	err error
}

func (f failingQueryService) Query(context.Context, entity.FilterConfig, entity.Page) (entity.QueryResult, error) {
	return entity.QueryResult{}, f.err
}

func TestSearchProducts_SourceFailureIsBadGateway(t *testing.T) {
	source := service.NewRemoteSource(failingQueryService{err: errors.New("connection refused")}, 50)
	env := newTestEnvWithSource(t, 0, source)

	resp, body := env.do(t, http.MethodGet, "/api/products?q=sony", requestOpts{})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "product source unavailable", body["error"])

	resp, _ = env.do(t, http.MethodGet, "/api/products?minPrice=100&maxPrice=10", requestOpts{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductLookupEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, body := env.do(t, http.MethodGet, "/api/products/amz_1", requestOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "amz_1", body["id"])

	resp, _ = env.do(t, http.MethodGet, "/api/products/nope", requestOpts{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/products/batch", requestOpts{body: map[string]interface{}{"ids": []string{"ebay_1", "missing", "amz_2"}}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	products := body["products"].([]interface{})
	require.Len(t, products, 2)
	assert.Equal(t, "ebay_1", products[0].(map[string]interface{})["id"])

	resp, body = env.do(t, http.MethodGet, "/api/categories", requestOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["categories"])
	assert.Less(t, body["minPrice"].(float64), body["maxPrice"].(float64))
}

func TestPriceHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, body := env.do(t, http.MethodGet, "/api/products/ebay_2/price-history", requestOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	points := body["points"].([]interface{})
	assert.GreaterOrEqual(t, len(points), 2)
	assert.LessOrEqual(t, len(points), entity.PriceWindowSize)
	assert.Equal(t, false, body["synthetic"])

	resp, body = env.do(t, http.MethodGet, "/api/products/amz_2/price-history", requestOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["points"].([]interface{}), entity.PriceWindowSize)
	assert.Equal(t, true, body["synthetic"])
}

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, body := env.do(t, http.MethodPost, "/api/cart/items", requestOpts{body: map[string]interface{}{"productId": "amz_1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, session)
	assert.Equal(t, 1.0, body["totalItems"])

	resp, body = env.do(t, http.MethodPost, "/api/cart/items", requestOpts{session: session, body: map[string]interface{}{"productId": "amz_1", "quantity": 2}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, session, resp.Header.Get(SessionHeader))
	assert.Equal(t, 3.0, body["totalItems"])
	assert.Len(t, body["items"].([]interface{}), 1)

	resp, _ = env.do(t, http.MethodPost, "/api/cart/items", requestOpts{session: session, body: map[string]interface{}{"productId": "amz_1", "quantity": 0}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/cart/items", requestOpts{session: session, body: map[string]interface{}{"productId": "missing"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodPatch, "/api/cart/items/amz_1", requestOpts{session: session, body: map[string]interface{}{"quantity": 0}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.0, body["totalItems"])

	_, body = env.do(t, http.MethodGet, "/api/cart", requestOpts{session: session})
	assert.Empty(t, body["items"])
}

func TestFavoritesGuestAndSignIn(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, body := env.do(t, http.MethodPost, "/api/favorites/amz_3/toggle", requestOpts{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := resp.Header.Get(SessionHeader)
	assert.Equal(t, true, body["favorite"])

	_, body = env.do(t, http.MethodGet, "/api/favorites", requestOpts{session: session})
	assert.Equal(t, "guest", body["mode"])

	token := signToken(t, "u1", time.Now().Add(time.Hour))
	resp, body = env.do(t, http.MethodGet, "/api/favorites", requestOpts{session: session, token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "authenticated", body["mode"])
	assert.Equal(t, []interface{}{"amz_3"}, body["ids"])

	ids, err := env.favs.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"amz_3"}, ids)

	resp, body = env.do(t, http.MethodPost, "/api/favorites/amz_3/toggle", requestOpts{session: session, token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["favorite"])
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, 0)

	resp, _ := env.do(t, http.MethodGet, "/api/alerts", requestOpts{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/products", requestOpts{token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired := signToken(t, "u1", time.Now().Add(-time.Hour))
	resp, body := env.do(t, http.MethodGet, "/api/alerts", requestOpts{token: expired})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token has expired", body["error"])
}

func TestAlertsFlow(t *testing.T) {
	env := newTestEnv(t, 0)
	token := signToken(t, "u1", time.Now().Add(time.Hour))
	other := signToken(t, "u2", time.Now().Add(time.Hour))

	resp, body := env.do(t, http.MethodPost, "/api/alerts", requestOpts{token: token, body: map[string]interface{}{"productId": "amz_1", "targetPrice": 10}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	alertID := body["id"].(string)

	resp, _ = env.do(t, http.MethodPost, "/api/alerts", requestOpts{token: token, body: map[string]interface{}{"productId": "amz_1", "targetPrice": -1}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = env.do(t, http.MethodGet, "/api/alerts", requestOpts{token: token})
	assert.Len(t, body["alerts"].([]interface{}), 1)

	resp, _ = env.do(t, http.MethodDelete, "/api/alerts/"+alertID, requestOpts{token: other})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/alerts/"+alertID, requestOpts{token: token})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, 0.001)

	resp, _ := env.do(t, http.MethodGet, "/api/categories", requestOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/categories", requestOpts{})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/health", requestOpts{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func readFrameUntil(t *testing.T, ws *websocket.Conn, match func(SearchFrame) bool) SearchFrame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, ws.SetReadDeadline(deadline))
		var frame SearchFrame
		require.NoError(t, ws.ReadJSON(&frame))
		if match(frame) {
			return frame
		}
	}
	t.Fatal("expected frame not received")
	return SearchFrame{}
}

func TestSearchSocket(t *testing.T) {
	env := newTestEnv(t, 0)
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/search"

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	frame := readFrameUntil(t, ws, func(f SearchFrame) bool {
		return f.Snapshot != nil && f.Snapshot.State == service.QueryStateReady
	})
	assert.Equal(t, 16, frame.Snapshot.Total)

	require.NoError(t, ws.WriteJSON(SearchRequest{Action: ActionSetQuery, Query: "zzzz-no-match"}))
	frame = readFrameUntil(t, ws, func(f SearchFrame) bool {
		return f.Snapshot != nil && f.Snapshot.State == service.QueryStateReady && f.Snapshot.Filters.Query == "zzzz-no-match"
	})
	assert.Zero(t, frame.Snapshot.Total)
	assert.Empty(t, frame.Snapshot.Results)

	require.NoError(t, ws.WriteJSON(SearchRequest{Action: "dance"}))
	frame = readFrameUntil(t, ws, func(f SearchFrame) bool { return f.Type == "error" })
	assert.Contains(t, frame.Error, "unknown action")
}

func TestSearchSocket_UpperCaseMarketplaceKey(t *testing.T) {
	env := newTestEnv(t, 0)
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/search"

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	readFrameUntil(t, ws, func(f SearchFrame) bool {
		return f.Snapshot != nil && f.Snapshot.State == service.QueryStateReady
	})

	msg := `{"action":"set_filters","filters":{"marketplaces":{"AMAZON":false,"ebay":true},"condition":"all","category":"all","sortBy":"price_asc"}}`
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(msg)))

	frame := readFrameUntil(t, ws, func(f SearchFrame) bool {
		return f.Snapshot != nil && f.Snapshot.State == service.QueryStateReady &&
			f.Snapshot.Filters.SortBy == entity.SortPriceAsc
	})
	assert.Equal(t, map[entity.Marketplace]bool{entity.MarketplaceAmazon: false, entity.MarketplaceEbay: true}, frame.Snapshot.Filters.Marketplaces)
	require.NotEmpty(t, frame.Snapshot.Results)
	for _, p := range frame.Snapshot.Results {
		assert.Equal(t, entity.MarketplaceEbay, p.Marketplace)
	}
}
