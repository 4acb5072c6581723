package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/checkout"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/contracts"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/events"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/localstore"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/middleware"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/remote"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/session"
)

const testDevice = "a9c9bf1d-32f2-46a0-9243-97c2cf8a6c4a"

type fakeCheckout struct {
	items    []cart.Item
	pref     checkout.Preference
	err      error
	onCreate func()
}

func (f *fakeCheckout) CreatePreference(ctx context.Context, items []cart.Item) (checkout.Preference, error) {
	f.items = items
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.err != nil {
		return checkout.Preference{}, f.err
	}
	if len(items) == 0 {
		return checkout.Preference{}, checkout.ErrEmptyCart
	}
	return f.pref, nil
}

type fakePublisher struct {
	mu         sync.Mutex
	checkedOut []contracts.CheckedOut
	cids       []string
	err        error
}

func (f *fakePublisher) PublishCartUpdated(context.Context, events.CartUpdated) error { return nil }

func (f *fakePublisher) PublishCartCheckedOut(ctx context.Context, c contracts.CheckedOut, cid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkedOut = append(f.checkedOut, c)
	f.cids = append(f.cids, cid)
	return f.err
}

type testEnv struct {
	router    http.Handler
	remote    *remote.Memory
	checkout  *fakeCheckout
	publisher *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		remote:    remote.NewMemory(),
		checkout:  &fakeCheckout{pref: checkout.Preference{ID: "pref-1", InitPoint: "https://mp.example/init"}},
		publisher: &fakePublisher{},
	}
	logger := log.New(io.Discard, "", 0)
	sessions := session.NewManager(session.Options{
		Local:  localstore.MemoryFactory(),
		Remote: env.remote,
		Logger: logger,
	})
	h := NewHandler(HandlerOptions{
		Sessions:  sessions,
		Checkout:  env.checkout,
		Publisher: env.publisher,
		Logger:    logger,
	})
	env.router = NewRouter(h, logger, []string{"*"}, nil)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(middleware.HeaderDeviceID, testDevice)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartView {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v cartView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"cart-service"}`, rec.Body.String())
}

func TestGetCart_IssuesDeviceID(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	v := decodeCart(t, rec)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderDeviceID))
	assert.Equal(t, rec.Header().Get(middleware.HeaderDeviceID), v.DeviceID)
	assert.Equal(t, cart.PhaseGuest, v.Phase)
	assert.Empty(t, v.Items)
}

func TestCartMutations(t *testing.T) {
	env := newTestEnv(t)

	v := decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"A","name":"X","price":100,"qty":2}`, nil))
	assert.Equal(t, 200.0, v.Total)

	v = decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"B","name":"Y","price":50}`, nil))
	assert.Equal(t, 250.0, v.Total)
	assert.Equal(t, 2, v.Count)

	v = decodeCart(t, env.do(t, http.MethodPut, "/api/cart/items/A", `{"qty":1}`, nil))
	assert.Equal(t, 150.0, v.Total)

	v = decodeCart(t, env.do(t, http.MethodDelete, "/api/cart/items/B", "", nil))
	assert.Equal(t, 100.0, v.Total)

	v = decodeCart(t, env.do(t, http.MethodPut, "/api/cart/items/A", `{"qty":0}`, nil))
	assert.Empty(t, v.Items)

	decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"C","price":10}`, nil))
	v = decodeCart(t, env.do(t, http.MethodDelete, "/api/cart", "", nil))
	assert.Empty(t, v.Items)
	assert.Zero(t, v.Total)
}

func TestCartPersistsAcrossHydrate(t *testing.T) {
	env := newTestEnv(t)
	decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"A","name":"X","price":100,"qty":2,"image":"/a.png"}`, nil))

	v := decodeCart(t, env.do(t, http.MethodPost, "/api/cart/hydrate", "", nil))
	require.Len(t, v.Items, 1)
	assert.Equal(t, cart.Item{ID: "A", Name: "X", Price: 100, Quantity: 2, Image: "/a.png"}, v.Items[0])
}

func TestAddItem_Validation(t *testing.T) {
	env := newTestEnv(t)
	tests := map[string]string{
		"bad json":       `{"id":`,
		"missing id":     `{"name":"X","price":1}`,
		"negative price": `{"id":"A","price":-1}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/cart/items", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSetQuantity_RequiresQty(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/cart/items/A", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidDeviceID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/cart", "", map[string]string{middleware.HeaderDeviceID: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignInMergeAndSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.remote.Put(ctx, "user1", []cart.Item{{ID: "B", Name: "Y", Price: 50, Quantity: 3}}))

	decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"A","name":"X","price":100,"qty":2}`, nil))
	decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"B","name":"Y","price":50,"qty":1}`, nil))

	rec := env.do(t, http.MethodPost, "/api/cart/signin", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	user := map[string]string{middleware.HeaderUserID: "user1"}
	v := decodeCart(t, env.do(t, http.MethodPost, "/api/cart/signin", "", user))
	assert.Equal(t, "user1", v.UserID)
	assert.Equal(t, cart.PhaseMerged, v.Phase)
	assert.Equal(t, 400.0, v.Total)

	v = decodeCart(t, env.do(t, http.MethodPost, "/api/cart/sync", "", user))
	assert.Equal(t, cart.PhaseSynced, v.Phase)

	snap, err := env.remote.Get(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, v.Items, snap.Items)

	rec = env.do(t, http.MethodPost, "/api/cart/sync", "", map[string]string{middleware.HeaderUserID: "someone-else"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	v = decodeCart(t, env.do(t, http.MethodPost, "/api/cart/signout", "", nil))
	assert.Equal(t, cart.PhaseGuest, v.Phase)
	assert.Empty(t, v.UserID)
	assert.Equal(t, 400.0, v.Total, "signing out keeps the cart")

	rec = env.do(t, http.MethodPost, "/api/cart/sync", "", user)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckout(t *testing.T) {
	env := newTestEnv(t)
	decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"ipa","name":"IPA","price":3490,"qty":2}`, nil))

	rec := env.do(t, http.MethodPost, "/api/checkout", "", map[string]string{middleware.HeaderCorrelationID: "cid-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":"pref-1","init_point":"https://mp.example/init"}`, rec.Body.String())

	require.Len(t, env.checkout.items, 1)
	require.Len(t, env.publisher.checkedOut, 1)
	assert.Equal(t, testDevice, env.publisher.checkedOut[0].DeviceID)
	assert.Equal(t, "pref-1", env.publisher.checkedOut[0].PreferenceID)
	assert.Equal(t, "cid-1", env.publisher.cids[0])

	v := decodeCart(t, env.do(t, http.MethodGet, "/api/cart", "", nil))
	assert.Len(t, v.Items, 1, "cart is kept unless clear is requested")

	rec = env.do(t, http.MethodPost, "/api/checkout?clear=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeCart(t, env.do(t, http.MethodGet, "/api/cart", "", nil))
	assert.Empty(t, v.Items)
}

func TestCheckout_ClearKeepsLinesAddedMeanwhile(t *testing.T) {
	env := newTestEnv(t)
	decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"ipa","name":"IPA","price":3490,"qty":2}`, nil))
	env.checkout.onCreate = func() {
		env.checkout.onCreate = nil
		decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"stout","name":"Stout","price":3990,"qty":1}`, nil))
	}

	rec := env.do(t, http.MethodPost, "/api/checkout?clear=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, env.checkout.items, 1)
	assert.Equal(t, "ipa", env.checkout.items[0].ID)

	v := decodeCart(t, env.do(t, http.MethodGet, "/api/cart", "", nil))
	require.Len(t, v.Items, 2)
	assert.Equal(t, "ipa", v.Items[0].ID)
	assert.Equal(t, "stout", v.Items[1].ID)
}

func TestCheckout_Errors(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/checkout", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, env.publisher.checkedOut)
	})

	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t)
		env.checkout.err = checkout.ErrMissingToken
		decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"a","price":1}`, nil))
		rec := env.do(t, http.MethodPost, "/api/checkout", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("provider failure keeps the cart", func(t *testing.T) {
		env := newTestEnv(t)
		env.checkout.err = errors.New("mercado pago error (500): boom")
		decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"a","price":1}`, nil))

		rec := env.do(t, http.MethodPost, "/api/checkout?clear=true", "", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Empty(t, env.publisher.checkedOut)

		v := decodeCart(t, env.do(t, http.MethodGet, "/api/cart", "", nil))
		assert.Len(t, v.Items, 1)
	})

	t.Run("publish failure still answers", func(t *testing.T) {
		env := newTestEnv(t)
		env.publisher.err = errors.New("broker down")
		decodeCart(t, env.do(t, http.MethodPost, "/api/cart/items", `{"id":"a","price":1}`, nil))

		rec := env.do(t, http.MethodPost, "/api/checkout", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/cart/items", nil)
	req.Header.Set("Origin", "https://cerveza.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "https://cerveza.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
