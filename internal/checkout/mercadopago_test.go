package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

func TestCreatePreference(t *testing.T) {
	var got preferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://mp.example/init/pref-1","collector_id":9}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{AccessToken: "TEST-token", BaseURL: srv.URL, PublicBaseURL: "https://cerveza.example/"}, srv.Client())
	require.NoError(t, err)

	pref, err := c.CreatePreference(context.Background(), []cart.Item{
		{ID: "ipa-1", Name: "IPA Patagonia", Price: 3490, Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, Preference{ID: "pref-1", InitPoint: "https://mp.example/init/pref-1"}, pref)

	require.Len(t, got.Items, 1)
	assert.Equal(t, preferenceItem{Title: "IPA Patagonia", Quantity: 2, UnitPrice: 3490, CurrencyID: DefaultCurrencyID}, got.Items[0])
	assert.Equal(t, "https://cerveza.example/?pago=ok", got.BackURLs.Success)
	assert.Equal(t, "https://cerveza.example/?pago=fail", got.BackURLs.Failure)
	assert.Equal(t, "https://cerveza.example/?pago=pending", got.BackURLs.Pending)
	assert.Equal(t, "approved", got.AutoReturn)
	assert.Equal(t, DefaultStatementDescriptor, got.StatementDescriptor)
}

func TestCreatePreference_Validation(t *testing.T) {
	c, err := NewClient(Config{}, nil)
	require.NoError(t, err)
	_, err = c.CreatePreference(context.Background(), []cart.Item{{ID: "a", Quantity: 1}})
	assert.ErrorIs(t, err, ErrMissingToken)

	c, err = NewClient(Config{AccessToken: "tok"}, nil)
	require.NoError(t, err)
	_, err = c.CreatePreference(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreatePreference_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid unit_price"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{AccessToken: "tok", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	_, err = c.CreatePreference(context.Background(), []cart.Item{{ID: "a", Name: "A", Price: -1, Quantity: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid unit_price")
	assert.False(t, errors.Is(err, ErrEmptyCart))
}

func TestCreatePreference_Defaults(t *testing.T) {
	c, err := NewClient(Config{AccessToken: "tok"}, nil)
	require.NoError(t, err)

	req := c.buildRequest([]cart.Item{{ID: "a", Name: "A", Price: 1, Quantity: 1}})
	assert.Equal(t, DefaultPublicBaseURL+"/?pago=ok", req.BackURLs.Success)
	assert.Equal(t, DefaultBaseURL, c.baseURL.String())
}
