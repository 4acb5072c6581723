package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
)

const (
	DefaultBaseURL             = "https://api.mercadopago.com"
	DefaultPublicBaseURL       = "http://localhost:4321"
	DefaultStatementDescriptor = "CervezaArtesana"
	DefaultCurrencyID          = "CLP"

	preferencesPath = "/checkout/preferences"
)

var (
	ErrMissingToken = errors.New("mercado pago access token is not configured")
	ErrEmptyCart    = errors.New("cart is empty")
)

type Config struct {
	AccessToken         string
	BaseURL             string
	PublicBaseURL       string
	StatementDescriptor string
	CurrencyID          string
}

// Preference is the part of a Checkout Pro preference the storefront needs
// to redirect the buyer.
type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type backURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferenceRequest struct {
	Items               []preferenceItem `json:"items"`
	BackURLs            backURLs         `json:"back_urls"`
	AutoReturn          string           `json:"auto_return"`
	StatementDescriptor string           `json:"statement_descriptor"`
}

type Client struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = DefaultPublicBaseURL
	}
	if cfg.StatementDescriptor == "" {
		cfg.StatementDescriptor = DefaultStatementDescriptor
	}
	if cfg.CurrencyID == "" {
		cfg.CurrencyID = DefaultCurrencyID
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mercado pago base url %q: %w", cfg.BaseURL, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{cfg: cfg, baseURL: u, http: httpClient}, nil
}

// CreatePreference registers a payment preference for items and returns the
// URL the buyer should be sent to.
func (c *Client) CreatePreference(ctx context.Context, items []cart.Item) (Preference, error) {
	if c.cfg.AccessToken == "" {
		return Preference{}, ErrMissingToken
	}
	if len(items) == 0 {
		return Preference{}, ErrEmptyCart
	}

	body, err := json.Marshal(c.buildRequest(items))
	if err != nil {
		return Preference{}, fmt.Errorf("marshal preference: %w", err)
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: preferencesPath})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return Preference{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Preference{}, fmt.Errorf("create preference: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Preference{}, fmt.Errorf("read preference response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Preference{}, fmt.Errorf("mercado pago error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var pref Preference
	if err := json.Unmarshal(raw, &pref); err != nil {
		return Preference{}, fmt.Errorf("decode preference: %w", err)
	}
	return pref, nil
}

func (c *Client) buildRequest(items []cart.Item) preferenceRequest {
	base := strings.TrimRight(c.cfg.PublicBaseURL, "/")
	req := preferenceRequest{
		Items: make([]preferenceItem, 0, len(items)),
		BackURLs: backURLs{
			Success: base + "/?pago=ok",
			Failure: base + "/?pago=fail",
			Pending: base + "/?pago=pending",
		},
		AutoReturn:          "approved",
		StatementDescriptor: c.cfg.StatementDescriptor,
	}
	for _, it := range items {
		req.Items = append(req.Items, preferenceItem{
			Title:      it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.Price,
			CurrencyID: c.cfg.CurrencyID,
		})
	}
	return req
}
