package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/checkout"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/contracts"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/events"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/middleware"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/session"
)

type PreferenceCreator interface {
	CreatePreference(ctx context.Context, items []cart.Item) (checkout.Preference, error)
}

type Handler struct {
	sessions        *session.Manager
	checkout        PreferenceCreator
	publisher       events.CartPublisher
	logger          *log.Logger
	remoteTimeout   time.Duration
	upstreamTimeout time.Duration
}

type HandlerOptions struct {
	Sessions        *session.Manager
	Checkout        PreferenceCreator
	Publisher       events.CartPublisher
	Logger          *log.Logger
	RemoteTimeout   time.Duration
	UpstreamTimeout time.Duration
}

func NewHandler(opts HandlerOptions) *Handler {
	h := &Handler{
		sessions:        opts.Sessions,
		checkout:        opts.Checkout,
		publisher:       opts.Publisher,
		logger:          opts.Logger,
		remoteTimeout:   opts.RemoteTimeout,
		upstreamTimeout: opts.UpstreamTimeout,
	}
	if h.publisher == nil {
		h.publisher = events.Noop{}
	}
	if h.logger == nil {
		h.logger = log.New(io.Discard, "", 0)
	}
	if h.remoteTimeout <= 0 {
		h.remoteTimeout = 5 * time.Second
	}
	if h.upstreamTimeout <= 0 {
		h.upstreamTimeout = 10 * time.Second
	}
	return h
}

type cartView struct {
	DeviceID string      `json:"deviceId"`
	UserID   string      `json:"userId,omitempty"`
	Phase    cart.Phase  `json:"phase"`
	Items    []cart.Item `json:"items"`
	Total    float64     `json:"total"`
	Count    int         `json:"count"`
}

func viewOf(deviceID string, st *cart.Store) cartView {
	return cartView{
		DeviceID: deviceID,
		UserID:   st.UserID(),
		Phase:    st.Phase(),
		Items:    st.Items(),
		Total:    st.Total(),
		Count:    st.Count(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "cart-service"})
}

// withStore runs fn against the caller's cart and answers with the cart as
// it stands afterwards.
func (h *Handler) withStore(w http.ResponseWriter, r *http.Request, fn func(st *cart.Store)) {
	deviceID := middleware.GetDeviceID(r.Context())
	var view cartView
	h.sessions.Do(deviceID, func(st *cart.Store) {
		if fn != nil {
			fn(st)
		}
		view = viewOf(deviceID, st)
	})
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.withStore(w, r, nil)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
		Image string  `json:"image"`
		Qty   int     `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.ID) == "" {
		middleware.WriteError(w, r, http.StatusBadRequest, "missing id")
		return
	}
	if body.Price < 0 {
		middleware.WriteError(w, r, http.StatusBadRequest, "price must not be negative")
		return
	}

	p := cart.Product{ID: body.ID, Name: body.Name, Price: body.Price, Image: body.Image}
	h.withStore(w, r, func(st *cart.Store) {
		st.Add(p, body.Qty)
	})
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Qty *int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Qty == nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "missing qty")
		return
	}

	h.withStore(w, r, func(st *cart.Store) {
		st.SetQuantity(id, *body.Qty)
	})
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.withStore(w, r, func(st *cart.Store) {
		st.Remove(id)
	})
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.withStore(w, r, func(st *cart.Store) {
		st.Clear()
	})
}

func (h *Handler) Hydrate(w http.ResponseWriter, r *http.Request) {
	h.withStore(w, r, func(st *cart.Store) {
		st.Hydrate()
	})
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, r, http.StatusUnauthorized, "sign in requires an authenticated user")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.remoteTimeout)
	defer cancel()

	h.withStore(w, r, func(st *cart.Store) {
		st.SignIn(ctx, userID)
	})
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.withStore(w, r, func(st *cart.Store) {
		st.SignOut()
	})
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	deviceID := middleware.GetDeviceID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), h.remoteTimeout)
	defer cancel()

	var (
		view     cartView
		attached string
	)
	h.sessions.Do(deviceID, func(st *cart.Store) {
		attached = st.UserID()
		if attached != "" && attached == userID {
			st.Sync(ctx)
		}
		view = viewOf(deviceID, st)
	})

	if attached == "" || attached != userID {
		middleware.WriteError(w, r, http.StatusConflict, "cart is not signed in as this user")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "checkout is not configured")
		return
	}
	clearAfter, _ := strconv.ParseBool(r.URL.Query().Get("clear"))

	deviceID := middleware.GetDeviceID(r.Context())

	var (
		items  []cart.Item
		userID string
	)
	h.sessions.Do(deviceID, func(st *cart.Store) {
		items = st.Items()
		userID = st.UserID()
	})

	ctx, cancel := context.WithTimeout(r.Context(), h.upstreamTimeout)
	defer cancel()

	pref, err := h.checkout.CreatePreference(ctx, items)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		middleware.WriteError(w, r, http.StatusBadRequest, "cart is empty")
		return
	case errors.Is(err, checkout.ErrMissingToken):
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "checkout is not configured")
		return
	case err != nil:
		h.logger.Printf("checkout: create preference for device %s: %v", deviceID, err)
		middleware.WriteError(w, r, http.StatusBadGateway, "payment provider error")
		return
	}

	evt := contracts.CheckedOut{
		DeviceID:     deviceID,
		UserID:       userID,
		PreferenceID: pref.ID,
		Items:        items,
	}
	if err := h.publisher.PublishCartCheckedOut(ctx, evt, middleware.GetCorrelationID(r.Context())); err != nil {
		h.logger.Printf("checkout: publish CartCheckedOut for device %s: %v", deviceID, err)
	}

	if clearAfter {
		h.sessions.Do(deviceID, func(st *cart.Store) {
			// Lines added while the preference was being created stay put.
			if !sameItems(st.Items(), items) {
				h.logger.Printf("checkout: cart for device %s changed during checkout, not clearing", deviceID)
				return
			}
			st.Clear()
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":         pref.ID,
		"init_point": pref.InitPoint,
	})
}

func sameItems(a, b []cart.Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
