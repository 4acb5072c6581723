package cart

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
)

// Store owns one in-memory cart. The local and remote stores are mirrors of it.
//
// A Store has a single owner: callers serialize their own calls. Storage
// failures never surface to the caller, they are logged and absorbed.
type Store struct {
	local  LocalStore
	remote RemoteStore
	key    string
	logger *log.Logger

	items  []Item
	userID string
	phase  Phase

	subs   []*subscription
	nextID int
}

type Options struct {
	// Local may be nil, in which case nothing is persisted and Hydrate yields
	// an empty cart.
	Local LocalStore
	// Remote may be nil, in which case MergeRemote and Sync do nothing.
	Remote RemoteStore
	// Key defaults to LocalKey.
	Key    string
	Logger *log.Logger
}

type subscription struct {
	id     int
	fn     Listener
	active bool
}

func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	key := opts.Key
	if key == "" {
		key = LocalKey
	}
	return &Store{
		local:  opts.Local,
		remote: opts.Remote,
		key:    key,
		logger: logger,
		items:  []Item{},
		phase:  PhaseGuest,
	}
}

// Hydrate replaces the in-memory cart with the locally persisted one.
func (s *Store) Hydrate() {
	s.items = s.loadLocal()
	s.notify()
}

// Add puts qty units of p into the cart. A non-positive qty counts as 1.
func (s *Store) Add(p Product, qty int) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		s.logger.Printf("cart: add ignored, product has no id")
		return
	}
	if qty < 1 {
		qty = 1
	}

	items := cloneItems(s.items)
	if i := indexOf(items, id); i >= 0 {
		items[i].Quantity += qty
	} else {
		items = append(items, Item{
			ID:       id,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: qty,
			Image:    p.Image,
		})
	}
	s.commit(items)
}

// SetQuantity replaces the quantity of id; qty <= 0 removes the item.
// An unknown id is ignored.
func (s *Store) SetQuantity(id string, qty int) {
	if qty <= 0 {
		s.Remove(id)
		return
	}
	items := cloneItems(s.items)
	i := indexOf(items, id)
	if i < 0 {
		return
	}
	items[i].Quantity = qty
	s.commit(items)
}

func (s *Store) Remove(id string) {
	items := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		if it.ID != id {
			items = append(items, it)
		}
	}
	s.commit(items)
}

func (s *Store) Clear() {
	s.commit([]Item{})
}

// Total is the sum of price * quantity over the current items.
func (s *Store) Total() float64 {
	var total float64
	for _, it := range s.items {
		total += it.Subtotal()
	}
	return total
}

// Items returns a copy of the current line items.
func (s *Store) Items() []Item {
	return cloneItems(s.items)
}

// Count is the number of distinct line items.
func (s *Store) Count() int {
	return len(s.items)
}

func (s *Store) UserID() string {
	return s.userID
}

func (s *Store) Phase() Phase {
	return s.phase
}

// Attach associates userID with the store, or detaches it when userID is
// empty. It never merges or syncs on its own.
func (s *Store) Attach(userID string) {
	userID = strings.TrimSpace(userID)
	switch {
	case userID == "":
		s.phase = PhaseGuest
	case userID != s.userID:
		s.phase = PhaseAttached
	}
	s.userID = userID
}

// SignIn attaches userID and merges its remote snapshot.
func (s *Store) SignIn(ctx context.Context, userID string) {
	s.Attach(userID)
	s.MergeRemote(ctx)
}

func (s *Store) SignOut() {
	s.Attach("")
}

// MergeRemote folds the attached user's remote snapshot into the cart.
//
// Quantities are summed on every call, so merging twice counts the remote
// quantities twice.
func (s *Store) MergeRemote(ctx context.Context) {
	userID := s.userID
	if userID == "" || s.remote == nil {
		return
	}
	if s.phase == PhaseMerged {
		s.logger.Printf("cart: merging again for user %s, remote quantities will be added twice", userID)
	}

	snap, err := s.remote.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrMalformedSnapshot) {
			s.logger.Printf("cart: remote snapshot for %s is malformed, ignoring it", userID)
		} else {
			s.logger.Printf("cart: load remote snapshot for %s: %v", userID, err)
		}
		return
	}
	if s.userID != userID {
		s.logger.Printf("cart: identity changed while fetching snapshot for %s, discarding it", userID)
		return
	}

	s.phase = PhaseMerged
	if snap == nil {
		return
	}
	s.commit(Merge(s.items, snap.Items))
}

// Sync overwrites the attached user's remote items with the current cart.
func (s *Store) Sync(ctx context.Context) {
	userID := s.userID
	if userID == "" || s.remote == nil {
		return
	}
	if err := s.remote.Put(ctx, userID, cloneItems(s.items)); err != nil {
		s.logger.Printf("cart: sync remote snapshot for %s: %v", userID, err)
		return
	}
	if s.userID == userID {
		s.phase = PhaseSynced
	}
}

// Subscribe registers fn for future notifications and returns a func that
// removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.nextID++
	sub := &subscription{id: s.nextID, fn: fn, active: true}
	s.subs = append(s.subs, sub)

	return func() {
		sub.active = false
		for i, other := range s.subs {
			if other.id == sub.id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) commit(items []Item) {
	s.items = items
	s.persistLocal()
	s.notify()
}

func (s *Store) notify() {
	// Subscribers added while notifying wait for the next mutation.
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	for _, sub := range subs {
		if !sub.active {
			continue
		}
		sub.fn(cloneItems(s.items))
	}
}

func (s *Store) loadLocal() []Item {
	if s.local == nil {
		return []Item{}
	}
	data, ok, err := s.local.Read(s.key)
	if err != nil {
		s.logger.Printf("cart: read local cart: %v", err)
		return []Item{}
	}
	if !ok || len(data) == 0 {
		return []Item{}
	}
	items, err := DecodeItems(data)
	if err != nil {
		s.logger.Printf("cart: discarding unreadable local cart: %v", err)
		return []Item{}
	}
	return items
}

func (s *Store) persistLocal() {
	if s.local == nil {
		return
	}
	if len(s.items) == 0 {
		if err := s.local.Delete(s.key); err != nil {
			s.logger.Printf("cart: delete local cart: %v", err)
		}
		return
	}
	data, err := EncodeItems(s.items)
	if err != nil {
		s.logger.Printf("cart: encode local cart: %v", err)
		return
	}
	if err := s.local.Write(s.key, data); err != nil {
		s.logger.Printf("cart: write local cart: %v", err)
	}
}

func indexOf(items []Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
