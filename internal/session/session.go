package session

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zwaldoo1/Cerveza-artesanal/internal/cart"
	"github.com/zwaldoo1/Cerveza-artesanal/internal/localstore"
)

const DefaultIdleTTL = 30 * time.Minute

// Session is one device's cart. The store inside has a single owner, so every
// access goes through Do.
type Session struct {
	DeviceID string

	mu          sync.Mutex
	store       *cart.Store
	clock       func() time.Time
	lastSeen    atomic.Int64
	closed      atomic.Bool
	unsubscribe []func()
}

// Do runs fn with exclusive access to the session's store. It reports false,
// without running fn, once the session has been closed.
func (s *Session) Do(fn func(st *cart.Store)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.touch(s.clock())
	fn(s.store)
	return true
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// close unsubscribes the listeners. The caller holds s.mu.
func (s *Session) close() {
	s.closed.Store(true)
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
}

// ListenerFunc builds a subscriber for a freshly opened session.
type ListenerFunc func(deviceID string, st *cart.Store) cart.Listener

type Options struct {
	Local  localstore.Factory
	Remote cart.RemoteStore
	// Listeners are subscribed after the session's first hydrate.
	Listeners []ListenerFunc
	IdleTTL   time.Duration
	Logger    *log.Logger
}

// Manager keeps one Session per device id.
type Manager struct {
	opts   Options
	logger *log.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &Manager{
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open returns the device's session, creating and hydrating it from the
// device's local store on first use. Hydration runs without holding the
// manager lock; a session that loses the race to another Open is dropped
// before any listener sees it.
func (m *Manager) Open(deviceID string) *Session {
	if s := m.lookup(deviceID); s != nil {
		return s
	}

	var local cart.LocalStore
	if m.opts.Local != nil {
		local = m.opts.Local(deviceID)
	}
	store := cart.NewStore(cart.Options{
		Local:  local,
		Remote: m.opts.Remote,
		Logger: m.logger,
	})
	store.Hydrate()

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[deviceID]; ok && !s.closed.Load() {
		s.touch(m.now())
		return s
	}

	s := &Session{DeviceID: deviceID, store: store, clock: m.now}
	s.touch(m.now())
	for _, lf := range m.opts.Listeners {
		s.unsubscribe = append(s.unsubscribe, store.Subscribe(lf(deviceID, store)))
	}
	m.sessions[deviceID] = s
	return s
}

// lookup returns the device's live session and marks it as seen.
func (m *Manager) lookup(deviceID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[deviceID]
	if !ok || s.closed.Load() {
		return nil
	}
	s.touch(m.now())
	return s
}

// Do runs fn against the device's cart, reopening the session if it was
// closed between Open and Do.
func (m *Manager) Do(deviceID string, fn func(st *cart.Store)) {
	for !m.Open(deviceID).Do(fn) {
	}
}

// Close drops the device's session once its in-flight work is done. Its cart
// survives in the local store.
func (m *Manager) Close(deviceID string) {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	m.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.close()
	s.mu.Unlock()

	m.mu.Lock()
	if m.sessions[deviceID] == s {
		delete(m.sessions, deviceID)
	}
	m.mu.Unlock()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the TTL and reports how many.
// A session busy inside Do is left for the next sweep.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.idleSince(now) <= m.opts.IdleTTL || !s.mu.TryLock() {
			continue
		}
		s.close()
		s.mu.Unlock()
		delete(m.sessions, id)
		n++
	}
	return n
}

// Run sweeps on every tick until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.opts.IdleTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Printf("session: closed %d idle sessions", n)
			}
		}
	}
}
