// Package session holds the client's view of who is signed in and whether
// they administer a library, and tells subscribers whenever either changes.
package session

import (
	"context"
	"sync"

	"libreeze/internal/auth"

	"go.uber.org/zap"
)

type State int

const (
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// Store is the single source of truth for the current identity and admin
// flag. Subscribers are called synchronously, in registration order, first
// with the current value and then on every publication. A subscriber must not
// call SessionUser or CheckAdminStatus from inside its callback.
type Store struct {
	source Source
	admins AdminLookup
	logger *zap.Logger

	// pubMu serialises publications so subscribers see them in order.
	pubMu sync.Mutex

	mu         sync.Mutex
	identity   *auth.Identity
	state      State
	admin      bool
	generation uint64
	pending    chan struct{} // closed when the in-flight admin recomputation resolves
	identSubs  []subscription[*auth.Identity]
	adminSubs  []subscription[bool]
	nextSubID  int

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubSource func()
}

// New builds a store, subscribes it to source's auth-state changes and
// publishes the session source already holds. A failure to read that session
// is logged and leaves the state unknown.
func New(ctx context.Context, source Source, admins AdminLookup, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	bg, cancel := context.WithCancel(context.Background())
	s := &Store{
		source: source,
		admins: admins,
		logger: logger,
		ctx:    bg,
		cancel: cancel,
	}
	s.unsubSource = source.OnAuthStateChange(s.onAuthEvent)

	sess, err := source.GetSession(ctx)
	if err != nil {
		logger.Warn("initial session fetch failed", zap.Error(err))
		return s
	}
	s.publishSession(sess)
	return s
}

// Close detaches from the auth source and waits for in-flight admin lookups.
func (s *Store) Close() {
	s.unsubSource()
	s.cancel()
	s.wg.Wait()
}

func (s *Store) onAuthEvent(ev auth.Event) {
	s.logger.Debug("auth state changed", zap.String("event", string(ev.Kind)))
	s.publishSession(ev.Session)
}

func (s *Store) publishSession(sess *auth.Session) {
	if sess == nil {
		s.publishIdentity(nil)
		return
	}
	id := sess.Identity
	s.publishIdentity(&id)
}

// publishIdentity sets the identity and, for a non-nil identity, starts the
// admin recomputation. A nil identity sets the admin flag to false at once.
func (s *Store) publishIdentity(id *auth.Identity) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.identity = id
	s.generation++
	gen := s.generation
	prev := s.pending
	s.pending = nil
	if id == nil {
		s.state = StateAnonymous
		s.admin = false
	} else {
		s.state = StateAuthenticated
		s.pending = make(chan struct{})
	}
	pending := s.pending
	identSubs := append([]subscription[*auth.Identity](nil), s.identSubs...)
	adminSubs := append([]subscription[bool](nil), s.adminSubs...)
	s.mu.Unlock()

	// Waiters on a superseded recomputation re-check against the new one.
	if prev != nil {
		close(prev)
	}

	for _, sub := range identSubs {
		sub.fn(id)
	}
	if id == nil {
		for _, sub := range adminSubs {
			sub.fn(false)
		}
		return
	}

	s.wg.Add(1)
	go func(userID string) {
		defer s.wg.Done()
		isAdmin := s.lookupAdmin(s.ctx, userID)
		s.resolveAdmin(gen, pending, isAdmin)
	}(id.ID)
}

// resolveAdmin publishes a recomputation result unless the identity changed
// since it started.
func (s *Store) resolveAdmin(gen uint64, pending chan struct{}, isAdmin bool) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding admin status for a superseded identity")
		return
	}
	s.admin = isAdmin
	if s.pending == pending {
		s.pending = nil
	}
	adminSubs := append([]subscription[bool](nil), s.adminSubs...)
	s.mu.Unlock()

	if pending != nil {
		close(pending)
	}
	for _, sub := range adminSubs {
		sub.fn(isAdmin)
	}
}

// lookupAdmin fails closed: any error is logged and reported as false.
func (s *Store) lookupAdmin(ctx context.Context, userID string) bool {
	if s.admins == nil {
		return false
	}
	isAdmin, err := s.admins.IsAdmin(ctx, userID)
	if err != nil {
		s.logger.Error("error checking admin status", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return isAdmin
}

// SessionUser fetches the session from the source, publishes the identity it
// carries (or none) and starts the admin recomputation.
func (s *Store) SessionUser(ctx context.Context) (*auth.Identity, error) {
	sess, err := s.source.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	s.publishSession(sess)
	if sess == nil {
		return nil, nil
	}
	id := sess.Identity
	return &id, nil
}

// CheckAdminStatus recomputes the admin flag for userID and publishes it,
// provided the identity has not changed meanwhile. Lookup errors publish false.
func (s *Store) CheckAdminStatus(ctx context.Context, userID string) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	isAdmin := s.lookupAdmin(ctx, userID)
	s.resolveAdmin(gen, nil, isAdmin)
}

// AwaitAdmin waits for any in-flight admin recomputation and returns the
// resulting flag.
func (s *Store) AwaitAdmin(ctx context.Context) (bool, error) {
	for {
		s.mu.Lock()
		pending, admin := s.pending, s.admin
		s.mu.Unlock()
		if pending == nil {
			return admin, nil
		}
		select {
		case <-pending:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Token returns the current access token, or "" when nobody is signed in.
func (s *Store) Token(ctx context.Context) (string, error) {
	sess, err := s.source.GetSession(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.AccessToken, nil
}

func (s *Store) Identity() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

func (s *Store) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admin
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AdminPending reports whether an admin recomputation is in flight.
func (s *Store) AdminPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// SubscribeIdentity calls fn with the current identity and then on every
// publication. The returned func unsubscribes.
func (s *Store) SubscribeIdentity(fn func(*auth.Identity)) func() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.identSubs = append(s.identSubs, subscription[*auth.Identity]{id: id, fn: fn})
	current := s.identity
	s.mu.Unlock()

	fn(current)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.identSubs = removeSub(s.identSubs, id)
	}
}

// SubscribeAdmin calls fn with the current admin flag and then on every
// publication. The returned func unsubscribes.
func (s *Store) SubscribeAdmin(fn func(bool)) func() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.adminSubs = append(s.adminSubs, subscription[bool]{id: id, fn: fn})
	current := s.admin
	s.mu.Unlock()

	fn(current)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.adminSubs = removeSub(s.adminSubs, id)
	}
}

func removeSub[T any](subs []subscription[T], id int) []subscription[T] {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
