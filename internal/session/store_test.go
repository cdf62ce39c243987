package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"libreeze/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu        sync.Mutex
	sess      *auth.Session
	err       error
	listeners map[int]func(auth.Event)
	nextID    int
}

func newFakeSource(sess *auth.Session) *fakeSource {
	return &fakeSource{sess: sess, listeners: map[int]func(auth.Event){}}
}

func (f *fakeSource) GetSession(context.Context) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess, f.err
}

func (f *fakeSource) OnAuthStateChange(fn func(auth.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeSource) signIn(id auth.Identity) {
	s := &auth.Session{AccessToken: "tok-" + id.ID, Identity: id}
	f.mu.Lock()
	f.sess = s
	ls := make([]func(auth.Event), 0, len(f.listeners))
	for _, l := range f.listeners {
		ls = append(ls, l)
	}
	f.mu.Unlock()
	for _, l := range ls {
		l(auth.Event{Kind: auth.EventSignedIn, Session: s})
	}
}

func (f *fakeSource) signOut() {
	f.mu.Lock()
	f.sess = nil
	ls := make([]func(auth.Event), 0, len(f.listeners))
	for _, l := range f.listeners {
		ls = append(ls, l)
	}
	f.mu.Unlock()
	for _, l := range ls {
		l(auth.Event{Kind: auth.EventSignedOut})
	}
}

func (f *fakeSource) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

type fakeAdmins struct {
	mu     sync.Mutex
	admins map[string]bool
	err    error
	gates  map[string]chan struct{}
}

func (f *fakeAdmins) IsAdmin(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	gate := f.gates[userID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admins[userID], f.err
}

var (
	alice = auth.Identity{ID: "alice", Email: "alice@example.com"}
	bob   = auth.Identity{ID: "bob", Email: "bob@example.com"}
)

func awaitAdmin(t *testing.T, s *Store) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := s.AwaitAdmin(ctx)
	require.NoError(t, err)
	return ok
}

func TestStore_StartsAnonymousWithoutSession(t *testing.T) {
	src := newFakeSource(nil)
	s := New(context.Background(), src, &fakeAdmins{}, zaptest.NewLogger(t))
	defer s.Close()

	assert.Equal(t, StateAnonymous, s.State())
	assert.Nil(t, s.Identity())
	assert.False(t, s.IsAdmin())
	assert.False(t, s.AdminPending())
	assert.False(t, awaitAdmin(t, s))
}

func TestStore_StartsUnknownWhenSessionFetchFails(t *testing.T) {
	src := newFakeSource(nil)
	src.err = errors.New("platform unreachable")
	s := New(context.Background(), src, &fakeAdmins{}, zaptest.NewLogger(t))
	defer s.Close()

	assert.Equal(t, StateUnknown, s.State())
}

func TestStore_ExistingSessionResolvesAdmin(t *testing.T) {
	src := newFakeSource(&auth.Session{AccessToken: "tok", Identity: alice})
	s := New(context.Background(), src, &fakeAdmins{admins: map[string]bool{"alice": true}}, zaptest.NewLogger(t))
	defer s.Close()

	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, &alice, s.Identity())
	assert.True(t, awaitAdmin(t, s))
	assert.True(t, s.IsAdmin())

	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestStore_SubscribersGetCurrentValueThenChangesInOrder(t *testing.T) {
	src := newFakeSource(nil)
	s := New(context.Background(), src, &fakeAdmins{}, zaptest.NewLogger(t))
	defer s.Close()

	var mu sync.Mutex
	var calls []string
	record := func(name string) func(*auth.Identity) {
		return func(id *auth.Identity) {
			mu.Lock()
			defer mu.Unlock()
			if id == nil {
				calls = append(calls, name+":nil")
				return
			}
			calls = append(calls, name+":"+id.ID)
		}
	}

	unsubA := s.SubscribeIdentity(record("a"))
	s.SubscribeIdentity(record("b"))

	src.signIn(alice)
	unsubA()
	src.signOut()
	awaitAdmin(t, s)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a:nil", "b:nil", "a:alice", "b:alice", "b:nil"}, calls)
}

func TestStore_SignOutPublishesFalseImmediately(t *testing.T) {
	src := newFakeSource(&auth.Session{Identity: alice})
	s := New(context.Background(), src, &fakeAdmins{admins: map[string]bool{"alice": true}}, zaptest.NewLogger(t))
	defer s.Close()
	require.True(t, awaitAdmin(t, s))

	var flags []bool
	var mu sync.Mutex
	s.SubscribeAdmin(func(v bool) {
		mu.Lock()
		defer mu.Unlock()
		flags = append(flags, v)
	})

	src.signOut()

	assert.Equal(t, StateAnonymous, s.State())
	assert.False(t, s.IsAdmin())
	assert.False(t, s.AdminPending())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, flags)
}

func TestStore_LookupErrorFailsClosed(t *testing.T) {
	src := newFakeSource(&auth.Session{Identity: alice})
	admins := &fakeAdmins{admins: map[string]bool{"alice": true}, err: errors.New("multiple rows returned")}
	s := New(context.Background(), src, admins, zaptest.NewLogger(t))
	defer s.Close()

	ok, err := s.AwaitAdmin(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SupersededRecomputationIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	admins := &fakeAdmins{
		admins: map[string]bool{"alice": true, "bob": false},
		gates:  map[string]chan struct{}{"alice": gate},
	}
	src := newFakeSource(nil)
	s := New(context.Background(), src, admins, zaptest.NewLogger(t))

	src.signIn(alice)
	assert.True(t, s.AdminPending())

	src.signIn(bob)
	assert.False(t, awaitAdmin(t, s))

	// alice's lookup resolves late with true; it must not leak into bob's session.
	close(gate)
	s.Close()
	assert.False(t, s.IsAdmin())
	assert.Equal(t, &bob, s.Identity())
}

func TestStore_AwaitAdminHonoursContext(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	admins := &fakeAdmins{gates: map[string]chan struct{}{"alice": gate}}
	src := newFakeSource(&auth.Session{Identity: alice})
	s := New(context.Background(), src, admins, zaptest.NewLogger(t))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.AwaitAdmin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.AdminPending())
}

func TestStore_SessionUser(t *testing.T) {
	src := newFakeSource(nil)
	admins := &fakeAdmins{admins: map[string]bool{"alice": true}}
	s := New(context.Background(), src, admins, zaptest.NewLogger(t))
	defer s.Close()

	id, err := s.SessionUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, id)

	src.mu.Lock()
	src.sess = &auth.Session{Identity: alice}
	src.mu.Unlock()

	id, err = s.SessionUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &alice, id)
	assert.Equal(t, &alice, s.Identity())
	assert.True(t, awaitAdmin(t, s))

	src.mu.Lock()
	src.err = errors.New("boom")
	src.mu.Unlock()
	_, err = s.SessionUser(context.Background())
	assert.Error(t, err)
}

func TestStore_CheckAdminStatus(t *testing.T) {
	src := newFakeSource(&auth.Session{Identity: alice})
	admins := &fakeAdmins{admins: map[string]bool{"alice": false}}
	s := New(context.Background(), src, admins, zaptest.NewLogger(t))
	defer s.Close()
	require.False(t, awaitAdmin(t, s))

	admins.mu.Lock()
	admins.admins["alice"] = true
	admins.mu.Unlock()

	s.CheckAdminStatus(context.Background(), "alice")
	assert.True(t, s.IsAdmin())
}

func TestStore_CloseDetachesFromSource(t *testing.T) {
	src := newFakeSource(nil)
	s := New(context.Background(), src, &fakeAdmins{}, zaptest.NewLogger(t))
	assert.Equal(t, 1, src.listenerCount())
	s.Close()
	assert.Equal(t, 0, src.listenerCount())
}

func TestStore_TokenWithoutSession(t *testing.T) {
	s := New(context.Background(), newFakeSource(nil), &fakeAdmins{}, zaptest.NewLogger(t))
	defer s.Close()

	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", token)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "anonymous", StateAnonymous.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
}
