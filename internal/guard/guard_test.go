package guard

import (
	"context"
	"errors"
	"testing"

	"libreeze/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) SessionUser(ctx context.Context) (*auth.Identity, error) {
	args := m.Called(ctx)
	id, _ := args.Get(0).(*auth.Identity)
	return id, args.Error(1)
}

func (m *mockSessions) AwaitAdmin(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

type recordingNavigator struct {
	paths []string
}

func (n *recordingNavigator) Navigate(path string) { n.paths = append(n.paths, path) }

type memRedirects struct {
	path string
	err  error
}

func (r *memRedirects) Set(path string) error { r.path = path; return r.err }
func (r *memRedirects) Get() (string, error)  { return r.path, r.err }
func (r *memRedirects) Clear() error          { r.path = ""; return r.err }

func newGuards() (*Guards, *mockSessions, *recordingNavigator, *memRedirects) {
	s := &mockSessions{}
	n := &recordingNavigator{}
	r := &memRedirects{}
	return &Guards{Sessions: s, Navigator: n, Redirects: r}, s, n, r
}

var ada = &auth.Identity{ID: "u-1", Email: "ada@example.com"}

func TestAuthenticated(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous is sent to login and path remembered", func(t *testing.T) {
		g, s, nav, redirects := newGuards()
		s.On("SessionUser", ctx).Return(nil, nil)

		ok, err := g.Authenticated(ctx, "/books/add")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{LoginPath}, nav.paths)
		assert.Equal(t, "/books/add", redirects.path)
	})

	t.Run("signed-in user passes without side effects", func(t *testing.T) {
		g, s, nav, redirects := newGuards()
		s.On("SessionUser", ctx).Return(ada, nil)

		ok, err := g.Authenticated(ctx, "/books/add")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, nav.paths)
		assert.Empty(t, redirects.path)
	})

	t.Run("session error is returned without navigating", func(t *testing.T) {
		g, s, nav, _ := newGuards()
		s.On("SessionUser", ctx).Return(nil, errors.New("offline"))

		ok, err := g.Authenticated(ctx, "/dashboard")
		assert.Error(t, err)
		assert.False(t, ok)
		assert.Empty(t, nav.paths)
	})
}

func TestAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("non-admin goes to dashboard", func(t *testing.T) {
		g, s, nav, _ := newGuards()
		s.On("AwaitAdmin", ctx).Return(false, nil)

		ok, err := g.Admin(ctx, "/lending/lend")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{DashboardPath}, nav.paths)
	})

	t.Run("admin passes", func(t *testing.T) {
		g, s, nav, _ := newGuards()
		s.On("AwaitAdmin", ctx).Return(true, nil)

		ok, err := g.Admin(ctx, "/lending/lend")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, nav.paths)
		s.AssertNotCalled(t, "SessionUser", mock.Anything)
	})
}

func TestPublicOnly(t *testing.T) {
	ctx := context.Background()

	t.Run("signed-in user goes to dashboard", func(t *testing.T) {
		g, s, nav, _ := newGuards()
		s.On("SessionUser", ctx).Return(ada, nil)

		ok, err := g.PublicOnly(ctx, "/auth/login")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{DashboardPath}, nav.paths)
	})

	t.Run("anonymous passes", func(t *testing.T) {
		g, s, nav, _ := newGuards()
		s.On("SessionUser", ctx).Return(nil, nil)

		ok, err := g.PublicOnly(ctx, "/auth/register")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, nav.paths)
	})
}

func TestConsumeRedirect(t *testing.T) {
	g, _, _, redirects := newGuards()

	path, err := g.ConsumeRedirect()
	require.NoError(t, err)
	assert.Equal(t, DashboardPath, path)

	redirects.path = "/lending/history"
	path, err = g.ConsumeRedirect()
	require.NoError(t, err)
	assert.Equal(t, "/lending/history", path)
	assert.Empty(t, redirects.path)
}

func TestRun_StopsAtFirstDenial(t *testing.T) {
	var calls []string
	allow := func(name string) Func {
		return func(context.Context, string) (bool, error) {
			calls = append(calls, name)
			return true, nil
		}
	}
	deny := func(context.Context, string) (bool, error) {
		calls = append(calls, "deny")
		return false, nil
	}

	ok, err := Run(context.Background(), "/x", allow("a"), deny, allow("b"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "deny"}, calls)

	ok, err = Run(context.Background(), "/x")
	require.NoError(t, err)
	assert.True(t, ok)
}
