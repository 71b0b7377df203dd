package guard

import (
	"context"
	"strings"
	"testing"

	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession is a hand-written Session. fetchResult is the user FetchUser
// installs; nil means the fetch fails and the session is cleared.
type fakeSession struct {
	session     models.Session
	fetchResult *models.User
	fetches     int
}

func (f *fakeSession) Snapshot() models.Session { return f.session }

func (f *fakeSession) FetchUser(ctx context.Context) {
	f.fetches++
	if f.session.AccessToken == "" {
		return
	}
	if f.fetchResult == nil {
		f.session = models.Session{}
		return
	}
	f.session.User = f.fetchResult
}

func newTestGuard(s Session) *Guard {
	g := New(logr.Discard(), s, nil)
	g.LoadDefaultPolicies()
	return g
}

// --- buildPrefixes tests ---
func TestBuildPrefixes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"simple nested path", "/a/b/c", []string{"/a/b/c", "/a/b", "/a", "/"}},
		{"root only", "/", []string{"/"}},
		{"empty string treated as root", "", []string{"/"}},
		{"no leading slash", "x/y", []string{"/x/y", "/x", "/"}},
		{"single segment", "/history", []string{"/history", "/"}},
		{"path with trailing slash", "/auth/login/", []string{"/auth/login", "/auth", "/"}},
		{"detection with id", "/detection/5b1d", []string{"/detection/5b1d", "/detection", "/"}},
		{"root with trailing slashes", "///", []string{"/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, buildPrefixes(tt.input))
		})
	}
}

func TestFindMatchingPolicy(t *testing.T) {
	g := New(logr.Discard(), &fakeSession{}, nil)
	g.LoadDefaultPolicies()
	g.SetPolicy("about", AccessPublic)
	g.SetPolicy("/auth/logout/", AccessAuthenticated)

	tests := []struct {
		path      string
		want      AccessLevel
		wantFound bool
	}{
		{"/auth/login", AccessGuestOnly, true},
		{"/auth/register", AccessGuestOnly, true},
		{"/auth/logout", AccessAuthenticated, true},
		{"/about", AccessPublic, true},
		{"/history", AccessAuthenticated, true},
		{"/", AccessAuthenticated, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := g.FindMatchingPolicy(tt.path)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}

	empty := New(logr.Discard(), &fakeSession{}, nil)
	got, found := empty.FindMatchingPolicy("/anything")
	assert.False(t, found)
	assert.Equal(t, AccessPublic, got)
}

func TestCheck_DecisionTable(t *testing.T) {
	user := &models.User{Username: "neo"}

	tests := []struct {
		name        string
		session     models.Session
		fetchResult *models.User
		target      string
		want        Decision
		wantFetches int
		wantAuthed  bool
	}{
		{
			name:   "protected, no token",
			target: "/history?page=2",
			want:   Decision{Redirect: "/auth/login?redirect=%2Fhistory%3Fpage%3D2"},
		},
		{
			name:        "protected, token without user, fetch succeeds",
			session:     models.Session{AccessToken: "a"},
			fetchResult: user,
			target:      "/dashboard",
			want:        Decision{Allow: true},
			wantFetches: 1,
			wantAuthed:  true,
		},
		{
			name:        "protected, token without user, fetch fails",
			session:     models.Session{AccessToken: "a"},
			target:      "/dashboard",
			want:        Decision{Redirect: "/auth/login?redirect=%2Fdashboard"},
			wantFetches: 1,
		},
		{
			name:       "protected, authenticated",
			session:    models.Session{AccessToken: "a", User: user},
			target:     "/detection",
			want:       Decision{Allow: true},
			wantAuthed: true,
		},
		{
			name:       "auth page while authenticated",
			session:    models.Session{AccessToken: "a", User: user},
			target:     "/auth/login",
			want:       Decision{Redirect: "/"},
			wantAuthed: true,
		},
		{
			name:   "auth page while guest",
			target: "/auth/register",
			want:   Decision{Allow: true},
		},
		{
			name:    "auth page while provisional",
			session: models.Session{AccessToken: "a"},
			target:  "/auth/login",
			want:    Decision{Allow: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSession{session: tt.session, fetchResult: tt.fetchResult}
			g := newTestGuard(s)

			got := g.Check(context.Background(), tt.target)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFetches, s.fetches)
			assert.Equal(t, tt.wantAuthed, s.Snapshot().IsAuthenticated())
		})
	}
}

func TestPostLoginTarget(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{LoginRedirect("/history?page=2"), "/history?page=2"},
		{"/auth/login", "/"},
		{"/auth/login?redirect=https%3A%2F%2Fevil.example", "/"},
		{"%zz", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			assert.Equal(t, tt.want, PostLoginTarget(tt.location))
		})
	}
}

func TestNavigator_FollowsRedirects(t *testing.T) {
	s := &fakeSession{}
	n := NewNavigator(logr.Discard(), newTestGuard(s))

	loc, err := n.Navigate(context.Background(), "/history")
	require.NoError(t, err)
	assert.Equal(t, "/auth/login?redirect=%2Fhistory", loc)
	assert.Equal(t, loc, n.Current())
	assert.Equal(t, "/history", PostLoginTarget(n.Current()))

	s.session = models.Session{AccessToken: "a", User: &models.User{}}
	loc, err = n.Navigate(context.Background(), "/auth/login")
	require.NoError(t, err)
	assert.Equal(t, "/", loc, "authenticated users are sent home from auth pages")
}

func TestNavigator_RedirectLoop(t *testing.T) {
	s := &fakeSession{session: models.Session{AccessToken: "a", User: &models.User{}}}
	g := New(logr.Discard(), s, nil)
	// home is guest-only and so is the auth section: an authenticated user bounces forever
	g.SetPolicy("/", AccessGuestOnly)
	n := NewNavigator(logr.Discard(), g)

	_, err := n.Navigate(context.Background(), "/auth/login")

	var loopErr *RedirectLoopError
	require.ErrorAs(t, err, &loopErr)
	assert.Equal(t, "/auth/login", loopErr.Target)
	assert.True(t, strings.Contains(err.Error(), "too many redirects"))
	assert.Equal(t, HomePath, n.Current(), "location is unchanged by a failed navigation")
}

func TestNavigator_ForcedRedirectSkipsGuard(t *testing.T) {
	s := &fakeSession{}
	n := NewNavigator(logr.Discard(), newTestGuard(s))

	n.Redirect("/auth/login")
	assert.Equal(t, "/auth/login", n.Current())
	assert.Zero(t, s.fetches)
}

func TestAccessLevel_String(t *testing.T) {
	assert.Equal(t, "public", AccessPublic.String())
	assert.Equal(t, "guest-only", AccessGuestOnly.String())
	assert.Equal(t, "authenticated", AccessAuthenticated.String())
	assert.Equal(t, "unknown", AccessLevel(42).String())
}
