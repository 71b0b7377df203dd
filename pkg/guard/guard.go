package guard

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/go-logr/logr"
)

// Well-known locations.
const (
	HomePath      = "/"
	LoginPath     = "/auth/login"
	RedirectParam = "redirect"
)

// AccessLevel is the requirement a route places on the session.
type AccessLevel int

const (
	// AccessPublic routes are always reachable.
	AccessPublic AccessLevel = iota
	// AccessGuestOnly routes (the auth section) send authenticated users home.
	AccessGuestOnly
	// AccessAuthenticated routes require a token and a user.
	AccessAuthenticated
)

func (a AccessLevel) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessGuestOnly:
		return "guest-only"
	case AccessAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is the subset of the session manager the guard needs.
type Session interface {
	// Snapshot returns the current session state.
	Snapshot() models.Session

	// FetchUser loads the user for a held token, clearing the session on failure.
	FetchUser(ctx context.Context)
}

// Decision is the outcome of a guard check. Redirect is set when Allow is false.
type Decision struct {
	Allow    bool
	Redirect string
}

// Guard decides, before each route change, whether the target may be entered.
type Guard struct {
	log      logr.Logger
	session  Session
	Policies map[string]AccessLevel // path prefix -> requirement
	handlers map[string]map[string]http.Handler
	router   Router
	mu       sync.RWMutex
}

// New creates a Guard with no policies. router may be nil when Handle is not used.
func New(logger logr.Logger, session Session, router Router) *Guard {
	return &Guard{
		log:      logger.WithName("guard"),
		session:  session,
		Policies: make(map[string]AccessLevel),
		handlers: make(map[string]map[string]http.Handler),
		router:   router,
	}
}

// LoadDefaultPolicies installs the baseline rules: the auth section is
// guest-only and everything else requires authentication.
func (g *Guard) LoadDefaultPolicies() {
	g.SetPolicy("/auth", AccessGuestOnly)
	g.SetPolicy("/", AccessAuthenticated)
}

// SetPolicy sets the requirement for a path prefix.
func (g *Guard) SetPolicy(path string, level AccessLevel) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	g.Policies[path] = level
}

// FindMatchingPolicy returns the requirement of the most specific prefix of path.
func (g *Guard) FindMatchingPolicy(path string) (AccessLevel, bool) {
	pathsToCheck := buildPrefixes(path)

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, p := range pathsToCheck {
		if level, ok := g.Policies[p]; ok {
			return level, true
		}
	}
	return AccessPublic, false
}

// Check applies the decision table to target, which may carry a query string.
// For an authenticated route with a token but no user it fetches the user
// first, and the outcome of that fetch decides.
func (g *Guard) Check(ctx context.Context, target string) Decision {
	path := target
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		path = u.Path
	}

	level, _ := g.FindMatchingPolicy(path)
	snap := g.session.Snapshot()

	var d Decision
	switch level {
	case AccessAuthenticated:
		switch {
		case snap.AccessToken == "":
			d = Decision{Redirect: LoginRedirect(target)}
		case snap.User == nil:
			g.session.FetchUser(ctx)
			if g.session.Snapshot().IsAuthenticated() {
				d = Decision{Allow: true}
			} else {
				d = Decision{Redirect: LoginRedirect(target)}
			}
		default:
			d = Decision{Allow: true}
		}
	case AccessGuestOnly:
		if snap.IsAuthenticated() {
			d = Decision{Redirect: HomePath}
		} else {
			d = Decision{Allow: true}
		}
	default:
		d = Decision{Allow: true}
	}

	g.log.V(logutil.VTrace).Info("guard decision", "target", target, "policy", level.String(), "allow", d.Allow, "redirect", d.Redirect)
	return d
}

// LoginRedirect builds the login location preserving target for after login.
func LoginRedirect(target string) string {
	return LoginPath + "?" + url.Values{RedirectParam: {target}}.Encode()
}

// PostLoginTarget returns the destination preserved in a login location, or
// HomePath when there is none.
func PostLoginTarget(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return HomePath
	}
	if next := u.Query().Get(RedirectParam); strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		return next
	}
	return HomePath
}

// buildPrefixes returns a list of paths to check from most specific to least specific.
// For "/a/b/c" it returns ["/a/b/c", "/a/b", "/a", "/"].
func buildPrefixes(path string) []string {
	if path == "" || path == "/" {
		return []string{"/"}
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 1 && segments[0] == "" {
		return []string{"/"}
	}

	prefixes := make([]string, 0, len(segments)+1)
	for i := len(segments); i > 0; i-- {
		prefixes = append(prefixes, "/"+strings.Join(segments[:i], "/"))
	}

	// Always ensure root "/" is last
	return append(prefixes, "/")
}
