package guard

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Ryan-Har/rumorlens/internal/logutil"
)

// Router defines an abstraction for registering routes.
// It allows Guard to remain decoupled from specific HTTP frameworks;
// *http.ServeMux satisfies it.
type Router interface {
	Handle(pattern string, handler http.Handler)
}

// Handle registers handler on the router for route, guarded by the policies
// set with SetPolicy. The route string can be either:
//
//	"/path"          // matches all HTTP methods for /path
//	"METHOD /path"   // matches only HTTP requests with METHOD (GET, POST, etc.)
//
// Requests the guard does not allow are answered with 303 See Other to the
// redirect location. Registering the same method and path twice is an error.
func (g *Guard) Handle(route string, handler http.Handler) error {
	if handler == nil {
		return fmt.Errorf("cannot register nil handler for route %q", route)
	}
	if g.router == nil {
		return fmt.Errorf("cannot register route %q: guard has no router", route)
	}

	method, path := parseRoute(route)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.handlers[path]; !exists {
		g.handlers[path] = make(map[string]http.Handler)

		// Register the dispatching handler once
		g.router.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer logutil.NewTimingLogger(g.log, time.Now(), "route handled", "method", r.Method, "path", r.URL.Path)()
			g.dispatch(path, w, r)
		}))
	}

	if _, exists := g.handlers[path][method]; exists {
		return logutil.LogAndWrapErr(g.log, "attempted to add duplicate path to guard",
			NewDuplicatePathAndMethodError(path, method))
	}

	g.handlers[path][method] = handler
	return nil
}

// HandleFunc is a convenience wrapper around Handle.
func (g *Guard) HandleFunc(route string, handlerFunc http.HandlerFunc) error {
	return g.Handle(route, handlerFunc)
}

func (g *Guard) dispatch(path string, w http.ResponseWriter, r *http.Request) {
	g.mu.RLock()
	methodHandlers := g.handlers[path]
	h, ok := methodHandlers[r.Method]
	if !ok {
		h, ok = methodHandlers[""]
	}
	g.mu.RUnlock()

	if !ok {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	d := g.Check(r.Context(), r.URL.RequestURI())
	if !d.Allow {
		http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
		return
	}
	h.ServeHTTP(w, r)
}

// parseRoute parses a route string into method and path components.
// If the method is omitted, the returned method string is empty,
// meaning the route applies to all HTTP methods.
func parseRoute(route string) (method, path string) {
	parts := strings.Fields(route)
	switch len(parts) {
	case 0:
		return "", "/"
	case 1:
		if strings.HasPrefix(parts[0], "/") {
			return "", parts[0]
		}
		// method but no path
		return "", "/"
	default:
		return strings.ToUpper(parts[0]), parts[1]
	}
}

// DuplicatePathAndMethodError reports a second registration of the same route.
type DuplicatePathAndMethodError struct {
	Method string
	Path   string
}

func NewDuplicatePathAndMethodError(path, method string) *DuplicatePathAndMethodError {
	return &DuplicatePathAndMethodError{
		Method: method,
		Path:   path,
	}
}

func (e *DuplicatePathAndMethodError) Error() string {
	return fmt.Sprintf("guard: duplicate path: %s and method: %s attempted", e.Path, e.Method)
}

func (e *DuplicatePathAndMethodError) Is(target error) bool {
	_, ok := target.(*DuplicatePathAndMethodError)
	return ok
}
