package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/go-logr/logr"
)

// DefaultMaxHops bounds how many guard redirects one navigation may follow.
const DefaultMaxHops = 5

// RedirectLoopError is returned when a navigation keeps being redirected.
type RedirectLoopError struct {
	Target string
	Hops   []string
}

func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("guard: too many redirects navigating to %s: %v", e.Target, e.Hops)
}

// Navigator holds the current location and routes every transition through the Guard.
type Navigator struct {
	guard   *Guard
	log     logr.Logger
	mu      sync.Mutex
	current string
	maxHops int
}

// NewNavigator creates a Navigator starting at HomePath, without having checked it.
func NewNavigator(logger logr.Logger, g *Guard) *Navigator {
	return &Navigator{
		guard:   g,
		log:     logger.WithName("navigator"),
		current: HomePath,
		maxHops: DefaultMaxHops,
	}
}

// Navigate moves to target, following guard redirects. It returns the final
// location, which differs from target when the guard redirected.
func (n *Navigator) Navigate(ctx context.Context, target string) (string, error) {
	hops := []string{target}
	next := target
	for i := 0; i <= n.maxHops; i++ {
		d := n.guard.Check(ctx, next)
		if d.Allow {
			n.set(next)
			return next, nil
		}
		n.log.V(logutil.VState).Info("navigation redirected", "from", next, "to", d.Redirect)
		next = d.Redirect
		hops = append(hops, next)
	}
	return n.Current(), &RedirectLoopError{Target: target, Hops: hops}
}

// Redirect forces the location to target without consulting the guard. Used
// when the session is torn down underneath the caller.
func (n *Navigator) Redirect(target string) {
	n.log.V(logutil.VState).Info("forced redirect", "to", target)
	n.set(target)
}

// Current returns the current location.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Navigator) set(loc string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = loc
}
