package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Ryan-Har/rumorlens/api"
	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/google/uuid"
)

// State is the session-recovery state of the client.
type State int32

const (
	// StateNormal: requests go out with the current access token.
	StateNormal State = iota
	// StateRefreshing: a refresh call is in flight.
	StateRefreshing
	// StateFailed: the session could not be recovered and was torn down.
	// Sticky until Reset.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// State returns the current recovery state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Reset returns the client to StateNormal. Called after a successful login.
func (c *Client) Reset() {
	c.setState(StateNormal)
}

func (c *Client) setState(s State) {
	if old := State(c.state.Swap(int32(s))); old != s {
		c.log.V(logutil.VState).Info("state transition", "from", old.String(), "to", s.String())
	}
}

// refreshResult is shared between the callers coalesced onto one refresh.
type refreshResult struct {
	pair   models.TokenPair
	stored bool
}

// handleUnauthorized runs the recovery protocol for a request that got 401
// while carrying the access token sent. It returns orig unless a refresh
// succeeds, in which case it returns the outcome of exactly one resubmission
// of req.
func (c *Client) handleUnauthorized(ctx context.Context, req *Request, sent string, orig *api.Error, out any) error {
	// Another caller already refreshed since req went out.
	if current := c.tokens.AccessToken(); current != "" && current != sent {
		c.log.V(logutil.VTrace).Info("retrying request with newer token", "method", req.Method, "path", req.Path)
		return c.send(ctx, req, current, out)
	}

	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		c.fail("unauthorized without refresh token", orig)
		return orig
	}

	gen := c.tokens.Generation()
	c.setState(StateRefreshing)

	// Concurrent 401s holding the same refresh token share one refresh call.
	v, err, shared := c.refreshGroup.Do(refreshToken, func() (any, error) {
		pair, err := c.refresh(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			return nil, err
		}
		return refreshResult{pair: pair, stored: c.tokens.SwapTokens(gen, pair.AccessToken, pair.RefreshToken)}, nil
	})
	if err != nil {
		c.fail("token refresh failed", err)
		return orig
	}

	res := v.(refreshResult)
	if !res.stored {
		// The session was cleared while refreshing; do not resurrect it.
		c.setState(StateNormal)
		c.log.V(logutil.VState).Info("refreshed tokens discarded", "path", req.Path)
		return orig
	}
	c.setState(StateNormal)
	c.log.V(logutil.VTrace).Info("retrying request with refreshed token", "method", req.Method, "path", req.Path, "shared", shared)

	// Single attempt: a second 401 is returned as-is.
	return c.send(ctx, req, res.pair.AccessToken, out)
}

// refresh exchanges the refresh token for a new pair. It posts directly on
// the underlying http.Client so it never re-enters the 401 handling.
// The token goes in both the query string and the JSON body; servers differ
// on which one they read.
func (c *Client) refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	var pair models.TokenPair

	body, err := json.Marshal(api.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return pair, err
	}
	target := c.baseURL + api.PathRefresh + "?" + url.Values{"refresh_token": {refreshToken}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return pair, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return pair, fmt.Errorf("%s %s: %w", http.MethodPost, api.PathRefresh, err)
	}
	defer resp.Body.Close()

	if err := decodeResponse(http.MethodPost, api.PathRefresh, resp, &pair); err != nil {
		return pair, err
	}
	if pair.AccessToken == "" {
		return pair, errors.New("refresh response carried no access token")
	}
	return pair, nil
}

// fail moves to StateFailed and runs the failure hook (session teardown and
// redirect to login).
func (c *Client) fail(reason string, err error) {
	c.setState(StateFailed)
	c.log.Info("session could not be recovered", "reason", reason, "err", err.Error())
	if c.onFailure != nil {
		c.onFailure()
	}
}

func asUnauthorized(err error) (*api.Error, bool) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
		return apiErr, true
	}
	return nil, false
}
