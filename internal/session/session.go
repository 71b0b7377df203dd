package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Ryan-Har/rumorlens/api"
	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/internal/tokenstore"
	"github.com/Ryan-Har/rumorlens/internal/transport"
	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/go-logr/logr"
)

// Manager owns the authentication lifecycle: login, registration, logout and
// keeping the current user in sync with the held tokens.
type Manager struct {
	client  *transport.Client
	tokens  *tokenstore.Store
	log     logr.Logger
	loading atomic.Int32
}

// New creates a Manager. tokens must be the same Store the client uses.
func New(logger logr.Logger, client *transport.Client, tokens *tokenstore.Store) *Manager {
	return &Manager{
		client: client,
		tokens: tokens,
		log:    logger.WithName("session"),
	}
}

// begin marks an operation in flight. A counter keeps Loading true for the
// nested login inside Register.
func (m *Manager) begin() func() {
	m.loading.Add(1)
	return func() { m.loading.Add(-1) }
}

// Loading reports whether any session operation is in flight.
func (m *Manager) Loading() bool {
	return m.loading.Load() > 0
}

// Snapshot returns the session including the loading indicator.
func (m *Manager) Snapshot() models.Session {
	s := m.tokens.Snapshot()
	s.Loading = m.Loading()
	return s
}

// IsAuthenticated reports whether both an access token and a user are held.
func (m *Manager) IsAuthenticated() bool {
	return m.tokens.IsAuthenticated()
}

// Login exchanges credentials for a token pair, stores it and loads the
// profile. It fails if the credentials are rejected or the profile cannot be
// fetched afterwards, in which case the session is left cleared.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	defer m.begin()()
	defer logutil.NewTimingLogger(m.log, time.Now(), "login finished", "email", email)()

	var pair models.TokenPair
	err := m.client.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   api.PathLogin,
		Form:   api.LoginForm(email, password),
	}, &pair)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	m.tokens.SetTokens(pair.AccessToken, pair.RefreshToken)
	m.client.Reset()

	if err := m.fetchUser(ctx); err != nil {
		return fmt.Errorf("login: fetch profile: %w", err)
	}
	m.log.Info("logged in", "email", email)
	return nil
}

// Register creates the account and then logs in with the same credentials.
// Registration alone does not authenticate.
func (m *Manager) Register(ctx context.Context, email, username, password string) error {
	defer m.begin()()

	req := api.RegisterRequest{Email: email, Username: username, Password: password}
	if err := m.client.Post(ctx, api.PathRegister, req, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	m.log.V(logutil.VState).Info("account created", "email", email, "username", username)

	return m.Login(ctx, email, password)
}

// Logout makes a best-effort server call and always clears the local session.
// Server errors are logged at trace verbosity and otherwise ignored.
func (m *Manager) Logout(ctx context.Context) {
	defer m.begin()()
	defer m.tokens.Clear()

	if m.tokens.AccessToken() == "" {
		return
	}
	if err := m.client.Post(ctx, api.PathLogout, nil, nil); err != nil {
		_ = logutil.DebugAndWrapErr(m.log, "logout call failed", err)
		return
	}
	m.log.Info("logged out")
}

// FetchUser loads the profile for the held access token. It does nothing
// without a token. On failure the whole session is cleared and no error is
// surfaced; callers inspect IsAuthenticated afterwards.
func (m *Manager) FetchUser(ctx context.Context) {
	defer m.begin()()
	_ = m.fetchUser(ctx)
}

func (m *Manager) fetchUser(ctx context.Context) error {
	if m.tokens.AccessToken() == "" {
		return nil
	}
	gen := m.tokens.Generation()

	var user models.User
	if err := m.client.Get(ctx, api.PathCurrentUser, nil, &user); err != nil {
		m.tokens.Clear()
		return logutil.DebugAndWrapErr(m.log, "could not fetch current user", err)
	}

	// The refresh path may have rotated tokens without clearing, which keeps gen valid.
	if !m.tokens.SetUserIfCurrent(gen, &user) {
		m.log.V(logutil.VState).Info("discarding fetched user, session was cleared meanwhile")
		return errors.New("session cleared while fetching user")
	}
	return nil
}

// UpdateProfile sends only the set fields of patch and replaces the stored
// user with the server's response.
func (m *Manager) UpdateProfile(ctx context.Context, patch models.UserUpdate) (*models.User, error) {
	defer m.begin()()

	if patch.IsEmpty() {
		return nil, models.NewValidationError("profile", "nothing to update")
	}

	var user models.User
	if err := m.client.Put(ctx, api.PathCurrentUser, patch, &user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	m.tokens.SetUser(&user)
	return &user, nil
}

// UpdatePassword changes the password. The session is left as it is.
func (m *Manager) UpdatePassword(ctx context.Context, current, next string) error {
	defer m.begin()()

	req := api.PasswordUpdateRequest{CurrentPassword: current, NewPassword: next}
	if err := m.client.Put(ctx, api.PathPassword, req, nil); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Start runs the process-wide initialization. If a persisted access token is
// held, the profile fetch runs in the background and the returned channel is
// closed when it completes; otherwise the channel is already closed. Until
// then the session is provisional.
func (m *Manager) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if m.tokens.AccessToken() == "" {
		close(done)
		return done
	}

	m.log.V(logutil.VState).Info("restoring session in background")
	go func() {
		defer close(done)
		m.FetchUser(ctx)
	}()
	return done
}
