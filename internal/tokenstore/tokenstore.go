package tokenstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/go-logr/logr"
	"github.com/golang-jwt/jwt/v5"
)

// Keys under which the tokens are persisted.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// persistTimeout bounds every durable write. SetTokens and friends take no
// context, so the store supplies its own.
const persistTimeout = 5 * time.Second

// Persister is the durable copy of the token pair.
type Persister interface {
	// Load returns the persisted tokens. Missing keys are returned as "".
	Load(ctx context.Context) (access, refresh string, err error)

	// Save overwrites both tokens. An empty value removes that key.
	Save(ctx context.Context, access, refresh string) error

	// Clear removes both tokens.
	Clear(ctx context.Context) error
}

// Store is the process-wide session state: the token pair and the current
// user. The in-memory copy is authoritative; the Persister mirrors the tokens
// so they survive restarts. The user is never persisted.
type Store struct {
	mu        sync.RWMutex
	access    string
	refresh   string
	user      *models.User
	gen       uint64 // bumped on every clear
	persister Persister
	log       logr.Logger
}

// New creates a Store backed by p. Call Load to pick up persisted tokens.
func New(logger logr.Logger, p Persister) *Store {
	return &Store{
		persister: p,
		log:       logger.WithName("tokenstore"),
	}
}

// Load reads the persisted token pair into memory.
func (s *Store) Load(ctx context.Context) error {
	var access, refresh string
	err := logutil.LogDurationWithError(s.log, "load persisted tokens", func() error {
		var err error
		access, refresh, err = s.persister.Load(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = access, refresh
	s.log.V(logutil.VState).Info("session restored", "hasAccessToken", access != "", "hasRefreshToken", refresh != "")
	return nil
}

// SetTokens overwrites the in-memory and durable copies of both tokens.
// No validation is performed.
func (s *Store) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTokensLocked(access, refresh)
}

func (s *Store) setTokensLocked(access, refresh string) {
	s.access, s.refresh = access, refresh
	s.persist(func(ctx context.Context) error { return s.persister.Save(ctx, access, refresh) }, "save tokens")
	s.log.V(logutil.VState).Info("tokens stored", "accessToken", logutil.Redact(access))
}

// SwapTokens stores a refreshed pair only if no clear happened since gen was
// read with Generation. It reports whether the pair was stored.
func (s *Store) SwapTokens(gen uint64, access, refresh string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.log.V(logutil.VState).Info("discarding refreshed tokens, session was cleared", "generation", gen, "current", s.gen)
		return false
	}
	s.setTokensLocked(access, refresh)
	return true
}

// ClearTokens removes both tokens from memory and durable storage.
func (s *Store) ClearTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearTokensLocked()
}

func (s *Store) clearTokensLocked() {
	s.gen++
	s.access, s.refresh = "", ""
	s.persist(s.persister.Clear, "clear tokens")
}

// Clear tears down the whole session: tokens and user.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearTokensLocked()
	s.user = nil
	s.log.V(logutil.VState).Info("session cleared", "generation", s.gen)
}

// persist runs a durable write. Failures are logged; the in-memory state stays authoritative.
func (s *Store) persist(fn func(ctx context.Context) error, op string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.log.Error(err, "failed to persist session", "op", op)
	}
}

// SetUser replaces the current user.
func (s *Store) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = copyUser(u)
}

// SetUserIfCurrent sets the user only if no clear happened since gen.
func (s *Store) SetUserIfCurrent(gen uint64, u *models.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.user = copyUser(u)
	return true
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// Generation returns the clear counter. Pair it with SwapTokens or SetUserIfCurrent.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Snapshot returns an immutable copy of the session.
func (s *Store) Snapshot() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Session{
		AccessToken:  s.access,
		RefreshToken: s.refresh,
		User:         copyUser(s.user),
	}
}

// IsAuthenticated is true iff both an access token and a user are held.
func (s *Store) IsAuthenticated() bool {
	snap := s.Snapshot()
	return snap.IsAuthenticated()
}

// IsSuperuser is true iff a user is held and flagged as superuser.
func (s *Store) IsSuperuser() bool {
	snap := s.Snapshot()
	return snap.IsSuperuser()
}

// AccessTokenExpiry reads the exp claim of the access token without verifying
// its signature. It returns the zero time when there is no token or no exp claim.
func (s *Store) AccessTokenExpiry() (time.Time, error) {
	token := s.AccessToken()
	if token == "" {
		return time.Time{}, nil
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("could not read access token claims: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
