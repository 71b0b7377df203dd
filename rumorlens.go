package rumorlens

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/Ryan-Har/rumorlens/api"
	"github.com/Ryan-Har/rumorlens/database"
	"github.com/Ryan-Har/rumorlens/internal/analysis"
	"github.com/Ryan-Har/rumorlens/internal/detection"
	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/internal/session"
	"github.com/Ryan-Har/rumorlens/internal/tokenstore"
	"github.com/Ryan-Har/rumorlens/internal/transport"
	"github.com/Ryan-Har/rumorlens/pkg/guard"
	"github.com/go-logr/logr"
)

// DefaultBaseURL is used when WithBaseURL is not given.
const DefaultBaseURL = "http://localhost:8000" + api.BasePath

// RumorLens wires one session handle through every component of the client.
type RumorLens struct {
	logger    logr.Logger
	Tokens    *tokenstore.Store
	Client    *transport.Client
	Session   *session.Manager
	Guard     *guard.Guard
	Navigator *guard.Navigator
	Detection *detection.Service
	Analysis  *analysis.Service

	// Hold information to initialize components after configuration
	baseURL     string
	db          *sql.DB
	storagePath string
	ownsDB      bool
	router      guard.Router
	clientOpts  []transport.Option
}

type Option func(*RumorLens)

func WithLogger(l logr.Logger) Option {
	return func(r *RumorLens) {
		// Only set the logger if it's not a no-op logger, allowing for explicit Discard()
		// or if the current logger is Discard() (the default)
		if l.GetSink() != nil || r.logger.GetSink() == nil {
			r.logger = l
		}
	}
}

// WithBaseURL sets the server URL including the API prefix.
func WithBaseURL(u string) Option {
	return func(r *RumorLens) {
		r.baseURL = u
	}
}

// WithSqliteDB persists tokens in db. The caller keeps ownership of db.
func WithSqliteDB(db *sql.DB) Option {
	return func(r *RumorLens) {
		r.db = db
		r.storagePath = ""
	}
}

// WithSqlitePath opens (and on Close, closes) the token database at path.
func WithSqlitePath(path string) Option {
	return func(r *RumorLens) {
		r.storagePath = path
		r.db = nil
	}
}

// WithInMemoryTokens keeps tokens for the lifetime of the process only.
// This is the default when no database is configured.
func WithInMemoryTokens() Option {
	return func(r *RumorLens) {
		r.db = nil
		r.storagePath = ""
	}
}

// WithTimeout sets the request timeout of the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(r *RumorLens) {
		r.clientOpts = append(r.clientOpts, transport.WithTimeout(d))
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *RumorLens) {
		r.clientOpts = append(r.clientOpts, transport.WithHTTPClient(hc))
	}
}

// WithRouter lets Guard.Handle register guarded routes on router.
func WithRouter(router guard.Router) Option {
	return func(r *RumorLens) {
		r.router = router
	}
}

// New builds the client and restores any persisted tokens. The user profile
// is not fetched until Start.
func New(ctx context.Context, opts ...Option) (*RumorLens, error) {
	rl := &RumorLens{
		logger:  logr.Discard(), // default to no-op logger
		baseURL: DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(rl)
	}

	rl.logger.V(0).Info("starting rumorlens", "server", rl.baseURL)

	persister, err := rl.openPersister(ctx)
	if err != nil {
		return nil, err
	}

	rl.Tokens = tokenstore.New(rl.logger, persister)
	if err := rl.Tokens.Load(ctx); err != nil {
		_ = rl.Close()
		return nil, fmt.Errorf("unable to load tokens: %w", err)
	}

	clientOpts := append([]transport.Option{transport.WithLogger(rl.logger)}, rl.clientOpts...)
	rl.Client = transport.New(rl.baseURL, rl.Tokens, clientOpts...)
	rl.Session = session.New(rl.logger, rl.Client, rl.Tokens)

	rl.Guard = guard.New(rl.logger, rl.Session, rl.router)
	rl.Guard.LoadDefaultPolicies()
	rl.Navigator = guard.NewNavigator(rl.logger, rl.Guard)

	// An unrecoverable 401 tears the session down and forces the login page.
	rl.Client.SetFailureHook(func() {
		rl.Tokens.Clear()
		rl.Navigator.Redirect(guard.LoginPath)
	})

	rl.Detection = detection.New(rl.logger, rl.Client)
	rl.Analysis = analysis.New(rl.logger, rl.Client)

	rl.logger.V(logutil.VState).Info("rumorlens components loaded")
	return rl, nil
}

func (rl *RumorLens) openPersister(ctx context.Context) (tokenstore.Persister, error) {
	if rl.storagePath != "" {
		db, err := database.OpenSqlite(rl.storagePath)
		if err != nil {
			return nil, fmt.Errorf("unable to open token storage: %w", err)
		}
		rl.db = db
		rl.ownsDB = true
		rl.logger.V(logutil.VState).Info("using sqlite token storage", "path", rl.storagePath)
		return tokenstore.NewSqlite(rl.logger, db), nil
	}

	if rl.db != nil {
		// check if database is pingable
		if err := rl.db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("unable to ping database: %w", err)
		}
		if err := database.RunSqliteMigrations(rl.db); err != nil {
			return nil, fmt.Errorf("unable to run migrations: %w", err)
		}
		rl.logger.V(logutil.VState).Info("using caller-provided sqlite token storage")
		return tokenstore.NewSqlite(rl.logger, rl.db), nil
	}

	rl.logger.V(logutil.VState).Info("using in-memory token storage")
	return tokenstore.NewInMemory(), nil
}

// Start restores the user behind persisted tokens in the background. The
// returned channel closes when that fetch has finished.
func (rl *RumorLens) Start(ctx context.Context) <-chan struct{} {
	return rl.Session.Start(ctx)
}

// Close releases the token database if New opened it.
func (rl *RumorLens) Close() error {
	if !rl.ownsDB || rl.db == nil {
		return nil
	}
	err := rl.db.Close()
	rl.db = nil
	if err != nil {
		return fmt.Errorf("close token storage: %w", err)
	}
	return nil
}
