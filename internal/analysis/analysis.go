// Package analysis queries the aggregate dashboard statistics and caches the
// latest result of each query.
package analysis

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Ryan-Har/rumorlens/api"
	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Query defaults and bounds accepted by the server.
const (
	DefaultTrendDays = 30
	MaxTrendDays     = 365
	DefaultKeywords  = 50
	MinKeywords      = 10
	MaxKeywords      = 200
)

// Client is the subset of the HTTP client core the service uses.
type Client interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// Store caches the most recent result of every dashboard query.
type Store struct {
	mu               sync.RWMutex
	overview         *models.OverviewStats
	trend            []models.TrendDataPoint
	categories       []models.CategoryStats
	keywords         []models.KeywordStats
	riskDistribution *models.RiskDistribution
	loading          int
}

// Dashboard is a point-in-time copy of the Store.
type Dashboard struct {
	Overview         *models.OverviewStats    `json:"overview,omitempty"`
	Trend            []models.TrendDataPoint  `json:"trend"`
	Categories       []models.CategoryStats   `json:"categories"`
	Keywords         []models.KeywordStats    `json:"keywords"`
	RiskDistribution *models.RiskDistribution `json:"risk_distribution,omitempty"`
}

// Snapshot returns a copy of everything cached so far.
func (s *Store) Snapshot() Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := Dashboard{
		Trend:      append([]models.TrendDataPoint(nil), s.trend...),
		Categories: append([]models.CategoryStats(nil), s.categories...),
		Keywords:   append([]models.KeywordStats(nil), s.keywords...),
	}
	if s.overview != nil {
		o := *s.overview
		d.Overview = &o
	}
	if s.riskDistribution != nil {
		r := *s.riskDistribution
		d.RiskDistribution = &r
	}
	return d
}

// Loading reports whether any query is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

func (s *Store) begin() func() {
	s.update(func() { s.loading++ })
	return func() { s.update(func() { s.loading-- }) }
}

func (s *Store) update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Service fetches dashboard statistics through the HTTP client core.
type Service struct {
	client Client
	store  *Store
	log    logr.Logger
}

// New creates a Service with an empty Store.
func New(logger logr.Logger, client Client) *Service {
	return &Service{
		client: client,
		store:  &Store{},
		log:    logger.WithName("analysis"),
	}
}

// Store returns the cache the service writes to.
func (s *Service) Store() *Store {
	return s.store
}

// Overview fetches the headline totals.
func (s *Service) Overview(ctx context.Context) (*models.OverviewStats, error) {
	defer s.store.begin()()

	var o models.OverviewStats
	if err := s.client.Get(ctx, api.PathOverview, nil, &o); err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	s.store.update(func() { s.store.overview = &o })
	return &o, nil
}

// Trend fetches daily counts for the last days days; zero means DefaultTrendDays.
func (s *Service) Trend(ctx context.Context, days int) (*models.Trend, error) {
	if days == 0 {
		days = DefaultTrendDays
	}
	if days < 1 || days > MaxTrendDays {
		return nil, models.NewValidationError("days", fmt.Sprintf("must be between 1 and %d", MaxTrendDays))
	}
	defer s.store.begin()()

	var t models.Trend
	if err := s.client.Get(ctx, api.PathTrend, url.Values{"days": {strconv.Itoa(days)}}, &t); err != nil {
		return nil, fmt.Errorf("trend: %w", err)
	}
	s.store.update(func() { s.store.trend = t.Data })
	return &t, nil
}

// Categories fetches the per-category breakdown.
func (s *Service) Categories(ctx context.Context) (*models.Categories, error) {
	defer s.store.begin()()

	var c models.Categories
	if err := s.client.Get(ctx, api.PathCategories, nil, &c); err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	s.store.update(func() { s.store.categories = c.Data })
	return &c, nil
}

// Keywords fetches the most frequent keywords; zero limit means DefaultKeywords.
func (s *Service) Keywords(ctx context.Context, limit int) (*models.Keywords, error) {
	if limit == 0 {
		limit = DefaultKeywords
	}
	if limit < MinKeywords || limit > MaxKeywords {
		return nil, models.NewValidationError("limit", fmt.Sprintf("must be between %d and %d", MinKeywords, MaxKeywords))
	}
	defer s.store.begin()()

	var k models.Keywords
	if err := s.client.Get(ctx, api.PathKeywords, url.Values{"limit": {strconv.Itoa(limit)}}, &k); err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}
	s.store.update(func() { s.store.keywords = k.Data })
	return &k, nil
}

// RiskDistribution fetches the count of detections per risk level.
func (s *Service) RiskDistribution(ctx context.Context) (*models.RiskDistributionReport, error) {
	defer s.store.begin()()

	var r models.RiskDistributionReport
	if err := s.client.Get(ctx, api.PathRiskDistribution, nil, &r); err != nil {
		return nil, fmt.Errorf("risk distribution: %w", err)
	}
	s.store.update(func() { s.store.riskDistribution = &r.Distribution })
	return &r, nil
}

// FetchAll runs every dashboard query concurrently. The first failure cancels
// the others and is returned; results that arrived before it stay cached.
func (s *Service) FetchAll(ctx context.Context, days, keywordLimit int) (Dashboard, error) {
	defer s.store.begin()()
	defer logutil.NewTimingLogger(s.log, time.Now(), "dashboard fetched")()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { _, err := s.Overview(gctx); return err })
	g.Go(func() error { _, err := s.Trend(gctx, days); return err })
	g.Go(func() error { _, err := s.Categories(gctx); return err })
	g.Go(func() error { _, err := s.Keywords(gctx, keywordLimit); return err })
	g.Go(func() error { _, err := s.RiskDistribution(gctx); return err })

	if err := g.Wait(); err != nil {
		return Dashboard{}, logutil.DebugAndWrapErr(s.log, "dashboard fetch failed", err)
	}
	return s.store.Snapshot(), nil
}
