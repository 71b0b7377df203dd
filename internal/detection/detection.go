package detection

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Ryan-Har/rumorlens/api"
	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// Request limits enforced before anything is sent.
const (
	MaxContentLength = 5000
	MaxBatchSize     = 100
	MaxPageSize      = 100
)

// Client is the subset of the HTTP client core the service uses.
// *transport.Client satisfies it.
type Client interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, body, out any) error
}

// HistoryFilter narrows a history listing. Zero values are omitted, and a
// zero Page or PageSize falls back to the store's current pagination.
type HistoryFilter struct {
	Page      int
	PageSize  int
	IsRumor   *bool
	RiskLevel models.RiskLevel
	StartDate time.Time
	EndDate   time.Time
}

// Service submits content for detection and browses the stored history.
// Every result is also recorded in its Store.
type Service struct {
	client Client
	store  *Store
	log    logr.Logger
}

// New creates a Service with an empty Store.
func New(logger logr.Logger, client Client) *Service {
	return &Service{
		client: client,
		store:  NewStore(),
		log:    logger.WithName("detection"),
	}
}

// Store returns the state container the service writes to.
func (s *Service) Store() *Store {
	return s.store
}

// DetectSingle submits one piece of content. The result becomes the current
// detection.
func (s *Service) DetectSingle(ctx context.Context, content string, includeAnalysis bool) (*models.Detection, error) {
	if err := validateContent("content", content); err != nil {
		return nil, err
	}
	defer s.store.begin(content)()
	defer logutil.NewTimingLogger(s.log, time.Now(), "single detection finished", "length", utf8.RuneCountInString(content))()

	var d models.Detection
	err := s.client.Post(ctx, api.PathDetectSingle, api.DetectionRequest{
		Content:         content,
		IncludeAnalysis: includeAnalysis,
	}, &d)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	s.store.setCurrent(d)
	s.log.V(logutil.VState).Info("content classified", "id", d.ID, "rumor", d.IsRumor, "risk", d.RiskLevel.String())
	return &d, nil
}

// DetectBatch submits between 1 and MaxBatchSize items in one request.
// Per-item failures are reported in the response counts, not as an error.
func (s *Service) DetectBatch(ctx context.Context, contents []string, includeAnalysis bool) (*models.BatchDetection, error) {
	if len(contents) == 0 || len(contents) > MaxBatchSize {
		return nil, models.NewValidationError("contents", fmt.Sprintf("batch must hold between 1 and %d items, got %d", MaxBatchSize, len(contents)))
	}
	for i, c := range contents {
		if err := validateContent(fmt.Sprintf("contents[%d]", i), c); err != nil {
			return nil, err
		}
	}
	defer s.store.begin("")()
	defer logutil.NewTimingLogger(s.log, time.Now(), "batch detection finished", "items", len(contents))()

	var res models.BatchDetection
	err := s.client.Post(ctx, api.PathDetectBatch, api.BatchDetectionRequest{
		Contents:        contents,
		IncludeAnalysis: includeAnalysis,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("detect batch: %w", err)
	}

	s.log.V(logutil.VState).Info("batch classified", "total", res.Total, "success", res.Success, "failed", res.Failed)
	return &res, nil
}

// Get fetches one stored detection and makes it current.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Detection, error) {
	defer s.store.begin("")()

	var d models.Detection
	if err := s.client.Get(ctx, detectionPath(id), nil, &d); err != nil {
		return nil, fmt.Errorf("get detection %s: %w", id, err)
	}
	s.store.setCurrent(d)
	return &d, nil
}

// Analysis fetches the detailed analysis of a detection. The server answers
// 404 when the detection was stored without one.
func (s *Service) Analysis(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error) {
	var a models.AnalysisResult
	if err := s.client.Get(ctx, detectionPath(id)+"/analysis", nil, &a); err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", id, err)
	}
	return &a, nil
}

// Propagation fetches the spread network of a detection.
func (s *Service) Propagation(ctx context.Context, id uuid.UUID) (*models.Propagation, error) {
	var p models.Propagation
	if err := s.client.Get(ctx, detectionPath(id)+"/propagation", nil, &p); err != nil {
		return nil, fmt.Errorf("get propagation %s: %w", id, err)
	}
	return &p, nil
}

// History fetches one page of stored detections and records it in the Store.
func (s *Service) History(ctx context.Context, f HistoryFilter) (*models.Page[models.Detection], error) {
	query, err := s.historyQuery(f)
	if err != nil {
		return nil, err
	}
	defer s.store.begin("")()
	defer logutil.NewTimingLogger(s.log, time.Now(), "history fetched", "query", query.Encode())()

	var page models.Page[models.Detection]
	if err := s.client.Get(ctx, api.PathHistory, query, &page); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	s.store.setHistory(page)
	return &page, nil
}

func (s *Service) historyQuery(f HistoryFilter) (url.Values, error) {
	current := s.store.Pagination()
	if f.Page == 0 {
		f.Page = current.Page
	}
	if f.PageSize == 0 {
		f.PageSize = current.PageSize
	}

	if f.Page < 1 {
		return nil, models.NewValidationError("page", "must be at least 1")
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return nil, models.NewValidationError("page_size", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}
	if f.RiskLevel != "" && !f.RiskLevel.IsValid() {
		return nil, models.NewValidationError("risk_level", fmt.Sprintf("unknown level %q", f.RiskLevel))
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate) {
		return nil, models.NewValidationError("end_date", "must not be before start_date")
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(f.Page))
	q.Set("page_size", strconv.Itoa(f.PageSize))
	if f.IsRumor != nil {
		q.Set("is_rumor", strconv.FormatBool(*f.IsRumor))
	}
	if f.RiskLevel != "" {
		q.Set("risk_level", f.RiskLevel.String())
	}
	if !f.StartDate.IsZero() {
		q.Set("start_date", f.StartDate.Format(time.RFC3339))
	}
	if !f.EndDate.IsZero() {
		q.Set("end_date", f.EndDate.Format(time.RFC3339))
	}
	return q, nil
}

// Stats fetches the aggregate counts of the user's history.
func (s *Service) Stats(ctx context.Context) (*models.HistoryStats, error) {
	var st models.HistoryStats
	if err := s.client.Get(ctx, api.PathHistoryStats, nil, &st); err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	return &st, nil
}

// Delete removes one stored detection and drops it from the Store.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var msg api.Message
	if err := s.client.Delete(ctx, api.PathHistory+"/"+id.String(), nil, &msg); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.store.remove(id)
	s.log.V(logutil.VState).Info("detection deleted", "id", id)
	return nil
}

// DeleteBatch removes several stored detections in one request and returns
// the server's message.
func (s *Service) DeleteBatch(ctx context.Context, ids []uuid.UUID) (string, error) {
	if len(ids) == 0 {
		return "", models.NewValidationError("ids", "at least one id is required")
	}

	var msg api.Message
	if err := s.client.Delete(ctx, api.PathHistoryBatch, api.BatchDeleteRequest{IDs: ids}, &msg); err != nil {
		return "", fmt.Errorf("delete batch: %w", err)
	}
	s.store.remove(ids...)
	s.log.V(logutil.VState).Info("detections deleted", "count", len(ids), "message", msg.Message)
	return msg.Message, nil
}

func detectionPath(id uuid.UUID) string {
	return api.PathDetection + id.String()
}

func validateContent(field, content string) error {
	if strings.TrimSpace(content) == "" {
		return models.NewValidationError(field, "must not be empty")
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return models.NewValidationError(field, fmt.Sprintf("%d characters exceeds the limit of %d", n, MaxContentLength))
	}
	return nil
}
