package detection

import (
	"slices"
	"sync"

	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/google/uuid"
)

// DefaultPageSize is used for history listings until a page is fetched.
const DefaultPageSize = 20

// Pagination mirrors the envelope of the last history page fetched.
type Pagination struct {
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Store is the state container for detection results. Readers get copies.
type Store struct {
	mu         sync.RWMutex
	current    *models.Detection
	history    []models.Detection
	pagination Pagination
	loading    int
	detecting  string
}

// NewStore returns an empty Store positioned on the first page.
func NewStore() *Store {
	return &Store{
		pagination: Pagination{Page: 1, PageSize: DefaultPageSize},
	}
}

// Current returns the last detection submitted or fetched, if any.
func (s *Store) Current() (models.Detection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Detection{}, false
	}
	return *s.current, true
}

// History returns the items of the last history page fetched.
func (s *Store) History() []models.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// Pagination returns the pagination of the last history page fetched.
func (s *Store) Pagination() Pagination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pagination
}

// Loading reports whether a detection operation is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Detecting returns the content of the single detection in flight, or "".
func (s *Store) Detecting() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detecting
}

// ClearCurrent forgets the current detection.
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

func (s *Store) begin(content string) func() {
	s.mu.Lock()
	s.loading++
	if content != "" {
		s.detecting = content
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.loading--
		if content != "" {
			s.detecting = ""
		}
		s.mu.Unlock()
	}
}

func (s *Store) setCurrent(d models.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &d
}

func (s *Store) setHistory(p models.Page[models.Detection]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = slices.Clone(p.Items)
	s.pagination = Pagination{
		Total:      p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
	}
}

// remove drops ids from the cached history and clears the current detection
// when it is one of them.
func (s *Store) remove(ids ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = slices.DeleteFunc(s.history, func(d models.Detection) bool {
		return slices.Contains(ids, d.ID)
	})
	if s.current != nil && slices.Contains(ids, s.current.ID) {
		s.current = nil
	}
}
