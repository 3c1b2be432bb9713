package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/partsmarkt/parts-scraper/internal/models"
)

// State is the lifecycle state of a scraping run.
type State string

const (
	StateStarting             State = "starting"
	StateRunning              State = "running"
	StateEnteringLicensePlate State = "entering_license_plate"
	StateFindingCategories    State = "finding_categories"
	StateScraping             State = "scraping"
	StateCompleted            State = "completed"
	StateError                State = "error"
)

// validTransitions encodes the forward-only state machine. The error state
// is reachable from every non-terminal state and is handled separately.
var validTransitions = map[State][]State{
	StateStarting:             {StateRunning},
	StateRunning:              {StateEnteringLicensePlate, StateScraping},
	StateEnteringLicensePlate: {StateFindingCategories},
	StateFindingCategories:    {StateScraping},
	StateScraping:             {StateCompleted},
	StateCompleted:            {},
	StateError:                {},
}

// Terminal reports whether no further transitions leave the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// Session tracks one scraping run: its state machine, progress counters and
// the append-only listing collection. Listings are stored in strict scrape
// order; duplicates are possible when pagination re-visits a page and are
// kept as-is.
type Session struct {
	mu sync.Mutex

	id                 string
	state              State
	progress           int
	currentPage        int
	totalPages         int
	listings           []models.Listing
	lastError          string
	startedAt          time.Time
	selectedCategories []models.CategoryLink
}

func New(selected []models.CategoryLink) *Session {
	return &Session{
		id:                 uuid.New().String(),
		state:              StateStarting,
		startedAt:          time.Now(),
		selectedCategories: selected,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Transition moves the session to next. Transitions out of a terminal state
// or not permitted by the state machine return an error and leave the
// session unchanged.
func (s *Session) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return fmt.Errorf("session %s is terminal (%s), cannot transition to %s", s.id, s.state, next)
	}
	if next == StateError {
		return fmt.Errorf("use Fail to enter the error state")
	}
	for _, allowed := range validTransitions[s.state] {
		if allowed == next {
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", s.state, next)
}

// Fail moves the session to the terminal error state, recording the message
// verbatim for operator visibility. Failing an already-terminal session is
// a no-op.
func (s *Session) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	s.state = StateError
	s.lastError = msg
}

// Complete marks the run finished and pins progress at 100.
func (s *Session) Complete() error {
	if err := s.Transition(StateCompleted); err != nil {
		return err
	}
	s.mu.Lock()
	s.progress = 100
	s.mu.Unlock()
	return nil
}

func (s *Session) SetProgress(pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	s.progress = pct
}

func (s *Session) SetCurrentPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPage = page
	if page > s.totalPages {
		s.totalPages = page
	}
}

// Append adds one listing in scrape order.
func (s *Session) Append(l models.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = append(s.listings, l)
}

// SelectedCategories returns the caller-supplied category links, if any.
func (s *Session) SelectedCategories() []models.CategoryLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CategoryLink, len(s.selectedCategories))
	copy(out, s.selectedCategories)
	return out
}

// Snapshot is a point-in-time copy of the session's observable state.
// Readers (status polling, analysis) never see partially-updated state and
// never share the listing slice with the writer.
type Snapshot struct {
	ID          string
	State       State
	Progress    int
	CurrentPage int
	TotalPages  int
	Listings    []models.Listing
	Error       string
	StartedAt   time.Time
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	listings := make([]models.Listing, len(s.listings))
	copy(listings, s.listings)

	return Snapshot{
		ID:          s.id,
		State:       s.state,
		Progress:    s.progress,
		CurrentPage: s.currentPage,
		TotalPages:  s.totalPages,
		Listings:    listings,
		Error:       s.lastError,
		StartedAt:   s.startedAt,
	}
}
