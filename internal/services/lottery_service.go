package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"doorprize/internal/importer"
	"doorprize/internal/models"
	"doorprize/internal/selection"
	"doorprize/internal/store"

	"github.com/google/logger"
)

var (
	ErrEmptyCandidatePool   = errors.New("no candidates have been imported")
	ErrNoEligibleCandidates = errors.New("every candidate has already won")
	ErrInvalidPhase         = errors.New("invalid phase for action")
	ErrConfirmationRequired = errors.New("confirmation required")
)

const (
	DefaultCountdown     = 5
	DefaultCountdownTick = time.Second
	DefaultPreviewTick   = 50 * time.Millisecond
)

// drawSession is the transient state of one draw. It is replaced wholesale on
// every transition into drawing and on every reset to idle.
type drawSession struct {
	phase        models.Phase
	countdown    int
	previewIndex int
	winner       *models.Candidate
	err          error

	// generation identifies the draw that owns the running timers; a tick
	// carrying an older generation is ignored.
	generation      uint64
	cancelCountdown func()
	cancelPreview   func()
}

// LotteryService holds the candidate pool, the winners history and the draw
// session for the single operator.
type LotteryService struct {
	mu         sync.Mutex
	store      store.Store
	candidates []models.Candidate
	winners    []models.Winner
	settings   models.Settings
	session    drawSession

	countdownFrom int
	countdownTick time.Duration
	previewTick   time.Duration
	source        selection.Source
	scheduler     Scheduler
	now           func() time.Time

	// version numbers snapshots handed to observers. Observers run on the
	// dispatch goroutine and only the newest undelivered snapshot is kept, so a
	// slow display never holds up the draw timers.
	version   uint64
	obsMu     sync.Mutex
	pending   *models.DrawState
	delivered uint64
	observers []func(models.DrawState)
	wake      chan struct{}
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

type Option func(*LotteryService)

// WithCountdown sets the number of countdown seconds; values below 1 are
// raised to 1.
func WithCountdown(seconds int) Option {
	return func(s *LotteryService) {
		if seconds < 1 {
			seconds = 1
		}
		s.countdownFrom = seconds
	}
}

func WithTickIntervals(countdown, preview time.Duration) Option {
	return func(s *LotteryService) {
		s.countdownTick = countdown
		s.previewTick = preview
	}
}

func WithSource(src selection.Source) Option {
	return func(s *LotteryService) { s.source = src }
}

func WithScheduler(sched Scheduler) Option {
	return func(s *LotteryService) { s.scheduler = sched }
}

func WithClock(now func() time.Time) Option {
	return func(s *LotteryService) { s.now = now }
}

func WithTitle(title string) Option {
	return func(s *LotteryService) { s.settings.Title = title }
}

// NewLotteryService creates the service and restores the candidate pool and
// winners history from st.
func NewLotteryService(ctx context.Context, st store.Store, opts ...Option) (*LotteryService, error) {
	s := &LotteryService{
		store:         st,
		settings:      models.Settings{Title: models.DefaultTitle},
		countdownFrom: DefaultCountdown,
		countdownTick: DefaultCountdownTick,
		previewTick:   DefaultPreviewTick,
		source:        selection.DefaultSource(),
		scheduler:     TickerScheduler{},
		now:           time.Now,
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.session = drawSession{phase: models.PhaseIdle, countdown: s.countdownFrom}

	if err := loadJSON(ctx, st, store.KeyUsers, &s.candidates); err != nil {
		return nil, err
	}
	if err := loadJSON(ctx, st, store.KeyWinners, &s.winners); err != nil {
		return nil, err
	}
	importer.AssignIDs(s.candidates)

	logger.Infof("Loaded %d candidates and %d winners", len(s.candidates), len(s.winners))
	return s, nil
}

func loadJSON(ctx context.Context, st store.Store, key string, v any) error {
	b, err := st.Load(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func saveJSON(ctx context.Context, st store.Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return st.Save(ctx, key, b)
}

// Subscribe registers fn to receive the draw state after changes. Snapshots
// superseded before fn gets to them are skipped.
func (s *LotteryService) Subscribe(fn func(models.DrawState)) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
	s.startOnce.Do(func() { go s.dispatch() })
}

// snapshotLocked takes a numbered state for observers.
func (s *LotteryService) snapshotLocked() models.DrawState {
	s.version++
	return s.stateLocked()
}

// notify queues st for the dispatch goroutine without waiting for observers.
func (s *LotteryService) notify(st models.DrawState) {
	s.obsMu.Lock()
	if st.Version <= s.delivered || (s.pending != nil && st.Version <= s.pending.Version) {
		s.obsMu.Unlock()
		return
	}
	s.pending = &st
	s.obsMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *LotteryService) dispatch() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}

		s.obsMu.Lock()
		st := s.pending
		s.pending = nil
		if st == nil {
			s.obsMu.Unlock()
			continue
		}
		s.delivered = st.Version
		observers := append(([]func(models.DrawState))(nil), s.observers...)
		s.obsMu.Unlock()

		for _, fn := range observers {
			fn(*st)
		}
	}
}

// Candidates returns the imported candidate pool.
func (s *LotteryService) Candidates() []models.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Candidate(nil), s.candidates...)
}

// Winners returns the winners history, oldest first.
func (s *LotteryService) Winners() []models.Winner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Winner(nil), s.winners...)
}

// Eligible returns the candidates that have not won yet.
func (s *LotteryService) Eligible() []models.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligibleLocked()
}

func (s *LotteryService) eligibleLocked() []models.Candidate {
	won := make(map[string]bool, len(s.winners))
	for _, w := range s.winners {
		won[w.ID] = true
	}
	eligible := make([]models.Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		if !won[c.ID] {
			eligible = append(eligible, c)
		}
	}
	return eligible
}

func (s *LotteryService) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetTitle and SetShowScore notify observers so displays pick up the change.
func (s *LotteryService) SetTitle(title string) {
	s.mu.Lock()
	s.settings.Title = title
	st := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(st)
}

func (s *LotteryService) SetShowScore(show bool) {
	s.mu.Lock()
	s.settings.ShowScore = show
	st := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(st)
}

// State returns a snapshot of the draw session.
func (s *LotteryService) State() models.DrawState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *LotteryService) stateLocked() models.DrawState {
	eligible := s.eligibleLocked()
	st := models.DrawState{
		Version:      s.version,
		Phase:        s.session.phase,
		Countdown:    s.session.countdown,
		PreviewIndex: s.session.previewIndex,
		Eligible:     len(eligible),
		Candidates:   len(s.candidates),
		Winners:      len(s.winners),
	}
	if s.session.phase == models.PhaseDrawing && s.session.previewIndex < len(eligible) {
		st.Preview = eligible[s.session.previewIndex].Name
	}
	if s.session.winner != nil {
		w := *s.session.winner
		st.Winner = &w
	}
	if s.session.err != nil {
		st.Error = s.session.err.Error()
	}
	return st
}

// ImportCandidates replaces the candidate pool and persists it.
func (s *LotteryService) ImportCandidates(ctx context.Context, candidates []models.Candidate) error {
	pool := append([]models.Candidate(nil), candidates...)
	importer.AssignIDs(pool)

	s.mu.Lock()
	var err error
	if len(pool) > 0 {
		err = saveJSON(ctx, s.store, store.KeyUsers, pool)
	} else {
		err = s.store.Delete(ctx, store.KeyUsers)
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persisting candidates: %w", err)
	}
	s.candidates = pool
	st := s.snapshotLocked()
	s.mu.Unlock()

	logger.Infof("Imported %d candidates", len(pool))
	s.notify(st)
	return nil
}

// ClearCandidates removes every candidate and resets the session to idle.
func (s *LotteryService) ClearCandidates(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	s.mu.Lock()
	if err := s.store.Delete(ctx, store.KeyUsers); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clearing candidates: %w", err)
	}
	s.candidates = nil
	s.resetLocked()
	st := s.snapshotLocked()
	s.mu.Unlock()

	logger.Infof("Cleared all candidates")
	s.notify(st)
	return nil
}

// ClearWinners removes the winners history, the current winner and the
// persisted winners list, and resets the session to idle.
func (s *LotteryService) ClearWinners(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	s.mu.Lock()
	if err := s.store.Delete(ctx, store.KeyWinners); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clearing winners: %w", err)
	}
	s.winners = nil
	s.resetLocked()
	st := s.snapshotLocked()
	s.mu.Unlock()

	logger.Infof("Cleared all winners")
	s.notify(st)
	return nil
}

// StartDraw moves the session from idle or result into drawing and starts the
// countdown and preview timers.
func (s *LotteryService) StartDraw() error {
	s.mu.Lock()
	if s.session.phase == models.PhaseDrawing {
		s.mu.Unlock()
		return ErrInvalidPhase
	}
	if len(s.candidates) == 0 {
		s.mu.Unlock()
		return ErrEmptyCandidatePool
	}
	eligible := s.eligibleLocked()
	if len(eligible) == 0 {
		s.mu.Unlock()
		return ErrNoEligibleCandidates
	}
	if selection.TotalWeight(eligible) == 0 {
		s.mu.Unlock()
		return selection.ErrInvalidSelectionPool
	}

	s.stopTimersLocked()
	gen := s.session.generation + 1
	s.session = drawSession{
		phase:      models.PhaseDrawing,
		countdown:  s.countdownFrom,
		generation: gen,
	}
	s.session.cancelCountdown = s.scheduler.Every(s.countdownTick, func() { s.onCountdownTick(gen) })
	s.session.cancelPreview = s.scheduler.Every(s.previewTick, func() { s.onPreviewTick(gen) })
	round := len(s.winners) + 1
	st := s.snapshotLocked()
	s.mu.Unlock()

	logger.Infof("Draw #%d started with %d eligible candidates", round, len(eligible))
	s.notify(st)
	return nil
}

// Close stops the draw timers and observer delivery. A draw in progress is
// abandoned.
func (s *LotteryService) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.phase == models.PhaseDrawing {
		s.resetLocked()
		return
	}
	s.stopTimersLocked()
	s.session.generation++
}

func (s *LotteryService) current(gen uint64) bool {
	return s.session.phase == models.PhaseDrawing && s.session.generation == gen
}

func (s *LotteryService) onPreviewTick(gen uint64) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	if n := len(s.eligibleLocked()); n > 0 {
		s.session.previewIndex = (s.session.previewIndex + 1) % n
	} else {
		s.session.previewIndex = 0
	}
	st := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(st)
}

func (s *LotteryService) onCountdownTick(gen uint64) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	s.session.countdown--
	if s.session.countdown <= 0 {
		s.session.countdown = 0
		s.completeDrawLocked()
	}
	st := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(st)
}

// completeDrawLocked picks the winner once the countdown has run out. With no
// eligible candidate left the session falls back to idle with the error kept
// in the state for the operator.
func (s *LotteryService) completeDrawLocked() {
	s.stopTimersLocked()

	winner, err := selection.SelectWinner(s.source, s.eligibleLocked())
	if err != nil {
		if errors.Is(err, selection.ErrEmptyPool) {
			err = ErrNoEligibleCandidates
		}
		logger.Warningf("Draw could not pick a winner: %v", err)
		s.session.phase = models.PhaseIdle
		s.session.countdown = s.countdownFrom
		s.session.previewIndex = 0
		s.session.err = err
		return
	}

	s.winners = append(s.winners, models.Winner{Candidate: winner, DrawnAt: s.now()})
	s.session.winner = &winner
	s.session.phase = models.PhaseResult
	logger.Infof("Draw #%d winner: %s (score %s)", len(s.winners), winner.Name, winner.TotalScore)

	if err := saveJSON(context.Background(), s.store, store.KeyWinners, s.winners); err != nil {
		logger.Errorf("Failed to persist winners: %v", err)
		s.session.err = fmt.Errorf("winner not saved: %w", err)
	}
}

func (s *LotteryService) stopTimersLocked() {
	if s.session.cancelCountdown != nil {
		s.session.cancelCountdown()
		s.session.cancelCountdown = nil
	}
	if s.session.cancelPreview != nil {
		s.session.cancelPreview()
		s.session.cancelPreview = nil
	}
}

func (s *LotteryService) resetLocked() {
	s.stopTimersLocked()
	s.session = drawSession{
		phase:      models.PhaseIdle,
		countdown:  s.countdownFrom,
		generation: s.session.generation + 1,
	}
}
