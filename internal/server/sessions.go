package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/playpcd/pcdtrainer/internal/engine"
	"github.com/playpcd/pcdtrainer/internal/pcd"
)

// Sessions owns the live game engines, keyed by game ID. Every engine is
// created, clicked and torn down through it so that its subscribers see
// the same sequence of events.
type Sessions struct {
	mu    sync.RWMutex
	games map[string]*engine.Engine

	engineOpts engine.Options
	broker     *Broker
	clock      clockwork.Clock
	logger     *slog.Logger
	newID      func() string
}

type SessionsOptions struct {
	Timeout   time.Duration
	Rule      engine.Rule
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Reports   engine.ReportSink
	Analytics engine.AnalyticsSink
	Broker    *Broker
}

func NewSessions(opts SessionsOptions) *Sessions {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Broker == nil {
		opts.Broker = NewBroker()
	}
	return &Sessions{
		games: make(map[string]*engine.Engine),
		engineOpts: engine.Options{
			Timeout:   opts.Timeout,
			Rule:      opts.Rule,
			Clock:     opts.Clock,
			Logger:    opts.Logger,
			Reports:   opts.Reports,
			Analytics: opts.Analytics,
		},
		broker: opts.Broker,
		clock:  opts.Clock,
		logger: opts.Logger,
		newID:  uuid.NewString,
	}
}

// Start registers a new engine for sc and starts its countdown.
func (s *Sessions) Start(sc *pcd.Scenario) (*engine.Engine, error) {
	e := engine.New(s.newID(), sc, s.engineOpts)

	s.mu.Lock()
	s.games[e.ID()] = e
	s.mu.Unlock()

	go s.watch(e)

	if err := e.Start(); err != nil {
		s.Remove(e.ID())
		return nil, err
	}
	return e, nil
}

// watch announces rounds that run out of time. Rounds ended by a click are
// announced by Select, after the click itself; a session torn down before
// its round ended produces no announcement.
func (s *Sessions) watch(e *engine.Engine) {
	<-e.Done()
	if rep, ok := e.Report(); ok && rep.Reason == engine.EndTimeout {
		s.broker.Publish(e.ID(), GameEvent{Type: EventGameOver, Report: newReportResponse(rep)})
	}
}

func (s *Sessions) Get(id string) (*engine.Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.games[id]
	return e, ok
}

// Select applies a click to the game and publishes what it changed.
func (s *Sessions) Select(id, flightID string) (engine.Result, error) {
	e, ok := s.Get(id)
	if !ok {
		return engine.Result{}, ErrNotFound
	}

	res := e.SelectFlight(flightID)
	switch res.Outcome {
	case engine.OutcomeSelected:
		s.broker.Publish(id, GameEvent{Type: EventSelected, FlightID: flightID})
	case engine.OutcomeCorrect, engine.OutcomeIncorrect:
		s.broker.Publish(id, GameEvent{Type: EventPair, Pair: newPairResponse(res.Pair, res.Outcome == engine.OutcomeCorrect)})
	case engine.OutcomeDuplicate:
		s.broker.Publish(id, GameEvent{Type: EventDuplicate, Pair: newPairResponse(res.Pair, true)})
	}
	if res.Report != nil && res.Outcome != engine.OutcomeGameOver {
		s.broker.Publish(id, GameEvent{Type: EventGameOver, Report: newReportResponse(*res.Report)})
	}
	return res, nil
}

// Remove tears the session down. It reports whether the session existed.
func (s *Sessions) Remove(id string) bool {
	s.mu.Lock()
	e, ok := s.games[id]
	delete(s.games, id)
	s.mu.Unlock()

	if ok {
		e.Close()
	}
	return ok
}

// Reap removes sessions with no activity for longer than ttl and returns
// how many were removed. Running rounds are left to their countdown so
// that they still end with a report.
func (s *Sessions) Reap(ttl time.Duration) int {
	cutoff := s.clock.Now().Add(-ttl)

	var stale []string
	s.mu.RLock()
	for id, e := range s.games {
		if e.Snapshot().State == engine.Running {
			continue
		}
		if e.LastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if s.Remove(id) {
			n++
		}
	}
	return n
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// CloseAll tears down every session, cancelling their countdowns.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	games := s.games
	s.games = make(map[string]*engine.Engine)
	s.mu.Unlock()

	for _, e := range games {
		e.Close()
	}
	if len(games) > 0 {
		s.logger.Info("sessions closed", "count", len(games))
	}
}
