// Package engine implements the pairing game: a per-session state machine
// that tracks the player's selection, judges each guessed pair against the
// scenario solution and ends the round on a wrong guess, on completion or
// when the countdown elapses.
//
// An Engine is safe for concurrent use. Clicks are applied atomically with
// respect to each other and to the countdown, and the report and analytics
// sinks are always called after the lock is released.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/playpcd/pcdtrainer/internal/pcd"
)

// DefaultTimeout is the length of a round.
const DefaultTimeout = 30 * time.Second

var (
	ErrNotIdle = errors.New("game already started")
	ErrClosed  = errors.New("game closed")
)

type State int

const (
	Idle State = iota
	Running
	Over
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Over:
		return "over"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Rule selects when a click on a flight that belongs to no solution pair
// ends the round.
type Rule string

const (
	// RuleDeferred only fails the round once a formed pair is wrong.
	RuleDeferred Rule = "deferred"
	// RuleStrict fails the round as soon as such a flight is clicked.
	RuleStrict Rule = "strict"
)

func ParseRule(s string) (Rule, error) {
	switch r := Rule(s); r {
	case RuleDeferred, RuleStrict:
		return r, nil
	case "":
		return RuleDeferred, nil
	}
	return "", fmt.Errorf("unknown game rule %q", s)
}

// Outcome classifies the effect of a single click.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeSelected  Outcome = "selected"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeOrphan    Outcome = "orphan"
	OutcomeGameOver  Outcome = "game_over"
)

// InteractionState is a copy of the engine state at one instant.
type InteractionState struct {
	State            State
	SelectedFlightID string
	ConfirmedPairs   []pcd.Pair
	Judgements       []bool
	IsOver           bool
	StartedAt        time.Time
	Remaining        time.Duration
}

// Result is returned from SelectFlight. Pair is set when the click formed
// a pair; Report is set once the round is over.
type Result struct {
	Outcome Outcome
	Pair    pcd.Pair
	State   InteractionState
	Report  *Report
}

type ReportSink interface {
	ReportGame(Report) error
}

type AnalyticsSink interface {
	Track(Event) error
}

type Options struct {
	Timeout   time.Duration
	Rule      Rule
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Reports   ReportSink
	Analytics AnalyticsSink
}

type Engine struct {
	id       string
	scenario *pcd.Scenario
	known    map[string]bool
	solution map[string]bool

	timeout   time.Duration
	rule      Rule
	clock     clockwork.Clock
	logger    *slog.Logger
	reports   ReportSink
	analytics AnalyticsSink

	mu           sync.Mutex
	state        State
	selected     string
	confirmed    []pcd.Pair
	judgements   []bool
	startedAt    time.Time
	lastActivity time.Time
	timer        clockwork.Timer
	gen          uint64
	report       *Report
	closed       bool
	done         chan struct{}
}

// New creates an idle engine for sc. The scenario must already be valid
// and is not modified.
func New(id string, sc *pcd.Scenario, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Rule == "" {
		opts.Rule = RuleDeferred
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		id:        id,
		scenario:  sc,
		known:     make(map[string]bool, len(sc.Flights)),
		solution:  make(map[string]bool, 2*len(sc.PCDs)),
		timeout:   opts.Timeout,
		rule:      opts.Rule,
		clock:     opts.Clock,
		logger:    opts.Logger.With("game", id, "scenario", sc.ID),
		reports:   opts.Reports,
		analytics: opts.Analytics,
		done:      make(chan struct{}),
	}
	for _, f := range sc.Flights {
		e.known[f.ID] = true
	}
	for _, p := range sc.PCDs {
		e.solution[p.First()] = true
		e.solution[p.Second()] = true
	}
	e.lastActivity = e.clock.Now()
	return e
}

func (e *Engine) ID() string              { return e.id }
func (e *Engine) Scenario() *pcd.Scenario { return e.scenario }
func (e *Engine) Timeout() time.Duration  { return e.timeout }
func (e *Engine) Rule() Rule              { return e.rule }

// Done is closed when the round ends or the engine is closed.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Start moves the engine from Idle to Running and arms the countdown. A
// scenario without solution pairs completes immediately.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.state != Idle {
		e.mu.Unlock()
		return ErrNotIdle
	}

	now := e.clock.Now()
	e.state = Running
	e.startedAt = now
	e.lastActivity = now
	e.gen++
	gen := e.gen
	e.timer = e.clock.AfterFunc(e.timeout, func() { e.expire(gen) })

	var rep *Report
	if len(e.scenario.PCDs) == 0 {
		r := e.finishLocked(EndComplete, 0)
		rep = &r
	}
	e.mu.Unlock()

	e.logger.Info("game started", "timeout", e.timeout, "rule", e.rule)
	e.track(Event{Name: EventGameStart, GameID: e.id, ScenarioID: e.scenario.ID, StartedAt: now, At: now})
	if rep != nil {
		e.deliver(*rep)
	}
	return nil
}

// SelectFlight applies a click on the flight with the given id.
func (e *Engine) SelectFlight(id string) Result {
	e.mu.Lock()

	if e.closed || e.state == Idle {
		res := Result{Outcome: OutcomeIgnored, State: e.snapshotLocked()}
		e.mu.Unlock()
		return res
	}
	if e.state == Over {
		res := Result{Outcome: OutcomeGameOver, State: e.snapshotLocked(), Report: e.reportLocked()}
		e.mu.Unlock()
		return res
	}

	e.lastActivity = e.clock.Now()

	if !e.known[id] {
		res := Result{Outcome: OutcomeIgnored, State: e.snapshotLocked()}
		e.mu.Unlock()
		return res
	}

	if e.rule == RuleStrict && !e.solution[id] {
		r := e.finishLocked(EndOrphan, e.clock.Since(e.startedAt))
		res := Result{Outcome: OutcomeOrphan, State: e.snapshotLocked(), Report: &r}
		e.mu.Unlock()
		e.deliver(r)
		return res
	}

	if e.selected == "" {
		e.selected = id
		res := Result{Outcome: OutcomeSelected, State: e.snapshotLocked()}
		e.mu.Unlock()
		return res
	}
	if e.selected == id {
		res := Result{Outcome: OutcomeIgnored, State: e.snapshotLocked()}
		e.mu.Unlock()
		return res
	}

	p := pcd.NewPair(e.selected, id)
	e.selected = ""
	if pcd.ContainsPair(e.confirmed, p) {
		res := Result{Outcome: OutcomeDuplicate, Pair: p, State: e.snapshotLocked()}
		e.mu.Unlock()
		return res
	}

	correct := pcd.ContainsPair(e.scenario.PCDs, p)
	e.confirmed = append(e.confirmed, p)
	e.judgements = append(e.judgements, correct)

	var rep *Report
	outcome := OutcomeCorrect
	switch {
	case !correct:
		outcome = OutcomeIncorrect
		r := e.finishLocked(EndIncorrect, e.clock.Since(e.startedAt))
		rep = &r
	case pcd.Intersect(e.confirmed, e.scenario.PCDs) == len(e.scenario.PCDs):
		r := e.finishLocked(EndComplete, e.clock.Since(e.startedAt))
		rep = &r
	}
	res := Result{Outcome: outcome, Pair: p, State: e.snapshotLocked(), Report: rep}
	e.mu.Unlock()

	if rep != nil {
		e.deliver(*rep)
	}
	return res
}

// Snapshot returns a copy of the current interaction state.
func (e *Engine) Snapshot() InteractionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Report returns the completion report once the round is over.
func (e *Engine) Report() (Report, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.report == nil {
		return Report{}, false
	}
	return *e.report, true
}

// Remaining returns the time left on the countdown, zero unless Running.
func (e *Engine) Remaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

func (e *Engine) remainingLocked() time.Duration {
	if e.state != Running || e.closed {
		return 0
	}
	return max(0, e.timeout-e.clock.Since(e.startedAt))
}

// LastActivity returns when the engine was created, started or last
// clicked.
func (e *Engine) LastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

// Close tears the session down: the countdown is cancelled, no report is
// produced and further input is ignored. Close is idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.stopTimerLocked()
	if e.state != Over {
		close(e.done)
	}
}

func (e *Engine) expire(gen uint64) {
	e.mu.Lock()
	if e.closed || e.state != Running || gen != e.gen {
		e.mu.Unlock()
		return
	}
	// The callback may run while the clock is still firing it, so neither
	// the clock nor the spent timer is touched from here.
	e.timer = nil
	r := e.finishLocked(EndTimeout, e.timeout)
	e.mu.Unlock()

	e.deliver(r)
}

func (e *Engine) stopTimerLocked() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// finishLocked enters Over and builds the report. Callers deliver the
// report once the lock is released.
func (e *Engine) finishLocked(reason EndReason, elapsed time.Duration) Report {
	e.stopTimerLocked()
	e.state = Over
	e.selected = ""

	correct := pcd.Intersect(e.confirmed, e.scenario.PCDs)
	r := Report{
		GameID:       e.id,
		ScenarioID:   e.scenario.ID,
		CorrectCount: correct,
		TotalPairs:   len(e.scenario.PCDs),
		Elapsed:      elapsed,
		Success:      correct == len(e.scenario.PCDs),
		Reason:       reason,
		StartedAt:    e.startedAt,
	}
	e.report = &r
	close(e.done)
	return r
}

func (e *Engine) reportLocked() *Report {
	if e.report == nil {
		return nil
	}
	r := *e.report
	return &r
}

func (e *Engine) snapshotLocked() InteractionState {
	return InteractionState{
		State:            e.state,
		SelectedFlightID: e.selected,
		ConfirmedPairs:   append([]pcd.Pair(nil), e.confirmed...),
		Judgements:       append([]bool(nil), e.judgements...),
		IsOver:           e.state == Over,
		StartedAt:        e.startedAt,
		Remaining:        e.remainingLocked(),
	}
}

func (e *Engine) deliver(r Report) {
	e.logger.Info("game over",
		"reason", r.Reason,
		"correct", r.CorrectCount,
		"total", r.TotalPairs,
		"elapsed", r.Elapsed,
	)
	if e.reports != nil {
		if err := e.reports.ReportGame(r); err != nil {
			e.logger.Error("report delivery failed", "error", err)
		}
	}
	name := EventGameFailure
	if r.Success {
		name = EventGameSuccess
	}
	e.track(Event{
		Name:       name,
		GameID:     r.GameID,
		ScenarioID: r.ScenarioID,
		StartedAt:  r.StartedAt,
		Elapsed:    r.Elapsed,
		Success:    r.Success,
		At:         r.StartedAt.Add(r.Elapsed),
	})
}

func (e *Engine) track(ev Event) {
	if e.analytics == nil {
		return
	}
	if err := e.analytics.Track(ev); err != nil {
		e.logger.Error("analytics event failed", "event", ev.Name, "error", err)
	}
}
