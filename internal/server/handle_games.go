package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/playpcd/pcdtrainer/internal/engine"
	"github.com/playpcd/pcdtrainer/internal/mapview"
	"github.com/playpcd/pcdtrainer/internal/pcd"
	"github.com/playpcd/pcdtrainer/internal/synth"
)

// CreateGameRequest is the request body for POST /api/games.
type CreateGameRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// PlayScenario is a scenario as shown to the player: everything but the
// solution, which is reduced to its size.
type PlayScenario struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Flights    []pcd.FlightSnapshot `json:"flights"`
	Boundaries pcd.BoundingBox      `json:"boundaries"`
	View       pcd.View             `json:"view"`
	PCDCount   int                  `json:"pcdCount"`
}

type GameResponse struct {
	ID       string            `json:"id"`
	Scenario PlayScenario      `json:"scenario"`
	State    GameStateResponse `json:"state"`
}

type PairResponse struct {
	FirstID  string `json:"firstId"`
	SecondID string `json:"secondId"`
	Correct  bool   `json:"correct"`
}

type ReportResponse struct {
	CorrectCount int    `json:"correctCount"`
	TotalPairs   int    `json:"totalPairs"`
	ElapsedMs    int64  `json:"elapsedMs"`
	PlayTime     string `json:"playTime"`
	Success      bool   `json:"success"`
	Reason       string `json:"reason"`
	Summary      string `json:"summary"`
}

type GameStateResponse struct {
	State            string          `json:"state"`
	SelectedFlightID string          `json:"selectedFlightId,omitempty"`
	Pairs            []PairResponse  `json:"pairs"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	RemainingMs      int64           `json:"remainingMs"`
	Report           *ReportResponse `json:"report,omitempty"`
}

// SelectRequest is the request body for POST /api/games/{gameID}/select.
type SelectRequest struct {
	FlightID string `json:"flightId"`
}

type SelectResponse struct {
	Outcome string `json:"outcome"`
	GameStateResponse
}

func newPairResponse(p pcd.Pair, correct bool) *PairResponse {
	return &PairResponse{FirstID: p.First(), SecondID: p.Second(), Correct: correct}
}

func newReportResponse(r engine.Report) *ReportResponse {
	return &ReportResponse{
		CorrectCount: r.CorrectCount,
		TotalPairs:   r.TotalPairs,
		ElapsedMs:    r.ElapsedMs(),
		PlayTime:     r.PlayTime(),
		Success:      r.Success,
		Reason:       string(r.Reason),
		Summary:      r.Summary(),
	}
}

func newPlayScenario(sc *pcd.Scenario) PlayScenario {
	return PlayScenario{
		ID:         sc.ID,
		Name:       sc.Name,
		Flights:    sc.Flights,
		Boundaries: sc.Boundaries,
		View:       sc.View,
		PCDCount:   len(sc.PCDs),
	}
}

func gameState(e *engine.Engine) GameStateResponse {
	st := e.Snapshot()
	var rep *engine.Report
	if r, ok := e.Report(); ok && st.IsOver {
		rep = &r
	}
	return newGameState(st, rep)
}

// newGameState builds the response from one engine snapshot so that state,
// countdown and report always agree.
func newGameState(st engine.InteractionState, rep *engine.Report) GameStateResponse {
	resp := GameStateResponse{
		State:            st.State.String(),
		SelectedFlightID: st.SelectedFlightID,
		Pairs:            make([]PairResponse, len(st.ConfirmedPairs)),
		RemainingMs:      st.Remaining.Milliseconds(),
	}
	for i, p := range st.ConfirmedPairs {
		resp.Pairs[i] = *newPairResponse(p, st.Judgements[i])
	}
	if !st.StartedAt.IsZero() {
		t := st.StartedAt.UTC()
		resp.StartedAt = &t
	}
	if rep != nil {
		resp.Report = newReportResponse(*rep)
	}
	return resp
}

func handleCreateGame(logger *slog.Logger, loader *ScenarioLoader, sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateGameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.ScenarioID = strings.TrimSpace(req.ScenarioID)
		if req.ScenarioID == "" {
			writeError(w, http.StatusBadRequest, "scenarioId is required")
			return
		}

		sc, err := loader.Get(r.Context(), req.ScenarioID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "scenario not found")
			return
		}
		if err != nil {
			logger.Error("loading scenario", "scenario", req.ScenarioID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		e, err := sessions.Start(sc)
		if err != nil {
			logger.Error("starting game", "scenario", sc.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, GameResponse{
			ID:       e.ID(),
			Scenario: newPlayScenario(sc),
			State:    gameState(e),
		})
	}
}

func handleGetGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gameState(gameFrom(r)))
	}
}

func handleSelectFlight(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.FlightID == "" {
			writeError(w, http.StatusBadRequest, "flightId is required")
			return
		}

		e := gameFrom(r)
		res, err := sessions.Select(e.ID(), req.FlightID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}

		writeJSON(w, http.StatusOK, SelectResponse{
			Outcome:           string(res.Outcome),
			GameStateResponse: newGameState(res.State, res.Report),
		})
	}
}

func handleFeatures(s *synth.Synthesizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var vp mapview.Viewport
		if err := readJSON(r, &vp); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := vp.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, renderFeatures(s, gameFrom(r), vp))
	}
}

func handleDeleteGame(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.Remove(gameFrom(r).ID())
		w.WriteHeader(http.StatusNoContent)
	}
}
