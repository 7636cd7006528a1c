package server

import (
	"context"
	"errors"
	"time"

	"github.com/playpcd/pcdtrainer/internal/engine"
	"github.com/playpcd/pcdtrainer/internal/pcd"
)

var ErrNotFound = errors.New("not found")

// ScenarioSummary is the listing form of a scenario. The solution is
// reduced to its size.
type ScenarioSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	FlightCount int       `json:"flightCount"`
	PCDCount    int       `json:"pcdCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func summarize(sc *pcd.Scenario) ScenarioSummary {
	return ScenarioSummary{
		ID:          sc.ID,
		Name:        sc.Name,
		FlightCount: len(sc.Flights),
		PCDCount:    len(sc.PCDs),
		CreatedAt:   sc.CreatedAt,
	}
}

// GameResult is a persisted completion report.
type GameResult struct {
	GameID       string    `json:"gameId"`
	ScenarioID   string    `json:"scenarioId"`
	CorrectCount int       `json:"correctCount"`
	TotalPairs   int       `json:"totalPairs"`
	Success      bool      `json:"success"`
	Reason       string    `json:"reason"`
	ElapsedMs    int64     `json:"elapsedMs"`
	PlayTime     string    `json:"playTime"`
	Summary      string    `json:"summary"`
	StartedAt    time.Time `json:"startTime"`
	FinishedAt   time.Time `json:"finishedAt"`
}

func resultFromReport(r engine.Report) GameResult {
	return GameResult{
		GameID:       r.GameID,
		ScenarioID:   r.ScenarioID,
		CorrectCount: r.CorrectCount,
		TotalPairs:   r.TotalPairs,
		Success:      r.Success,
		Reason:       string(r.Reason),
		ElapsedMs:    r.ElapsedMs(),
		PlayTime:     r.PlayTime(),
		Summary:      r.Summary(),
		StartedAt:    r.StartedAt.UTC(),
		FinishedAt:   r.StartedAt.Add(r.Elapsed).UTC(),
	}
}

type Store interface {
	AdminByEmail(ctx context.Context, email string) (adminID, passwordHash string, err error)
	CreateAdminSession(ctx context.Context, adminID string) (sessionID string, err error)
	DeleteAdminSession(ctx context.Context, sessionID string) error
	AdminFromSession(ctx context.Context, sessionID string) (adminSession, error)

	ListScenarios(ctx context.Context) ([]ScenarioSummary, error)
	GetScenario(ctx context.Context, id string) (*pcd.Scenario, error)
	CreateScenario(ctx context.Context, sc *pcd.Scenario) error
	DeleteScenario(ctx context.Context, id string) error

	SaveResult(ctx context.Context, r engine.Report) error
	ListResults(ctx context.Context, scenarioID string) ([]GameResult, error)
}
