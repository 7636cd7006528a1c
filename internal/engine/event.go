package engine

import "time"

const (
	EventGameStart   = "game_start"
	EventGameSuccess = "game_finish_success"
	EventGameFailure = "game_finish_failure"
)

// Event is an analytics record emitted at round start and end.
type Event struct {
	Name       string        `json:"event" msgpack:"event"`
	GameID     string        `json:"gameId" msgpack:"gameId"`
	ScenarioID string        `json:"scenarioId" msgpack:"scenarioId"`
	StartedAt  time.Time     `json:"startTime" msgpack:"startTime"`
	Elapsed    time.Duration `json:"-" msgpack:"-"`
	Success    bool          `json:"success" msgpack:"success"`
	At         time.Time     `json:"at" msgpack:"at"`
}

// PlayTime is the ISO-8601 play time, empty for start events.
func (ev Event) PlayTime() string {
	if ev.Name == EventGameStart {
		return ""
	}
	return ISODuration(ev.Elapsed)
}
