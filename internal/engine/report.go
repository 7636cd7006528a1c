package engine

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// EndReason records why a round entered Over.
type EndReason string

const (
	EndTimeout   EndReason = "timeout"
	EndIncorrect EndReason = "incorrect"
	EndComplete  EndReason = "complete"
	EndOrphan    EndReason = "orphan"
)

// Report is the completion summary handed to the sinks on entering Over.
type Report struct {
	GameID       string
	ScenarioID   string
	CorrectCount int
	TotalPairs   int
	Elapsed      time.Duration
	Success      bool
	Reason       EndReason
	StartedAt    time.Time
}

// ElapsedMs returns the play time in whole milliseconds.
func (r Report) ElapsedMs() int64 {
	return r.Elapsed.Milliseconds()
}

// Summary is the sentence shown to the player when the round ends.
func (r Report) Summary() string {
	return fmt.Sprintf("Guessed %d correct PCDs out of %d in %s", r.CorrectCount, r.TotalPairs, FormatElapsed(r.Elapsed))
}

// PlayTime returns the elapsed time as an ISO-8601 duration in seconds,
// e.g. PT12.5S.
func (r Report) PlayTime() string {
	return ISODuration(r.Elapsed)
}

// FormatElapsed renders d as "1m 5s" or "5s".
func FormatElapsed(d time.Duration) string {
	ms := d.Milliseconds()
	minutes := ms / 60000
	seconds := math.Round(float64(ms%60000) / 1000)
	if minutes > 0 {
		return fmt.Sprintf("%dm %.0fs", minutes, seconds)
	}
	return fmt.Sprintf("%.0fs", seconds)
}

func ISODuration(d time.Duration) string {
	secs := float64(d.Milliseconds()) / 1000
	return "PT" + strconv.FormatFloat(secs, 'f', -1, 64) + "S"
}
