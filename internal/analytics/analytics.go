// Package analytics publishes round lifecycle events. Events go to a NATS
// JetStream subject per event name when a server is configured, or to the
// process log otherwise.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/playpcd/pcdtrainer/internal/engine"
)

const (
	StreamName    = "PCD_ANALYTICS"
	SubjectPrefix = "pcd.analytics."
)

// Publisher delivers analytics events.
type Publisher interface {
	Publish(ctx context.Context, ev engine.Event) error
}

// Record is the wire form of an event: a name plus a flat property bag.
type Record struct {
	Event      string     `json:"event"`
	Properties Properties `json:"properties"`
	Timestamp  time.Time  `json:"timestamp"`
}

type Properties struct {
	ScenarioID string `json:"scenarioId"`
	GameID     string `json:"gameId"`
	StartTime  string `json:"startTime"`
	PlayTime   string `json:"playTime,omitempty"`
	Success    *bool  `json:"success,omitempty"`
}

// NewRecord converts ev to its wire form. End events carry the play time
// and the success flag; start events carry neither.
func NewRecord(ev engine.Event) Record {
	rec := Record{
		Event: ev.Name,
		Properties: Properties{
			ScenarioID: ev.ScenarioID,
			GameID:     ev.GameID,
			StartTime:  ev.StartedAt.UTC().Format(time.RFC3339Nano),
			PlayTime:   ev.PlayTime(),
		},
		Timestamp: ev.At.UTC(),
	}
	if ev.Name != engine.EventGameStart {
		success := ev.Success
		rec.Properties.Success = &success
	}
	return rec
}

// Subject returns the JetStream subject for an event name.
func Subject(name string) string {
	return SubjectPrefix + name
}

type NATS struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewNATS connects to url and makes sure the analytics stream exists.
func NewNATS(url string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("pcdtrainer"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPrefix + ">"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) &&
		!strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &NATS{conn: nc, js: js}, nil
}

func (n *NATS) Publish(ctx context.Context, ev engine.Event) error {
	data, err := json.Marshal(NewRecord(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := n.js.Publish(Subject(ev.Name), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Check reports whether the connection is up, for the health probe.
func (n *NATS) Check(context.Context) error {
	if s := n.conn.Status(); s != nats.CONNECTED {
		return fmt.Errorf("nats connection %s", s)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

// Log writes events to a structured logger.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, ev engine.Event) error {
	rec := NewRecord(ev)
	attrs := []any{
		"event", rec.Event,
		"game", rec.Properties.GameID,
		"scenario", rec.Properties.ScenarioID,
		"start_time", rec.Properties.StartTime,
	}
	if rec.Properties.PlayTime != "" {
		attrs = append(attrs, "play_time", rec.Properties.PlayTime)
	}
	if rec.Properties.Success != nil {
		attrs = append(attrs, "success", *rec.Properties.Success)
	}
	l.logger.InfoContext(ctx, "analytics event", attrs...)
	return nil
}
