package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/playpcd/pcdtrainer/internal/engine"
	"github.com/playpcd/pcdtrainer/internal/mapview"
	"github.com/playpcd/pcdtrainer/internal/synth"
)

const (
	wsView     = "view"
	wsClick    = "click"
	wsState    = "state"
	wsFeatures = "features"
	wsError    = "error"
)

// WSClientMessage is sent by the map host: a camera change or a click.
type WSClientMessage struct {
	Type     string            `json:"type"`
	Viewport *mapview.Viewport `json:"viewport,omitempty"`
	FlightID string            `json:"flightId,omitempty"`
}

// WSServerMessage is pushed to the map host.
type WSServerMessage struct {
	Type     string                     `json:"type"`
	Outcome  string                     `json:"outcome,omitempty"`
	State    *GameStateResponse         `json:"state,omitempty"`
	Features *geojson.FeatureCollection `json:"features,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

type wsCodec struct {
	typ       websocket.MessageType
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

var (
	jsonCodec    = wsCodec{typ: websocket.MessageText, marshal: json.Marshal, unmarshal: json.Unmarshal}
	msgpackCodec = wsCodec{typ: websocket.MessageBinary, marshal: marshalMsgpack, unmarshal: unmarshalMsgpack}
)

// marshalMsgpack encodes the JSON form of v, so GeoJSON geometries and
// bounding boxes keep the same shape in both encodings.
func marshalMsgpack(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return msgpack.Marshal(generic)
}

func unmarshalMsgpack(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// wsClient is one map host connection to a game.
type wsClient struct {
	conn     *websocket.Conn
	codec    wsCodec
	game     *engine.Engine
	sessions *Sessions
	synth    *synth.Synthesizer

	mu   sync.Mutex
	view *mapview.Viewport
}

func (c *wsClient) send(ctx context.Context, msg WSServerMessage) error {
	data, err := c.codec.marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.Type, err)
	}
	return c.conn.Write(ctx, c.codec.typ, data)
}

func (c *wsClient) sendState(ctx context.Context, outcome engine.Outcome) error {
	st := gameState(c.game)
	return c.send(ctx, WSServerMessage{Type: wsState, Outcome: string(outcome), State: &st})
}

// sendFeatures renders the last reported view, if any.
func (c *wsClient) sendFeatures(ctx context.Context) error {
	c.mu.Lock()
	view := c.view
	c.mu.Unlock()
	if view == nil {
		return nil
	}
	return c.send(ctx, WSServerMessage{Type: wsFeatures, Features: renderFeatures(c.synth, c.game, *view)})
}

func (c *wsClient) handle(ctx context.Context, msg WSClientMessage) error {
	switch msg.Type {
	case wsView:
		if msg.Viewport == nil {
			return c.send(ctx, WSServerMessage{Type: wsError, Error: "viewport is required"})
		}
		if err := msg.Viewport.Validate(); err != nil {
			return c.send(ctx, WSServerMessage{Type: wsError, Error: err.Error()})
		}
		c.mu.Lock()
		vp := *msg.Viewport
		c.view = &vp
		c.mu.Unlock()
		return c.sendFeatures(ctx)

	case wsClick:
		if msg.FlightID == "" {
			return c.send(ctx, WSServerMessage{Type: wsError, Error: "flightId is required"})
		}
		res, err := c.sessions.Select(c.game.ID(), msg.FlightID)
		if err != nil {
			return c.send(ctx, WSServerMessage{Type: wsError, Error: "game not found"})
		}
		if err := c.sendState(ctx, res.Outcome); err != nil {
			return err
		}
		return c.sendFeatures(ctx)
	}
	return c.send(ctx, WSServerMessage{Type: wsError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
}

// watch pushes the final state when the round runs out of time, and closes
// the connection when the session is torn down. Rounds ended by a click
// are already reported in the click's state message.
func (c *wsClient) watch(ctx context.Context, cancel context.CancelFunc) error {
	select {
	case <-ctx.Done():
		return nil
	case <-c.game.Done():
	}
	rep, ok := c.game.Report()
	if !ok {
		c.conn.Close(websocket.StatusNormalClosure, "game closed")
		cancel()
		return nil
	}
	if rep.Reason != engine.EndTimeout {
		return nil
	}
	if err := c.sendState(ctx, engine.OutcomeGameOver); err != nil {
		return err
	}
	return c.sendFeatures(ctx)
}

// handleGameWS is the map host channel for a game. Messages are JSON text
// frames, or msgpack binary frames with ?encoding=msgpack.
func handleGameWS(logger *slog.Logger, sessions *Sessions, s *synth.Synthesizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		codec := jsonCodec
		switch enc := r.URL.Query().Get("encoding"); enc {
		case "", "json":
		case "msgpack":
			codec = msgpackCodec
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported encoding %q", enc))
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
		defer cancel()

		c := &wsClient{
			conn:     conn,
			codec:    codec,
			game:     gameFrom(r),
			sessions: sessions,
			synth:    s,
		}
		if err := c.sendState(ctx, ""); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}
		go func() {
			if err := c.watch(ctx, cancel); err != nil {
				logger.Debug("websocket push failed", "game", c.game.ID(), "error", err)
			}
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
					logger.Debug("websocket read ended", "game", c.game.ID(), "error", err)
				}
				return
			}

			var msg WSClientMessage
			if err := codec.unmarshal(data, &msg); err != nil {
				if err := c.send(ctx, WSServerMessage{Type: wsError, Error: "invalid message"}); err != nil {
					return
				}
				continue
			}
			if err := c.handle(ctx, msg); err != nil {
				logger.Debug("websocket write failed", "game", c.game.ID(), "error", err)
				return
			}
		}
	}
}
