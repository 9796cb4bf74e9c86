// Package websocket implements transport.Transport over a gorilla/websocket
// connection, using the JSON frame format specified in
// {type, id, payload} with type ∈ {invoke, query, health, completion, error}.
// Correlation is by id; closing the socket marks the URI unavailable.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
	"github.com/conceptrt/conceptrt/transport"
)

// FrameType is the `type` discriminator of a wire frame.
type FrameType string

const (
	FrameInvoke     FrameType = "invoke"
	FrameQuery      FrameType = "query"
	FrameHealth     FrameType = "health"
	FrameCompletion FrameType = "completion"
	FrameError      FrameType = "error"
)

// Frame is the wire format for every message exchanged over the socket.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

type queryPayload struct {
	Relation string         `json:"relation"`
	Filter   storage.Filter `json:"filter,omitempty"`
}

// Transport is a duplex transport over one gorilla/websocket connection.
// Invoke, Query, and Health calls share one connection and correlate
// replies by frame ID; the read loop also delivers unsolicited completion
// frames to a registered push handler.
type Transport struct {
	conn *websocket.Conn

	mu      sync.Mutex
	writeMu sync.Mutex
	waiters map[string]chan Frame

	onPush  func(model.ActionCompletion)
	onClose func()

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps an already-established connection and starts its read loop.
func New(conn *websocket.Conn) *Transport {
	t := &Transport{
		conn:    conn,
		waiters: make(map[string]chan Frame),
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SetOnClose registers a callback invoked once when the socket closes —
// the kernel wiring layer uses this to call registry.MarkUnavailable
// without this package depending on the registry package.
func (t *Transport) SetOnClose(fn func()) {
	t.mu.Lock()
	t.onClose = fn
	t.mu.Unlock()
}

func (t *Transport) OnPushCompletion(handler func(model.ActionCompletion)) {
	t.mu.Lock()
	t.onPush = handler
	t.mu.Unlock()
}

func (t *Transport) readLoop() {
	defer t.markClosed()
	for {
		var frame Frame
		if err := t.conn.ReadJSON(&frame); err != nil {
			return
		}

		if frame.Type == FrameCompletion && frame.ID == "" {
			// unsolicited push completion, not a reply to a pending call
			t.mu.Lock()
			handler := t.onPush
			t.mu.Unlock()
			if handler == nil {
				continue
			}
			var c model.ActionCompletion
			if err := json.Unmarshal(frame.Payload, &c); err == nil {
				handler(c)
			}
			continue
		}

		t.mu.Lock()
		waiter, ok := t.waiters[frame.ID]
		if ok {
			delete(t.waiters, frame.ID)
		}
		t.mu.Unlock()
		if ok {
			waiter <- frame
		}
	}
}

func (t *Transport) markClosed() {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		onClose := t.onClose
		t.mu.Unlock()
		if onClose != nil {
			onClose()
		}
	})
}

func (t *Transport) call(ctx context.Context, id string, frameType FrameType, payload interface{}) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, errors.Wrap(err, "could not encode frame payload")
	}

	reply := make(chan Frame, 1)
	t.mu.Lock()
	t.waiters[id] = reply
	t.mu.Unlock()

	t.writeMu.Lock()
	err = t.conn.WriteJSON(Frame{Type: frameType, ID: id, Payload: raw})
	t.writeMu.Unlock()
	if err != nil {
		t.mu.Lock()
		delete(t.waiters, id)
		t.mu.Unlock()
		return Frame{}, errors.Wrap(err, "could not write frame")
	}

	timeout := transport.DefaultTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}

	select {
	case frame := <-reply:
		return frame, nil
	case <-t.closed:
		return Frame{}, errors.New("websocket transport: connection closed")
	case <-time.After(timeout):
		t.mu.Lock()
		delete(t.waiters, id)
		t.mu.Unlock()
		return Frame{}, errors.New("websocket transport: timeout")
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (t *Transport) Invoke(ctx context.Context, inv model.ActionInvocation) (model.ActionCompletion, error) {
	frame, err := t.call(ctx, inv.ID.String(), FrameInvoke, inv)
	if err != nil {
		return model.ActionCompletion{}, err
	}
	if frame.Type == FrameError {
		var msg string
		_ = json.Unmarshal(frame.Payload, &msg)
		return model.ActionCompletion{
			ID: inv.ID, Concept: inv.Concept, Action: inv.Action, Input: inv.Input,
			Flow: inv.Flow, Variant: model.VariantError,
			Output: model.Fields{"message": msg},
		}, nil
	}
	var c model.ActionCompletion
	if err := json.Unmarshal(frame.Payload, &c); err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not decode completion frame")
	}
	return c, nil
}

func (t *Transport) Query(ctx context.Context, relation string, filter storage.Filter) ([]model.Fields, error) {
	frame, err := t.call(ctx, model.NewID().String(), FrameQuery, queryPayload{Relation: relation, Filter: filter})
	if err != nil {
		return nil, err
	}
	var rows []model.Fields
	if err := json.Unmarshal(frame.Payload, &rows); err != nil {
		return nil, errors.Wrap(err, "could not decode query frame")
	}
	return rows, nil
}

func (t *Transport) Health(ctx context.Context) (transport.Health, error) {
	frame, err := t.call(ctx, model.NewID().String(), FrameHealth, nil)
	if err != nil {
		return transport.Health{Available: false}, nil
	}
	var h transport.Health
	if err := json.Unmarshal(frame.Payload, &h); err != nil {
		return transport.Health{Available: false}, nil
	}
	return h, nil
}

func (t *Transport) Close() error {
	return t.conn.Close()
}
