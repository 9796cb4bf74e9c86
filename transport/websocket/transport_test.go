package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
)

var upgrader = websocket.Upgrader{}

// startEchoServer upgrades every connection and replies to an invoke frame
// with a completion frame carrying the same id, echoing the invocation's
// input back as output.
func startEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			var frame Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			switch frame.Type {
			case FrameInvoke:
				var inv model.ActionInvocation
				require.NoError(t, json.Unmarshal(frame.Payload, &inv))
				completion := model.ActionCompletion{
					ID: inv.ID, Concept: inv.Concept, Action: inv.Action,
					Variant: model.VariantOK, Output: inv.Input,
				}
				payload, _ := json.Marshal(completion)
				_ = conn.WriteJSON(Frame{Type: FrameCompletion, ID: frame.ID, Payload: payload})
			case FrameHealth:
				payload, _ := json.Marshal(map[string]interface{}{"Available": true})
				_ = conn.WriteJSON(Frame{Type: FrameHealth, ID: frame.ID, Payload: payload})
			}
		}
	}))
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func TestInvokeRoundTripsOverSocket(t *testing.T) {
	server := startEchoServer(t)
	defer server.Close()

	conn := dial(t, server)
	tr := New(conn)
	defer tr.Close()

	inv := model.ActionInvocation{ID: model.NewID(), Concept: "Echo", Action: "send", Input: model.Fields{"message": "hi"}}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := tr.Invoke(ctx, inv)
	require.NoError(t, err)
	require.Equal(t, model.VariantOK, c.Variant)
	require.Equal(t, "hi", c.Output["message"])
}

func TestHealthRoundTripsOverSocket(t *testing.T) {
	server := startEchoServer(t)
	defer server.Close()

	conn := dial(t, server)
	tr := New(conn)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	h, err := tr.Health(ctx)
	require.NoError(t, err)
	require.True(t, h.Available)
}

func TestInvokeAfterCloseReturnsError(t *testing.T) {
	server := startEchoServer(t)
	defer server.Close()

	conn := dial(t, server)
	tr := New(conn)
	require.NoError(t, tr.Close())

	time.Sleep(10 * time.Millisecond)

	inv := model.ActionInvocation{ID: model.NewID(), Concept: "Echo", Action: "send"}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := tr.Invoke(ctx, inv)
	require.Error(t, err)
}

func TestOnPushCompletionReceivesUnsolicitedFrame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		completion := model.ActionCompletion{ID: model.NewID(), Concept: "Echo", Action: "send", Variant: model.VariantOK}
		payload, _ := json.Marshal(completion)
		_ = conn.WriteJSON(Frame{Type: FrameCompletion, ID: "", Payload: payload})

		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	conn := dial(t, server)
	tr := New(conn)
	defer tr.Close()

	received := make(chan model.ActionCompletion, 1)
	tr.OnPushCompletion(func(c model.ActionCompletion) {
		received <- c
	})

	select {
	case c := <-received:
		require.Equal(t, model.VariantOK, c.Variant)
	case <-time.After(time.Second):
		t.Fatal("push completion never delivered")
	}
}
