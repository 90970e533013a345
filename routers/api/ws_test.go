package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialRelay(t *testing.T, ch chan *redis.Message) *websocket.Conn {
	t.Helper()
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		relaySocket(conn, ch, func() { once.Do(func() { close(ch) }) })
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestRelaySocketAnswersTextPing(t *testing.T) {
	ch := make(chan *redis.Message, 1)
	client := dialRelay(t, ch)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.JSONEq(t, `{"type":"pong"}`, readText(t, client))

	// Keepalive and channel traffic are independent: a published event
	// still arrives after the ping exchange.
	ch <- &redis.Message{Payload: `{"type":"scene_update","scene_id":"s1","status":"REVIEW"}`}
	assert.Contains(t, readText(t, client), "scene_update")
}

func TestRelaySocketForwardsMessagesInOrder(t *testing.T) {
	ch := make(chan *redis.Message, 2)
	client := dialRelay(t, ch)

	ch <- &redis.Message{Payload: `{"type":"project_update","status":"PRODUCTION"}`}
	ch <- &redis.Message{Payload: `{"type":"compose_progress","progress":50}`}

	assert.Contains(t, readText(t, client), "project_update")
	assert.Contains(t, readText(t, client), "compose_progress")
}

func TestRelaySocketIgnoresOtherClientFrames(t *testing.T) {
	ch := make(chan *redis.Message, 1)
	client := dialRelay(t, ch)

	// Arbitrary client chatter is dropped, not echoed and not fatal.
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello?")))
	ch <- &redis.Message{Payload: `{"type":"project_update","status":"COMPOSING"}`}
	assert.Contains(t, readText(t, client), "project_update")
}
