package api

import (
	"bytes"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"MotionWeaver-server/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var wsPongReply = []byte(`{"type":"pong"}`)

// ProjectWS upgrades the connection and relays the project's pub/sub
// channel to the client.
func (h *Handler) ProjectWS(c *gin.Context) {
	projectID := c.Param("id")
	if _, err := models.GetProjectByID(h.DB, projectID); err != nil {
		failFrom(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed for project %s: %v", projectID, err)
		return
	}
	defer conn.Close()

	sub := h.Notifier.Subscribe(c.Request.Context(), projectID)
	relaySocket(conn, sub.Channel(), func() { sub.Close() })
	log.Printf("[WS] project %s client disconnected", projectID)
}

// relaySocket pumps pub/sub messages out and services keepalives. Two
// keepalive paths: protocol-level ping/pong frames, and an
// application-level text "ping" answered with a pong message for
// clients whose websocket API hides control frames. Either one extends
// the read deadline. Writes from the pump goroutine and the read loop
// share one mutex; closer tears down the message source so the pump
// drains and exits.
func relaySocket(conn *websocket.Conn, ch <-chan *redis.Message, closer func()) {
	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(messageType, data)
	}

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, open := <-ch:
				if !open {
					return
				}
				if err := write(websocket.TextMessage, []byte(msg.Payload)); err != nil {
					return
				}
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType == websocket.TextMessage && bytes.Equal(bytes.TrimSpace(data), []byte("ping")) {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			if err := write(websocket.TextMessage, wsPongReply); err != nil {
				break
			}
		}
	}
	closer()
	<-done
}
