package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hoshinonyaruko/crumbway/render"
	"github.com/hoshinonyaruko/crumbway/structs"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS 由外层中间件处理
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage 推送给客户端的消息
type StreamMessage struct {
	Type       string                   `json:"type"` // "snapshot" 或 "diff"
	Tick       uint64                   `json:"tick"`
	Running    bool                     `json:"running"`
	FoodCount  int                      `json:"food_count"`
	ActiveAnts int                      `json:"active_ants"`
	Snapshot   *structs.SessionSnapshot `json:"snapshot,omitempty"`
	Changes    *render.Changes          `json:"changes,omitempty"`
}

// Stream 先发送完整快照，之后只发送标记差异
func Stream() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := current(c)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("session %s: websocket upgrade failed: %v", s.ID, err)
			return
		}

		snaps, cancel := s.Subscribe()
		done := make(chan struct{})
		go readPump(conn, done)
		writePump(conn, s.Snapshot(), snaps, done)
		cancel()
	}
}

// readPump 只处理 pong 和关闭
func readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, first structs.SessionSnapshot, snaps <-chan structs.SessionSnapshot, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(fullMessage(first)); err != nil {
		return
	}
	prev := render.Markers(first)

	for {
		select {
		case snap, ok := <-snaps:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 会话已关闭
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			next := render.Markers(snap)
			changes := render.Diff(prev, next)
			prev = next
			msg := StreamMessage{
				Type:       "diff",
				Tick:       snap.Tick,
				Running:    snap.Running,
				FoodCount:  snap.FoodCount,
				ActiveAnts: snap.ActiveAnts,
				Changes:    &changes,
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("websocket write error: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func fullMessage(snap structs.SessionSnapshot) StreamMessage {
	return StreamMessage{
		Type:       "snapshot",
		Tick:       snap.Tick,
		Running:    snap.Running,
		FoodCount:  snap.FoodCount,
		ActiveAnts: snap.ActiveAnts,
		Snapshot:   &snap,
	}
}
