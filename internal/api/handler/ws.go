package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"honbap/backend/internal/models"
	"honbap/backend/internal/pairing"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows cross-origin connections. Tighten in production!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeRoomFeed upgrades to a websocket that streams the room's live
// message feed. Each frame carries the full current feed, replacing prior
// state wholesale; inbound frames are {"text": ...} sends.
func (h *Handler) ServeRoomFeed(c *gin.Context) {
	sess := session(c)
	roomID := c.Param("roomId")

	feed, stopFeed, err := h.Pairing.SubscribeMessages(context.Background(), sess, roomID)
	if err != nil {
		h.apiError(c, lang(c), err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		stopFeed()
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := &feedClient{
		handler: h,
		sess:    sess,
		roomID:  roomID,
		conn:    conn,
		feed:    feed,
		stop:    stopFeed,
	}
	go client.writePump()
	go client.readPump()
}

type feedClient struct {
	handler *Handler
	sess    pairing.Session
	roomID  string
	conn    *websocket.Conn
	feed    <-chan []models.Message
	stop    func()
}

func (fc *feedClient) readPump() {
	defer func() {
		fc.stop()
		fc.conn.Close()
	}()

	fc.conn.SetReadLimit(maxMessageSize)
	fc.conn.SetReadDeadline(time.Now().Add(pongWait))
	fc.conn.SetPongHandler(func(string) error {
		fc.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var inbound struct {
			Text string `json:"text"`
		}
		if err := fc.conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := fc.handler.Pairing.Send(ctx, fc.sess, fc.roomID, inbound.Text); err != nil {
			// Empty text and membership violations just bounce back.
			_ = fc.conn.WriteJSON(map[string]string{"error": err.Error()})
		}
		cancel()
	}
}

func (fc *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		fc.conn.Close()
	}()

	for {
		select {
		case batch, ok := <-fc.feed:
			fc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				fc.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := fc.conn.WriteJSON(batch); err != nil {
				return
			}
		case <-ticker.C:
			fc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := fc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
