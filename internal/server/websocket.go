package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/saraylo/assessment-trainer/internal/go_func_utils"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
)

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("Server: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := conn.RemoteAddr().String()
	s.logger.Printf("Server: websocket client %s connected", client)

	ch := make(chan Message, clientBuffer)
	unlisten := s.hub.Listen(ch)
	defer unlisten()

	// Clients only send control frames; reading detects the close.
	done := make(chan struct{})
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go_func_utils.SafeGo(s.logger, "websocket reader", func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Printf("Server: websocket %s read error: %v", client, err)
				}
				return
			}
		}
	})

	if err := s.write(conn, Message{Type: MessageState, Data: s.ctrl.State()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			s.logger.Printf("Server: websocket client %s disconnected", client)
			return
		case msg := <-ch:
			if err := s.write(conn, msg); err != nil {
				s.logger.Printf("Server: websocket %s write error: %v", client, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
