package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/service"
)

// session is one player's connection to a room. It implements service.Connection:
// views are queued on send and written by writePump.
type session struct {
	logger *slog.Logger
	conn   *websocket.Conn
	conf   config.WebSocket

	roomID string
	symbol entity.Symbol

	mu     sync.Mutex
	closed bool
	send   chan *entity.View
}

func newSession(logger *slog.Logger, conn *websocket.Conn, roomID string, conf config.WebSocket) *session {
	return &session{
		logger: logger.With("component", "session", "roomID", roomID),
		conn:   conn,
		conf:   conf,
		roomID: roomID,
		send:   make(chan *entity.View, conf.SendBuffer),
	}
}

// Send queues view without blocking. A full queue closes the session so a slow peer
// is dropped rather than left without updates.
func (that *session) Send(view *entity.View) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return service.ErrConnectionClosed
	}

	select {
	case that.send <- view:
		return nil
	default:
		that.closed = true
		close(that.send)

		return service.ErrSendBufferFull
	}
}

// close stops writePump, which then closes the connection. Safe to call more than once.
func (that *session) close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	that.closed = true
	close(that.send)
}

// readPump reads messages until the peer goes away or stops answering pings.
// Malformed messages are logged and skipped.
func (that *session) readPump(handle func(message *Message)) {
	log := that.logger.With("method", "readPump")

	that.conn.SetReadLimit(that.conf.MaxMessageSize)
	if err := that.conn.SetReadDeadline(time.Now().Add(that.conf.PongWait)); err != nil {
		log.Error("failed to set read deadline", "error", err)
		return
	}

	that.conn.SetPongHandler(func(string) error {
		return that.conn.SetReadDeadline(time.Now().Add(that.conf.PongWait))
	})

	for {
		_, data, err := that.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Warn("failed to unmarshal message", "error", err)
			continue
		}

		handle(&message)
	}
}

// writePump writes queued views and pings the peer every ping period.
func (that *session) writePump() {
	log := that.logger.With("method", "writePump")

	ticker := time.NewTicker(that.conf.PingPeriod())
	defer func() {
		ticker.Stop()
		that.conn.Close()
	}()

	for {
		select {
		case view, ok := <-that.send:
			if err := that.conn.SetWriteDeadline(time.Now().Add(that.conf.WriteWait)); err != nil {
				return
			}

			if !ok {
				closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				if err := that.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
					log.Debug("failed to write close message", "error", err)
				}
				return
			}

			if err := that.conn.WriteJSON(view); err != nil {
				log.Warn("failed to write view", "error", err)
				return
			}

		case <-ticker.C:
			if err := that.conn.SetWriteDeadline(time.Now().Add(that.conf.WriteWait)); err != nil {
				return
			}

			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("failed to write ping", "error", err)
				return
			}
		}
	}
}
