package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/service"
)

// Close codes sent when a connection is refused.
const (
	CloseRoomFull     = 4003
	CloseRoomNotFound = 4004
)

const closeGracePeriod = time.Second

type roomUseCase interface {
	Connect(ctx context.Context, roomID string, conn service.Connection) (entity.Symbol, error)
	MakeMove(ctx context.Context, roomID string, cell int) (*entity.Room, error)
	Leave(ctx context.Context, roomID string, conn service.Connection)
}

type Server struct {
	logger   *slog.Logger
	rooms    roomUseCase
	conf     config.WebSocket
	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, session *session, message *Message) error

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func New(logger *slog.Logger, rooms roomUseCase, conf config.WebSocket) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		rooms:  rooms,
		conf:   conf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the browser client is served from another origin
			CheckOrigin: func(*http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, *session, *Message) error),
		sessions: make(map[*session]struct{}),
	}

	server.handlers[MessageTypeMove] = server.handleMove

	return server
}

// ServeRoom upgrades the request and runs a session in the room named by the room_id URL param.
// It returns when the session ends.
func (that *Server) ServeRoom(writer http.ResponseWriter, req *http.Request) {
	roomID := chi.URLParam(req, "room_id")
	log := that.logger.With("method", "ServeRoom", "roomID", roomID)

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	ctx := req.Context()
	sess := newSession(that.logger, conn, roomID, that.conf)

	that.track(sess)
	defer that.untrack(sess)

	symbol, err := that.rooms.Connect(ctx, roomID, sess)
	if err != nil {
		that.refuse(log, conn, err)
		return
	}

	sess.symbol = symbol

	log.Info("session started", "symbol", symbol)

	go sess.writePump()
	sess.readPump(func(message *Message) {
		that.dispatch(ctx, sess, message)
	})

	that.rooms.Leave(ctx, roomID, sess)
	sess.close()

	log.Info("session ended", "symbol", symbol)
}

// Close ends every live session. Hijacked connections are not closed by http.Server.Shutdown.
func (that *Server) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for sess := range that.sessions {
		sess.close()
	}
}

func (that *Server) refuse(log *slog.Logger, conn *websocket.Conn, err error) {
	defer conn.Close()

	code, text := websocket.CloseInternalServerErr, "internal error"

	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		code, text = CloseRoomNotFound, "Room not found"
		log.Warn("connection refused, room not found")
	case errors.Is(err, apperror.ErrRoomFull):
		code, text = CloseRoomFull, "Room is full"
		log.Warn("connection refused, room is full")
	default:
		log.Error("failed to connect to room", "error", err)
	}

	deadline := time.Now().Add(closeGracePeriod)
	if writeErr := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline); writeErr != nil {
		log.Debug("failed to write close message", "error", writeErr)
	}
}

func (that *Server) dispatch(ctx context.Context, sess *session, message *Message) {
	log := that.logger.With("method", "dispatch", "roomID", sess.roomID, "symbol", sess.symbol, "type", message.Type)

	handler, ok := that.handlers[message.Type]
	if !ok {
		log.Debug("unknown message type ignored")
		return
	}

	if err := handler(ctx, sess, message); err != nil {
		log.Error("error processing message", "error", err)
	}
}

func (that *Server) track(sess *session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[sess] = struct{}{}
}

func (that *Server) untrack(sess *session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, sess)
}
