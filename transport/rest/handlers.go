package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
)

type roomUseCase interface {
	CreateRoom(ctx context.Context) (*entity.Room, error)
	JoinRoom(ctx context.Context, roomID string) (*usecase.JoinPreview, error)
}

type Handlers interface {
	Ping(w http.ResponseWriter, _ *http.Request)
	Healthz(w http.ResponseWriter, _ *http.Request)

	CreateRoom(w http.ResponseWriter, r *http.Request)
	JoinRoom(w http.ResponseWriter, r *http.Request)
}

type createRoomResponse struct {
	RoomID string `json:"room_id"`
}

type joinRoomResponse struct {
	*entity.Room
	PlayerSymbol entity.Symbol `json:"playerSymbol"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type handlers struct {
	logger *slog.Logger
	rooms  roomUseCase
}

func NewHandlers(logger *slog.Logger, rooms roomUseCase) Handlers {
	return &handlers{
		logger: logger.With("component", "rest"),
		rooms:  rooms,
	}
}

func (that *handlers) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (that *handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "CreateRoom")

	room, err := that.rooms.CreateRoom(r.Context())
	if err != nil {
		log.Error("failed to create room", "error", err)
		that.writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal Server Error"})
		return
	}

	that.writeJSON(w, http.StatusOK, createRoomResponse{RoomID: room.ID})
}

// JoinRoom previews what a connection to the room would get. It reserves nothing.
func (that *handlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	log := that.logger.With("method", "JoinRoom", "roomID", roomID)

	preview, err := that.rooms.JoinRoom(r.Context(), roomID)
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		log.Warn("room not found")
		that.writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Room not found"})
		return
	case errors.Is(err, apperror.ErrRoomFull):
		log.Warn("room is full")
		that.writeJSON(w, http.StatusForbidden, errorResponse{Detail: "Room is full"})
		return
	case err != nil:
		log.Error("failed to join room", "error", err)
		that.writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal Server Error"})
		return
	}

	log.Info("player joining", "symbol", preview.PlayerSymbol, "players", preview.Room.Players)

	that.writeJSON(w, http.StatusOK, joinRoomResponse{Room: preview.Room, PlayerSymbol: preview.PlayerSymbol})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
