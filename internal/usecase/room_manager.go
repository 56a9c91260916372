package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/service"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/tictactoe"
)

type roomRepo interface {
	Create(ctx context.Context) (*entity.Room, error)
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Mutate(ctx context.Context, id string, fn func(room *entity.Room) error) (*entity.Room, error)
}

// JoinPreview is what a player would get by connecting now. It reserves nothing.
type JoinPreview struct {
	Room         *entity.Room
	PlayerSymbol entity.Symbol
}

type RoomManager struct {
	logger      *slog.Logger
	rooms       roomRepo
	registry    service.ConnectionRegistry
	broadcaster service.Broadcaster
}

func NewRoomManager(logger *slog.Logger, rooms roomRepo, registry service.ConnectionRegistry, broadcaster service.Broadcaster) *RoomManager {
	return &RoomManager{
		logger:      logger.With("component", "room-manager"),
		rooms:       rooms,
		registry:    registry,
		broadcaster: broadcaster,
	}
}

func (that *RoomManager) CreateRoom(ctx context.Context) (*entity.Room, error) {
	room, err := that.rooms.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	that.logger.Info("room created", "roomID", room.ID)

	return room, nil
}

func (that *RoomManager) JoinRoom(ctx context.Context, roomID string) (*JoinPreview, error) {
	room, err := that.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	count := that.registry.Count(roomID)
	if count >= entity.MaxPlayers {
		return nil, apperror.ErrRoomFull
	}

	symbol := entity.SymbolForCount(count)

	that.logger.Info("join preview", "roomID", roomID, "symbol", symbol, "connections", count)

	return &JoinPreview{Room: room, PlayerSymbol: symbol}, nil
}

// Connect admits conn into the room, registers it and sends its first view.
func (that *RoomManager) Connect(ctx context.Context, roomID string, conn service.Connection) (entity.Symbol, error) {
	symbol, err := that.registry.Admit(ctx, roomID)
	if err != nil {
		return "", fmt.Errorf("failed to admit connection: %w", err)
	}

	if err = that.registry.Register(ctx, roomID, conn, symbol); err != nil {
		return "", fmt.Errorf("failed to register connection: %w", err)
	}

	if err = that.broadcaster.Snapshot(ctx, roomID, conn, symbol); err != nil {
		that.Leave(ctx, roomID, conn)
		return "", fmt.Errorf("failed to send initial state: %w", err)
	}

	return symbol, nil
}

// MakeMove applies a move atomically and broadcasts the new state. A rejected move
// returns the rule error and broadcasts nothing.
func (that *RoomManager) MakeMove(ctx context.Context, roomID string, cell int) (*entity.Room, error) {
	room, err := that.rooms.Mutate(ctx, roomID, func(room *entity.Room) error {
		return tictactoe.ApplyMove(room, cell)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to make move: %w", err)
	}

	if err = that.broadcaster.Broadcast(ctx, roomID); err != nil {
		return room, fmt.Errorf("failed to broadcast: %w", err)
	}

	return room, nil
}

// Leave removes conn from the room; the room itself stays.
func (that *RoomManager) Leave(ctx context.Context, roomID string, conn service.Connection) {
	if err := that.registry.Remove(ctx, roomID, conn); err != nil {
		that.logger.Error("failed to remove connection", "roomID", roomID, "error", err)
	}
}
