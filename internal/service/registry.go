package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

var (
	ErrSendBufferFull   = errors.New("send buffer is full")
	ErrConnectionClosed = errors.New("connection is closed")
)

// Connection is one live duplex channel to a player. Send must not block.
type Connection interface {
	Send(view *entity.View) error
}

// Member is a connection admitted to a room together with its symbol.
type Member struct {
	Conn   Connection
	Symbol entity.Symbol
}

type ConnectionRegistry interface {
	Admit(ctx context.Context, roomID string) (entity.Symbol, error)
	Register(ctx context.Context, roomID string, conn Connection, symbol entity.Symbol) error
	Remove(ctx context.Context, roomID string, conn Connection) error

	Count(roomID string) int

	// Locked runs fn with the room's members while admissions, removals and other
	// Locked calls for the same room wait.
	Locked(roomID string, fn func(members []Member) error) error
}

type roomRepo interface {
	GetByID(ctx context.Context, id string) (*entity.Room, error)
	Mutate(ctx context.Context, id string, fn func(room *entity.Room) error) (*entity.Room, error)
}

type roomConnections struct {
	mu      sync.Mutex
	members []Member
}

type connectionRegistry struct {
	logger *slog.Logger
	rooms  roomRepo

	mu          sync.Mutex
	connections map[string]*roomConnections
}

func NewConnectionRegistry(logger *slog.Logger, rooms roomRepo) ConnectionRegistry {
	return &connectionRegistry{
		logger:      logger.With("component", "registry"),
		rooms:       rooms,
		connections: make(map[string]*roomConnections),
	}
}

// Admit checks the room exists and has a free seat, and picks the symbol by the number of live
// connections. The assignment is count based: after the first player leaves, a newcomer gets the
// second symbol even if it is still in use.
func (that *connectionRegistry) Admit(ctx context.Context, roomID string) (entity.Symbol, error) {
	if _, err := that.rooms.GetByID(ctx, roomID); err != nil {
		return "", fmt.Errorf("failed to get room %s: %w", roomID, err)
	}

	room := that.room(roomID)

	room.mu.Lock()
	defer room.mu.Unlock()

	if len(room.members) >= entity.MaxPlayers {
		return "", apperror.ErrRoomFull
	}

	return entity.SymbolForCount(len(room.members)), nil
}

func (that *connectionRegistry) Register(ctx context.Context, roomID string, conn Connection, symbol entity.Symbol) error {
	log := that.logger.With("method", "Register", "roomID", roomID, "symbol", symbol)

	room := that.room(roomID)

	room.mu.Lock()
	defer room.mu.Unlock()

	if len(room.members) >= entity.MaxPlayers {
		return apperror.ErrRoomFull
	}

	for _, member := range room.members {
		if member.Conn == conn {
			return nil
		}

		if member.Symbol == symbol {
			log.Warn("symbol is already held by a live connection")
		}
	}

	if _, err := that.rooms.Mutate(ctx, roomID, func(room *entity.Room) error {
		room.Players++
		return nil
	}); err != nil {
		return fmt.Errorf("failed to count player in: %w", err)
	}

	room.members = append(room.members, Member{Conn: conn, Symbol: symbol})

	log.Info("connection registered", "connections", len(room.members))

	return nil
}

// Remove drops conn from the room. Removing an unknown connection is a no-op.
func (that *connectionRegistry) Remove(ctx context.Context, roomID string, conn Connection) error {
	log := that.logger.With("method", "Remove", "roomID", roomID)

	that.mu.Lock()
	room, ok := that.connections[roomID]
	that.mu.Unlock()

	if !ok {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	idx := -1
	for i, member := range room.members {
		if member.Conn == conn {
			idx = i
			break
		}
	}

	if idx < 0 {
		return nil
	}

	symbol := room.members[idx].Symbol
	room.members = append(room.members[:idx], room.members[idx+1:]...)

	if _, err := that.rooms.Mutate(ctx, roomID, func(room *entity.Room) error {
		if room.Players > 0 {
			room.Players--
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to count player out: %w", err)
	}

	log.Info("connection removed", "symbol", symbol, "connections", len(room.members))

	return nil
}

func (that *connectionRegistry) Count(roomID string) int {
	that.mu.Lock()
	room, ok := that.connections[roomID]
	that.mu.Unlock()

	if !ok {
		return 0
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	return len(room.members)
}

func (that *connectionRegistry) Locked(roomID string, fn func(members []Member) error) error {
	room := that.room(roomID)

	room.mu.Lock()
	defer room.mu.Unlock()

	members := make([]Member, len(room.members))
	copy(members, room.members)

	return fn(members)
}

func (that *connectionRegistry) room(roomID string) *roomConnections {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.connections[roomID]
	if !ok {
		room = &roomConnections{}
		that.connections[roomID] = room
	}

	return room
}
