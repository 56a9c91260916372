package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string) error
	Snapshot(ctx context.Context, roomID string, conn Connection, symbol entity.Symbol) error
}

type broadcaster struct {
	logger   *slog.Logger
	rooms    roomRepo
	registry ConnectionRegistry
}

func NewBroadcaster(logger *slog.Logger, rooms roomRepo, registry ConnectionRegistry) Broadcaster {
	return &broadcaster{
		logger:   logger.With("component", "broadcaster"),
		rooms:    rooms,
		registry: registry,
	}
}

// Broadcast pushes the current room state to every member, each with its own view.
// Members whose send fails are removed once every member has been tried.
func (that *broadcaster) Broadcast(ctx context.Context, roomID string) error {
	log := that.logger.With("method", "Broadcast", "roomID", roomID)

	var dead []Connection

	err := that.registry.Locked(roomID, func(members []Member) error {
		room, err := that.rooms.GetByID(ctx, roomID)
		if err != nil {
			return fmt.Errorf("failed to get room: %w", err)
		}

		for _, member := range members {
			if err = member.Conn.Send(entity.NewView(room, member.Symbol)); err != nil {
				log.Warn("failed to send room state", "symbol", member.Symbol, "error", err)
				dead = append(dead, member.Conn)
				continue
			}

			log.Debug("room state sent", "symbol", member.Symbol)
		}

		return nil
	})

	for _, conn := range dead {
		if removeErr := that.registry.Remove(ctx, roomID, conn); removeErr != nil {
			log.Error("failed to remove dead connection", "error", removeErr)
		}
	}

	return err
}

// Snapshot sends the first view to a freshly registered connection. It is ordered with
// broadcasts of the same room.
func (that *broadcaster) Snapshot(ctx context.Context, roomID string, conn Connection, symbol entity.Symbol) error {
	return that.registry.Locked(roomID, func(_ []Member) error {
		room, err := that.rooms.GetByID(ctx, roomID)
		if err != nil {
			return fmt.Errorf("failed to get room: %w", err)
		}

		if err = conn.Send(entity.NewSnapshot(room, symbol)); err != nil {
			return fmt.Errorf("failed to send snapshot: %w", err)
		}

		return nil
	})
}
