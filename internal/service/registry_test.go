package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(t *testing.T) (context.Context, repository.RoomRepository, ConnectionRegistry, string) {
	t.Helper()

	ctx := context.Background()
	rooms := repository.NewMemoryRoomRepository()

	room, err := rooms.Create(ctx)
	require.NoError(t, err)

	return ctx, rooms, NewConnectionRegistry(newTestLogger(), rooms), room.ID
}

func admitAndRegister(ctx context.Context, registry ConnectionRegistry, roomID string, conn Connection) (entity.Symbol, error) {
	symbol, err := registry.Admit(ctx, roomID)
	if err != nil {
		return "", err
	}

	return symbol, registry.Register(ctx, roomID, conn, symbol)
}

func TestConnectionRegistry_Admit(t *testing.T) {
	t.Run("Unknown room is rejected", func(t *testing.T) {
		ctx, _, registry, _ := newTestRegistry(t)

		// When: admitting into a room that was never created
		_, err := registry.Admit(ctx, "missing")

		// Then: ErrRoomNotFound is returned
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Symbols follow join order", func(t *testing.T) {
		ctx, rooms, registry, roomID := newTestRegistry(t)

		// When: two connections join
		first, err := admitAndRegister(ctx, registry, roomID, newMockConnection())
		require.NoError(t, err)
		second, err := admitAndRegister(ctx, registry, roomID, newMockConnection())
		require.NoError(t, err)

		// Then: the first gets O, the second X, and the room counts two players
		assert.Equal(t, entity.SymbolO, first)
		assert.Equal(t, entity.SymbolX, second)

		room, err := rooms.GetByID(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, 2, room.Players)
	})

	t.Run("Third connection is rejected", func(t *testing.T) {
		ctx, rooms, registry, roomID := newTestRegistry(t)

		// Given: a full room
		for range entity.MaxPlayers {
			_, err := admitAndRegister(ctx, registry, roomID, newMockConnection())
			require.NoError(t, err)
		}

		// When: a third connection tries to join
		_, admitErr := registry.Admit(ctx, roomID)
		registerErr := registry.Register(ctx, roomID, newMockConnection(), entity.SymbolX)

		// Then: both steps refuse and the room keeps exactly two connections
		require.ErrorIs(t, admitErr, apperror.ErrRoomFull)
		require.ErrorIs(t, registerErr, apperror.ErrRoomFull)
		assert.Equal(t, 2, registry.Count(roomID))

		room, err := rooms.GetByID(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, 2, room.Players)
	})

	t.Run("Concurrent joins never exceed two", func(t *testing.T) {
		ctx, rooms, registry, roomID := newTestRegistry(t)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			admitted []entity.Symbol
		)

		// Given: many connections joining at once
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				symbol, err := admitAndRegister(ctx, registry, roomID, newMockConnection())
				if err != nil {
					assert.ErrorIs(t, err, apperror.ErrRoomFull)
					return
				}

				mu.Lock()
				admitted = append(admitted, symbol)
				mu.Unlock()
			}()
		}

		wg.Wait()

		// Then: exactly two are admitted
		assert.Len(t, admitted, 2)
		assert.Equal(t, 2, registry.Count(roomID))

		room, err := rooms.GetByID(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, 2, room.Players)
	})
}

func TestConnectionRegistry_Register(t *testing.T) {
	t.Run("Registering the same connection twice is a no-op", func(t *testing.T) {
		ctx, rooms, registry, roomID := newTestRegistry(t)
		conn := newMockConnection()

		require.NoError(t, registry.Register(ctx, roomID, conn, entity.SymbolO))
		require.NoError(t, registry.Register(ctx, roomID, conn, entity.SymbolO))

		assert.Equal(t, 1, registry.Count(roomID))

		room, err := rooms.GetByID(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, 1, room.Players)
	})

	t.Run("Unknown room fails", func(t *testing.T) {
		ctx, _, registry, _ := newTestRegistry(t)

		err := registry.Register(ctx, "missing", newMockConnection(), entity.SymbolO)

		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.Equal(t, 0, registry.Count("missing"))
	})
}

func TestConnectionRegistry_Remove(t *testing.T) {
	t.Run("Remove decrements the player count", func(t *testing.T) {
		ctx, rooms, registry, roomID := newTestRegistry(t)
		first, second := newMockConnection(), newMockConnection()

		_, err := admitAndRegister(ctx, registry, roomID, first)
		require.NoError(t, err)
		_, err = admitAndRegister(ctx, registry, roomID, second)
		require.NoError(t, err)

		// When: the first connection leaves
		require.NoError(t, registry.Remove(ctx, roomID, first))

		// Then: one connection and one player remain
		assert.Equal(t, 1, registry.Count(roomID))

		room, err := rooms.GetByID(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, 1, room.Players)
	})

	t.Run("Remove is idempotent", func(t *testing.T) {
		ctx, rooms, registry, roomID := newTestRegistry(t)
		conn := newMockConnection()

		_, err := admitAndRegister(ctx, registry, roomID, conn)
		require.NoError(t, err)

		// When: the same connection is removed twice, plus one that never joined
		require.NoError(t, registry.Remove(ctx, roomID, conn))
		require.NoError(t, registry.Remove(ctx, roomID, conn))
		require.NoError(t, registry.Remove(ctx, roomID, newMockConnection()))
		require.NoError(t, registry.Remove(ctx, "missing", conn))

		// Then: the count only dropped once
		room, err := rooms.GetByID(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, 0, room.Players)
		assert.Equal(t, 0, registry.Count(roomID))
	})

	t.Run("Rejoin after the first player left gets the second symbol", func(t *testing.T) {
		ctx, _, registry, roomID := newTestRegistry(t)
		first, second := newMockConnection(), newMockConnection()

		_, err := admitAndRegister(ctx, registry, roomID, first)
		require.NoError(t, err)
		_, err = admitAndRegister(ctx, registry, roomID, second)
		require.NoError(t, err)

		// When: O leaves and someone joins again
		require.NoError(t, registry.Remove(ctx, roomID, first))
		symbol, err := admitAndRegister(ctx, registry, roomID, newMockConnection())

		// Then: the symbol follows the live count, not the free seat
		require.NoError(t, err)
		assert.Equal(t, entity.SymbolX, symbol)
	})

	t.Run("Empty room hands out the first symbol again", func(t *testing.T) {
		ctx, _, registry, roomID := newTestRegistry(t)
		conn := newMockConnection()

		_, err := admitAndRegister(ctx, registry, roomID, conn)
		require.NoError(t, err)
		require.NoError(t, registry.Remove(ctx, roomID, conn))

		symbol, err := registry.Admit(ctx, roomID)

		require.NoError(t, err)
		assert.Equal(t, entity.SymbolO, symbol)
	})
}

func TestConnectionRegistry_Locked(t *testing.T) {
	ctx, _, registry, roomID := newTestRegistry(t)
	conn := newMockConnection()

	_, err := admitAndRegister(ctx, registry, roomID, conn)
	require.NoError(t, err)

	errStop := errors.New("stop")

	// When: Locked is called
	err = registry.Locked(roomID, func(members []Member) error {
		// Then: fn sees the live members
		require.Len(t, members, 1)
		assert.Equal(t, entity.SymbolO, members[0].Symbol)
		assert.Same(t, conn, members[0].Conn)

		return errStop
	})

	// And: its error is passed through
	require.ErrorIs(t, err, errStop)
}
