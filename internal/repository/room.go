package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/pkg"
)

const maxCreateAttempts = 5

var ErrRoomIDExhausted = errors.New("could not allocate a unique room id")

// RoomRepository keeps rooms for the life of the process. Rooms are never deleted.
type RoomRepository interface {
	Create(ctx context.Context) (*entity.Room, error)
	GetByID(ctx context.Context, id string) (*entity.Room, error)

	// Mutate runs fn on a copy of the room while no other Mutate of the same room can run,
	// and stores the copy only if fn returns nil. It returns the stored room.
	Mutate(ctx context.Context, id string, fn func(room *entity.Room) error) (*entity.Room, error)
}

type roomEntry struct {
	mu   sync.Mutex
	room entity.Room
}

type memoryRooms struct {
	mu      sync.RWMutex
	rooms   map[string]*roomEntry
	genRoom func() string
}

func NewMemoryRoomRepository() RoomRepository {
	return &memoryRooms{
		rooms:   make(map[string]*roomEntry),
		genRoom: pkg.GenerateRoomID,
	}
}

func (that *memoryRooms) Create(_ context.Context) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for range maxCreateAttempts {
		id := that.genRoom()
		if _, ok := that.rooms[id]; ok {
			continue
		}

		room := entity.NewRoom(id)
		that.rooms[id] = &roomEntry{room: *room}

		return room, nil
	}

	return nil, ErrRoomIDExhausted
}

func (that *memoryRooms) GetByID(_ context.Context, id string) (*entity.Room, error) {
	entry, err := that.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	room := entry.room
	entry.mu.Unlock()

	return &room, nil
}

func (that *memoryRooms) Mutate(_ context.Context, id string, fn func(room *entity.Room) error) (*entity.Room, error) {
	entry, err := that.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	room := entry.room
	if err = fn(&room); err != nil {
		return nil, err
	}

	entry.room = room

	return &room, nil
}

func (that *memoryRooms) entry(id string) (*roomEntry, error) {
	that.mu.RLock()
	entry, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return entry, nil
}
