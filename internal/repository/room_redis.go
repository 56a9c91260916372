package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/pkg"
)

const maxMutateAttempts = 20

var ErrTooMuchContention = errors.New("room changed concurrently too many times")

type redisRooms struct {
	client  *redis.Client
	genRoom func() string
}

// NewRedisRoomRepository stores each room as JSON under "room:<id>" without expiry.
// Mutations are optimistic WATCH/MULTI transactions on that single key.
func NewRedisRoomRepository(client *redis.Client) RoomRepository {
	return &redisRooms{
		client:  client,
		genRoom: pkg.GenerateRoomID,
	}
}

func roomKey(id string) string {
	return "room:" + id
}

func (that *redisRooms) Create(ctx context.Context) (*entity.Room, error) {
	for range maxCreateAttempts {
		room := entity.NewRoom(that.genRoom())

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return nil, fmt.Errorf("could not marshal room: %w", err)
		}

		created, err := that.client.SetNX(ctx, roomKey(room.ID), roomJSON, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to set room: %w", err)
		}

		if created {
			return room, nil
		}
	}

	return nil, ErrRoomIDExhausted
}

func (that *redisRooms) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	return getRoom(ctx, that.client, id)
}

func (that *redisRooms) Mutate(ctx context.Context, id string, fn func(room *entity.Room) error) (*entity.Room, error) {
	key := roomKey(id)

	var updated *entity.Room

	txf := func(tx *redis.Tx) error {
		room, err := getRoom(ctx, tx, id)
		if err != nil {
			return err
		}

		if err = fn(room); err != nil {
			return err
		}

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, roomJSON, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = room

		return nil
	}

	for range maxMutateAttempts {
		err := that.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if err != nil {
			return nil, err
		}

		return updated, nil
	}

	return nil, fmt.Errorf("%w: room %s", ErrTooMuchContention, id)
}

type roomGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRoom(ctx context.Context, client roomGetter, id string) (*entity.Room, error) {
	response, err := client.Get(ctx, roomKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}
