package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/service"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-rooms/transport/rest"
	"github.com/rocketscienceinc/tictactoe-rooms/transport/websocket"
)

const shutdownTimeout = 5 * time.Second

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	rooms, closeRooms, err := newRoomRepository(ctx, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err = closeRooms(); err != nil {
			log.Error("could not close room storage", "error", err)
		}
	}()

	registry := service.NewConnectionRegistry(logger, rooms)
	broadcaster := service.NewBroadcaster(logger, rooms, registry)
	roomManager := usecase.NewRoomManager(logger, rooms, registry, broadcaster)

	wsServer := websocket.New(logger, roomManager, conf.WebSocket)
	httpServer := rest.New(logger, conf.HTTPPort, roomManager, wsServer.ServeRoom)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort, "storage", conf.Storage)
		if httpErr := httpServer.Start(); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	wsServer.Close()

	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	return nil
}

// newRoomRepository opens the configured room store and returns a func that releases it.
func newRoomRepository(ctx context.Context, conf *config.Config) (repository.RoomRepository, func() error, error) {
	if conf.Storage != config.StorageRedis {
		return repository.NewMemoryRoomRepository(), func() error { return nil }, nil
	}

	redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	return repository.NewRedisRoomRepository(redisStorage.Connection), redisStorage.Close, nil
}
