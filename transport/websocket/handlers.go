package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/tictactoe"
)

const MessageTypeMove = "move"

// Message is a client to server message. Index is set for moves.
type Message struct {
	Type  string `json:"type"`
	Index *int   `json:"index"`
}

// handleMove plays the current turn's symbol at message.Index. Moves that break the rules
// are logged and dropped; the peer gets no reply.
func (that *Server) handleMove(ctx context.Context, sess *session, message *Message) error {
	log := that.logger.With("method", "handleMove", "roomID", sess.roomID, "symbol", sess.symbol)

	if message.Index == nil {
		log.Warn("move without index ignored")
		return nil
	}

	_, err := that.rooms.MakeMove(ctx, sess.roomID, *message.Index)
	switch {
	case err == nil:
		log.Info("move made", "index", *message.Index)
		return nil
	case isInvalidMove(err):
		log.Warn("invalid move ignored", "index", *message.Index, "error", err)
		return nil
	default:
		return fmt.Errorf("failed to make move: %w", err)
	}
}

func isInvalidMove(err error) bool {
	return errors.Is(err, tictactoe.ErrInvalidCell) ||
		errors.Is(err, apperror.ErrCellOccupied) ||
		errors.Is(err, apperror.ErrGameFinished)
}
