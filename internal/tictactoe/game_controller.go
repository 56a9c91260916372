package tictactoe

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

var (
	ErrInvalidCell = errors.New("invalid cell index")

	// WinCombos are scanned in order: rows, columns, diagonals.
	WinCombos = [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// ApplyMove places the current turn's symbol at cell, flips the turn and records a winner.
// A rejected move leaves the room untouched.
func ApplyMove(room *entity.Room, cell int) error {
	if room.IsFinished() {
		return apperror.ErrGameFinished
	}

	if err := validateMove(room, cell); err != nil {
		return fmt.Errorf("invalid move: %w", err)
	}

	room.Squares[cell] = room.CurrentSymbol()
	room.XIsNext = !room.XIsNext
	room.Winner = DetermineWinner(room.Squares)

	return nil
}

// validateMove - checks if the move is valid.
func validateMove(room *entity.Room, cell int) error {
	if cell < 0 || cell >= len(room.Squares) {
		return fmt.Errorf("%w: cell %d", ErrInvalidCell, cell)
	}

	if room.Squares[cell] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	return nil
}

// DetermineWinner returns the symbol of the first complete line, or an empty symbol.
// A full board without a line is not reported.
func DetermineWinner(squares [entity.BoardSize]entity.Symbol) entity.Symbol {
	for _, combo := range WinCombos {
		a, b, c := squares[combo[0]], squares[combo[1]], squares[combo[2]]
		if a != entity.EmptyCell && a == b && b == c {
			return a
		}
	}

	return entity.EmptyCell
}
