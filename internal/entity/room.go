package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Symbol is a board piece. The values are the glyphs the web client renders.
type Symbol string

const (
	SymbolO Symbol = "○"
	SymbolX Symbol = "×"

	EmptyCell Symbol = ""
)

const (
	BoardSize  = 9
	MaxPlayers = 2
)

var nullJSON = []byte("null")

// MarshalJSON encodes an empty symbol as null.
func (that Symbol) MarshalJSON() ([]byte, error) {
	if that == EmptyCell {
		return nullJSON, nil
	}

	return json.Marshal(string(that))
}

func (that *Symbol) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, nullJSON) {
		*that = EmptyCell
		return nil
	}

	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("failed to unmarshal symbol: %w", err)
	}

	*that = Symbol(value)

	return nil
}

// Opponent returns the other player's symbol.
func (that Symbol) Opponent() Symbol {
	if that == SymbolO {
		return SymbolX
	}
	return SymbolO
}

// SymbolForCount picks the symbol for a newcomer by the number of connections already in the room.
func SymbolForCount(count int) Symbol {
	if count == 0 {
		return SymbolO
	}
	return SymbolX
}

type Room struct {
	ID      string            `json:"id"`
	Squares [BoardSize]Symbol `json:"squares"`
	XIsNext bool              `json:"xIsNext"`
	Winner  Symbol            `json:"winner"`
	Players int               `json:"players"`
}

// NewRoom returns an empty board with O to move.
func NewRoom(id string) *Room {
	return &Room{
		ID: id,
	}
}

// CurrentSymbol returns the symbol that the next accepted move places.
func (that *Room) CurrentSymbol() Symbol {
	if that.XIsNext {
		return SymbolX
	}
	return SymbolO
}

func (that *Room) IsTurnOf(symbol Symbol) bool {
	return that.CurrentSymbol() == symbol
}

func (that *Room) IsFinished() bool {
	return that.Winner != EmptyCell
}

// View is the personalized room state pushed to one connection.
type View struct {
	Squares      [BoardSize]Symbol `json:"squares"`
	XIsNext      bool              `json:"xIsNext"`
	Winner       Symbol            `json:"winner"`
	Players      int               `json:"players"`
	PlayerSymbol Symbol            `json:"playerSymbol"`
	IsYourTurn   bool              `json:"isYourTurn"`
	IsWinner     *bool             `json:"isWinner,omitempty"`
	IsLoser      *bool             `json:"isLoser,omitempty"`
}

// NewSnapshot builds the first view a connection receives; it carries no outcome flags.
func NewSnapshot(room *Room, symbol Symbol) *View {
	return &View{
		Squares:      room.Squares,
		XIsNext:      room.XIsNext,
		Winner:       room.Winner,
		Players:      room.Players,
		PlayerSymbol: symbol,
		IsYourTurn:   room.IsTurnOf(symbol),
	}
}

// NewView builds the view sent on every broadcast.
func NewView(room *Room, symbol Symbol) *View {
	view := NewSnapshot(room, symbol)

	isWinner := room.Winner == symbol
	isLoser := room.IsFinished() && room.Winner != symbol

	view.IsWinner = &isWinner
	view.IsLoser = &isLoser

	return view
}
