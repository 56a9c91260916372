package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom(t *testing.T) {
	// Given: a new room
	room := NewRoom("abcd1234")

	// Then: the board is empty, O moves first and nobody has won
	expectedRoom := &Room{
		ID:      "abcd1234",
		Squares: [BoardSize]Symbol{},
		XIsNext: false,
		Winner:  EmptyCell,
		Players: 0,
	}

	require.Equal(t, expectedRoom, room)
	assert.Equal(t, SymbolO, room.CurrentSymbol())
	assert.False(t, room.IsFinished())
}

func TestSymbolForCount(t *testing.T) {
	t.Run("First connection gets O", func(t *testing.T) {
		assert.Equal(t, SymbolO, SymbolForCount(0))
	})

	t.Run("Any later connection gets X", func(t *testing.T) {
		assert.Equal(t, SymbolX, SymbolForCount(1))
		assert.Equal(t, SymbolX, SymbolForCount(2))
	})
}

func TestSymbol_Opponent(t *testing.T) {
	assert.Equal(t, SymbolX, SymbolO.Opponent())
	assert.Equal(t, SymbolO, SymbolX.Opponent())
}

func TestSymbol_JSON(t *testing.T) {
	t.Run("Empty cells are encoded as null", func(t *testing.T) {
		// Given: a room with one occupied cell
		room := NewRoom("r1")
		room.Squares[4] = SymbolX

		// When: encoding the room
		data, err := json.Marshal(room)
		require.NoError(t, err)

		// Then: free cells and the missing winner are null
		assert.JSONEq(t,
			`{"id":"r1","squares":[null,null,null,null,"×",null,null,null,null],"xIsNext":false,"winner":null,"players":0}`,
			string(data))
	})

	t.Run("Null decodes to an empty cell", func(t *testing.T) {
		var room Room

		err := json.Unmarshal([]byte(`{"id":"r1","squares":["○",null,null,null,null,null,null,null,null],"winner":"○"}`), &room)

		require.NoError(t, err)
		assert.Equal(t, SymbolO, room.Squares[0])
		assert.Equal(t, EmptyCell, room.Squares[1])
		assert.Equal(t, SymbolO, room.Winner)
	})
}

func TestNewSnapshot(t *testing.T) {
	// Given: a fresh room
	room := NewRoom("r1")

	// When: building snapshots for both symbols
	first := NewSnapshot(room, SymbolO)
	second := NewSnapshot(room, SymbolX)

	// Then: O is told to move, X is told to wait, and no outcome flags are present
	assert.True(t, first.IsYourTurn)
	assert.False(t, second.IsYourTurn)
	assert.Nil(t, first.IsWinner)
	assert.Nil(t, first.IsLoser)

	data, err := json.Marshal(first)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "isWinner")
	assert.NotContains(t, string(data), "isLoser")
}

func TestNewView(t *testing.T) {
	t.Run("Game in progress", func(t *testing.T) {
		// Given: a room where X is to move
		room := NewRoom("r1")
		room.Squares[0] = SymbolO
		room.XIsNext = true

		// When: building the X view
		view := NewView(room, SymbolX)

		// Then: it is X's turn and nobody has won or lost
		assert.True(t, view.IsYourTurn)
		require.NotNil(t, view.IsWinner)
		require.NotNil(t, view.IsLoser)
		assert.False(t, *view.IsWinner)
		assert.False(t, *view.IsLoser)
	})

	t.Run("Finished game", func(t *testing.T) {
		// Given: a room won by O
		room := NewRoom("r1")
		room.Winner = SymbolO

		// When: building both views
		winner := NewView(room, SymbolO)
		loser := NewView(room, SymbolX)

		// Then: the flags reflect the outcome per player
		assert.True(t, *winner.IsWinner)
		assert.False(t, *winner.IsLoser)
		assert.False(t, *loser.IsWinner)
		assert.True(t, *loser.IsLoser)
	})
}
