package service

import (
	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

type mockConnection struct {
	mock.Mock
}

func newMockConnection() *mockConnection {
	return &mockConnection{}
}

func (that *mockConnection) Send(view *entity.View) error {
	args := that.Called(view)
	return args.Error(0)
}

// viewFor matches a broadcast view addressed to symbol.
func viewFor(symbol entity.Symbol, check func(view *entity.View) bool) interface{} {
	return mock.MatchedBy(func(view *entity.View) bool {
		return view.PlayerSymbol == symbol && check(view)
	})
}
