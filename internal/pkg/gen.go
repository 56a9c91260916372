package pkg

import "github.com/google/uuid"

const roomIDLength = 8

// GenerateRoomID - generates a short random identifier for a room.
func GenerateRoomID() string {
	return uuid.NewString()[:roomIDLength]
}
