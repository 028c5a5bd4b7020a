//go:generate go run go.uber.org/mock/mockgen -source=relay.go -destination=../mocks/mock_relay.go -package=mocks
package room

import "time"

// Broadcaster fans room events out to connected sessions. Each room is a
// topic; participants subscribe while they are members. Implementations must
// not block: the registry calls them while holding room locks so that every
// session sees a room's events in the order they were applied.
type Broadcaster interface {
	Subscribe(roomID, participantID string)
	Unsubscribe(roomID, participantID string)
	// Publish sends to every subscriber of roomID except the participant named by except.
	Publish(roomID, event string, data any, except string)
	Send(participantID, event string, data any)
	// Drop closes the participant's current connection.
	Drop(participantID string)
}

// Recorder receives a summary of each room when it is torn down.
type Recorder interface {
	Record(summary Summary)
}

type CloseReason string

const (
	ClosedEmpty CloseReason = "empty"
	ClosedEnded CloseReason = "ended"
)

type Summary struct {
	RoomID           string
	OpenedAt         time.Time
	ClosedAt         time.Time
	Reason           CloseReason
	PeakParticipants int
	Pages            []Page
}
