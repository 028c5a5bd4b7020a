// Package protocol defines the JSON frames exchanged over the room websocket.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client to server events
const (
	EventJoinRoom              = "join-room"
	EventLeaveRoom             = "leave-room"
	EventUserStatusUpdate      = "user-status-update"
	EventSendMessage           = "send-message"
	EventContentChange         = "content-change"
	EventEditorOp              = "editor-op"
	EventAddPage               = "add-page"
	EventClosePage             = "close-page"
	EventUpdatePagePermissions = "update-page-permissions"
	EventUpdateRoomSettings    = "update-room-settings"
	EventChangeRoomOwner       = "change-room-owner"
	EventEndRoom               = "end-room"
	EventRemoveParticipant     = "remove-participant"
)

// Server to client events. EventEditorOp is relayed under its own name.
const (
	EventAck                = "ack"
	EventParticipantsUpdate = "participants-update"
	EventRoomOwnerAssigned  = "room-owner-assigned"
	EventGetRoomOwner       = "get-room-owner"
	EventRoomOwnerChanged   = "room-owner-changed"
	EventRoomSettingsUpdate = "room-settings-update"
	EventPagesUpdate        = "pages-update"
	EventSelfJoined         = "self-joined"
	EventUserJoined         = "user-joined"
	EventContentUpdate      = "content-update"
	EventReceiveMessage     = "receive-message"
	EventRoomEnded          = "room-ended"
	EventKicked             = "kicked"
)

// Ack statuses
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusDelivered = "delivered"
)

var ErrEmptyFrame = errors.New("empty frame")

// Inbound is a frame sent by a client. Ack is set when the client wants a
// result for this request.
type Inbound struct {
	Event string          `json:"event"`
	Ack   *uint64         `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is a frame sent to clients.
type Outbound struct {
	Event string  `json:"event"`
	Ack   *uint64 `json:"ack,omitempty"`
	Data  any     `json:"data,omitempty"`
}

// AckResult is the payload of an EventAck frame.
type AckResult struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	Settings    any    `json:"settings,omitempty"`
	Permissions any    `json:"permissions,omitempty"`
	PageID      string `json:"pageId,omitempty"`
}

// ParseInbound decodes the outer envelope of a client frame.
func ParseInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if len(raw) == 0 {
		return in, ErrEmptyFrame
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("malformed frame: %w", err)
	}
	if in.Event == "" {
		return in, errors.New("frame has no event")
	}
	return in, nil
}

func Encode(event string, data any) ([]byte, error) {
	return json.Marshal(Outbound{Event: event, Data: data})
}

func EncodeAck(id uint64, result AckResult) ([]byte, error) {
	return json.Marshal(Outbound{Event: EventAck, Ack: &id, Data: result})
}
