package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/manpreetbhatti/coderoom/backend/internal/permission"
)

var validate = validator.New()

// ErrInvalidPayload wraps every decoding or validation failure.
var ErrInvalidPayload = errors.New("invalid payload")

// Decode unmarshals data into dst and runs its validate tags.
func Decode(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

type JoinRoom struct {
	RoomID   string `json:"roomId" validate:"required,max=128"`
	UserName string `json:"userName" validate:"max=128"`
	UserID   string `json:"userId" validate:"required,max=128"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type UserStatus struct {
	IsInCall *bool `json:"isInCall"`
}

type UserStatusUpdate struct {
	RoomID string     `json:"roomId" validate:"required"`
	UserID string     `json:"userId" validate:"required"`
	Status UserStatus `json:"status"`
}

type SendMessage struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	UserName string `json:"userName"`
	Message  string `json:"message" validate:"max=10000"`
	Time     string `json:"time"`
}

// PageUpdates holds the page fields a content-change may touch. Anything else
// in the client object (id, createdBy, permissions) is discarded on decode.
type PageUpdates struct {
	Name     *string `json:"name,omitempty"`
	Language *string `json:"language,omitempty"`
	Code     *string `json:"code,omitempty"`
	Stdin    *string `json:"stdin,omitempty"`
	Output   *string `json:"output,omitempty"`
}

func (u PageUpdates) Empty() bool {
	return u.Name == nil && u.Language == nil && u.Code == nil && u.Stdin == nil && u.Output == nil
}

type ContentChange struct {
	RoomID  string      `json:"roomId" validate:"required"`
	PageID  string      `json:"pageId" validate:"required"`
	UserID  string      `json:"userId" validate:"required"`
	Updates PageUpdates `json:"updates"`
}

type EditorOp struct {
	RoomID string          `json:"roomId" validate:"required"`
	PageID string          `json:"pageId" validate:"required"`
	UserID string          `json:"userId" validate:"required"`
	Range  json.RawMessage `json:"range"`
	Text   string          `json:"text"`
}

type AddPage struct {
	RoomID string `json:"roomId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
	Name   string `json:"name"`
}

type ClosePage struct {
	RoomID string `json:"roomId" validate:"required"`
	PageID string `json:"pageId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type UpdatePagePermissions struct {
	RoomID      string                 `json:"roomId" validate:"required"`
	PageID      string                 `json:"pageId" validate:"required"`
	UserID      string                 `json:"userId" validate:"required"`
	Permissions permission.Permissions `json:"permissions"`
}

type UpdateRoomSettings struct {
	RoomID               string                            `json:"roomId" validate:"required"`
	UserID               string                            `json:"userId" validate:"required"`
	Settings             permission.Settings               `json:"settings"`
	PreservedPermissions map[string]permission.Permissions `json:"preservedPermissions,omitempty"`
}

type ChangeRoomOwner struct {
	RoomID         string `json:"roomId" validate:"required"`
	CurrentOwnerID string `json:"currentOwnerId" validate:"required"`
	NewOwnerID     string `json:"newOwnerId" validate:"required"`
}

type EndRoom struct {
	RoomID string `json:"roomId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type RemoveParticipant struct {
	RoomID       string `json:"roomId" validate:"required"`
	UserID       string `json:"userId" validate:"required"`
	UserIDToKick string `json:"userIdToKick" validate:"required"`
}

// Server payloads

type Presence struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	IsOnline bool   `json:"isOnline"`
	IsInCall bool   `json:"isInCall"`
}

type OwnerAssigned struct {
	IsOwner bool `json:"isOwner"`
}

type OwnerChanged struct {
	OwnerID string `json:"ownerId"`
}

type SelfJoined struct {
	UserID string     `json:"userId"`
	RoomID string     `json:"roomId"`
	Users  []Presence `json:"users"`
}

type UserJoined struct {
	UserName string `json:"userName"`
	UserID   string `json:"userId"`
}

type ContentUpdate struct {
	PageID  string      `json:"pageId"`
	UserID  string      `json:"userId"`
	Updates PageUpdates `json:"updates"`
}

type ChatMessage struct {
	UserName string `json:"userName"`
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	SendTime string `json:"sendtime"`
	Time     string `json:"time"`
}

type Notice struct {
	Message string `json:"message"`
}
