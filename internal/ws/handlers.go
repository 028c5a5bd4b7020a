package ws

import (
	"errors"
	"strings"

	"github.com/manpreetbhatti/coderoom/backend/internal/protocol"
	"github.com/manpreetbhatti/coderoom/backend/internal/room"
)

var (
	errNotJoined    = &room.Error{Kind: room.KindForbidden, Message: "Join a room before sending this event."}
	errWrongSession = &room.Error{Kind: room.KindForbidden, Message: "This connection belongs to another participant."}
	errUnknownEvent = &room.Error{Kind: room.KindValidation, Message: "Unknown event."}
)

// handle runs one inbound frame against the registry and acks the request
// when the client asked for it. Events that fail silently never ack.
func (c *Client) handle(in protocol.Inbound) {
	result := c.dispatch(in)
	if result == nil || in.Ack == nil {
		return
	}
	frame, err := protocol.EncodeAck(*in.Ack, *result)
	if err != nil {
		c.log.Error("Failed to encode ack", "conn", c.id, "event", in.Event, "error", err)
		return
	}
	c.hub.reply(c, frame)
}

func succeeded() *protocol.AckResult {
	return &protocol.AckResult{Status: protocol.StatusOK}
}

func failed(err error) *protocol.AckResult {
	msg := room.Message(err)
	if errors.Is(err, protocol.ErrInvalidPayload) {
		msg = "Invalid request payload."
	}
	return &protocol.AckResult{Status: protocol.StatusError, Message: msg}
}

// actor checks that the participant named in a payload is the one this
// connection joined as.
func (c *Client) actor(participantID string) error {
	bound := c.participant()
	switch {
	case bound == "":
		return errNotJoined
	case bound != participantID:
		return errWrongSession
	}
	return nil
}

func (c *Client) dispatch(in protocol.Inbound) *protocol.AckResult {
	switch in.Event {
	case protocol.EventJoinRoom:
		return c.joinRoom(in)
	case protocol.EventLeaveRoom:
		return c.leaveRoom(in)
	case protocol.EventUserStatusUpdate:
		c.userStatusUpdate(in)
		return nil
	case protocol.EventSendMessage:
		return c.sendMessage(in)
	case protocol.EventContentChange:
		return c.contentChange(in)
	case protocol.EventEditorOp:
		c.editorOp(in)
		return nil
	case protocol.EventAddPage:
		return c.addPage(in)
	case protocol.EventClosePage:
		return c.closePage(in)
	case protocol.EventUpdatePagePermissions:
		return c.updatePagePermissions(in)
	case protocol.EventUpdateRoomSettings:
		return c.updateRoomSettings(in)
	case protocol.EventChangeRoomOwner:
		c.changeRoomOwner(in)
		return nil
	case protocol.EventEndRoom:
		return c.endRoom(in)
	case protocol.EventRemoveParticipant:
		c.removeParticipant(in)
		return nil
	}
	c.log.Debug("Unknown event", "conn", c.id, "event", in.Event)
	return failed(errUnknownEvent)
}

func (c *Client) joinRoom(in protocol.Inbound) *protocol.AckResult {
	var p protocol.JoinRoom
	if err := protocol.Decode(in.Data, &p); err != nil {
		return failed(err)
	}

	c.mu.Lock()
	if c.participantID != "" && c.participantID != p.UserID {
		c.mu.Unlock()
		return failed(errWrongSession)
	}
	c.participantID = p.UserID
	c.mu.Unlock()

	c.hub.bind(p.UserID, c)
	c.rooms.Join(p.RoomID, p.UserID, strings.TrimSpace(p.UserName), c.id)
	return succeeded()
}

func (c *Client) leaveRoom(in protocol.Inbound) *protocol.AckResult {
	var p protocol.LeaveRoom
	if err := protocol.Decode(in.Data, &p); err != nil {
		return failed(err)
	}
	if err := c.actor(p.UserID); err != nil {
		return failed(err)
	}

	c.rooms.Leave(p.RoomID, p.UserID)
	return succeeded()
}

func (c *Client) userStatusUpdate(in protocol.Inbound) {
	var p protocol.UserStatusUpdate
	if protocol.Decode(in.Data, &p) != nil || c.actor(p.UserID) != nil {
		return
	}
	c.rooms.MarkStatus(p.RoomID, p.UserID, p.Status.IsInCall)
}

func (c *Client) sendMessage(in protocol.Inbound) *protocol.AckResult {
	var p protocol.SendMessage
	if err := protocol.Decode(in.Data, &p); err != nil {
		return failed(err)
	}
	if err := c.actor(p.UserID); err != nil {
		return failed(err)
	}
	if err := c.rooms.SendMessage(p.RoomID, p.UserID, p.UserName, p.Message, p.Time); err != nil {
		return failed(err)
	}
	return &protocol.AckResult{Status: protocol.StatusDelivered}
}

func (c *Client) contentChange(in protocol.Inbound) *protocol.AckResult {
	var p protocol.ContentChange
	if err := protocol.Decode(in.Data, &p); err != nil {
		return failed(err)
	}
	if err := c.actor(p.UserID); err != nil {
		return failed(err)
	}
	if err := c.rooms.ApplyContentChange(p.RoomID, p.UserID, p.PageID, p.Updates); err != nil {
		c.log.Debug("Content change rejected", "room", p.RoomID, "participant", p.UserID, "page", p.PageID, "error", err)
		return failed(err)
	}
	return succeeded()
}

func (c *Client) editorOp(in protocol.Inbound) {
	var p protocol.EditorOp
	if protocol.Decode(in.Data, &p) != nil || c.actor(p.UserID) != nil {
		return
	}
	if !c.rooms.RelayEditOp(p.RoomID, p.UserID, p.PageID, p.Range, p.Text) {
		c.log.Debug("Edit op dropped", "room", p.RoomID, "participant", p.UserID, "page", p.PageID)
	}
}

func (c *Client) addPage(in protocol.Inbound) *protocol.AckResult {
	var p protocol.AddPage
	if err := protocol.Decode(in.Data, &p); err != nil {
		return failed(err)
	}
	if err := c.actor(p.UserID); err != nil {
		return failed(err)
	}
	page, err := c.rooms.AddPage(p.RoomID, p.UserID, p.Name)
	if err != nil {
		return failed(err)
	}
	return &protocol.AckResult{Status: protocol.StatusOK, PageID: page.ID}
}

func (c *Client) closePage(in protocol.Inbound) *protocol.AckResult {
	var p protocol.ClosePage
	if err := protocol.Decode(in.Data, &p); err != nil {
		return failed(err)
	}
	if err := c.actor(p.UserID); err != nil {
		return failed(err)
	}
	if err := c.rooms.ClosePage(p.RoomID, p.UserID, p.PageID); err != nil {
		return failed(err)
	}
	return succeeded()
}

func (c *Client) updatePagePermissions(in protocol.Inbound) *protocol.AckResult {
	var p protocol.UpdatePagePermissions
	if err := protocol.Decode(in.Data, &p); err != nil {
		return failed(err)
	}
	if err := c.actor(p.UserID); err != nil {
		return failed(err)
	}
	perms, err := c.rooms.UpdatePagePermissions(p.RoomID, p.UserID, p.PageID, p.Permissions)
	if err != nil {
		return failed(err)
	}
	return &protocol.AckResult{Status: protocol.StatusOK, Permissions: perms}
}

func (c *Client) updateRoomSettings(in protocol.Inbound) *protocol.AckResult {
	var p protocol.UpdateRoomSettings
	if err := protocol.Decode(in.Data, &p); err != nil {
		return failed(err)
	}
	if err := c.actor(p.UserID); err != nil {
		return failed(err)
	}
	settings, err := c.rooms.ApplyRoomSettings(p.RoomID, p.UserID, p.Settings, p.PreservedPermissions)
	if err != nil {
		return failed(err)
	}
	return &protocol.AckResult{Status: protocol.StatusOK, Settings: settings}
}

func (c *Client) changeRoomOwner(in protocol.Inbound) {
	var p protocol.ChangeRoomOwner
	if protocol.Decode(in.Data, &p) != nil || c.actor(p.CurrentOwnerID) != nil {
		return
	}
	c.rooms.TransferOwner(p.RoomID, p.CurrentOwnerID, p.NewOwnerID)
}

// endRoom acks only the owner; anyone else gets no reply.
func (c *Client) endRoom(in protocol.Inbound) *protocol.AckResult {
	var p protocol.EndRoom
	if protocol.Decode(in.Data, &p) != nil || c.actor(p.UserID) != nil {
		return nil
	}
	if !c.rooms.EndRoom(p.RoomID, p.UserID) {
		return nil
	}
	return succeeded()
}

func (c *Client) removeParticipant(in protocol.Inbound) {
	var p protocol.RemoveParticipant
	if protocol.Decode(in.Data, &p) != nil || c.actor(p.UserID) != nil {
		return
	}
	c.rooms.RemoveParticipant(p.RoomID, p.UserID, p.UserIDToKick)
}
