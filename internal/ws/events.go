package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kgellert/hodatay-groupchat/internal/errs"
)

var (
	ErrUnknownCommand = fmt.Errorf("%w: unknown command", errs.ErrValidation)
	ErrGroupRequired  = fmt.Errorf("%w: group_id is required", errs.ErrValidation)
)

// Server to client events.
const (
	EventNewMessage          = "new_message"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventMessagesRead        = "messages_read"
	EventTyping              = "typing"
	EventJoined              = "joined"
	EventLeft                = "left"
	EventLiveLocationStarted = "live_location_started"
	EventLiveLocationStopped = "live_location_stopped"
	EventRiskUpdate          = "risk:update"
	EventError               = "error"
)

// Client to server commands.
const (
	CmdJoin               = "join"
	CmdJoinRegion         = "join_region"
	CmdLeave              = "leave"
	CmdTyping             = "typing"
	CmdSendMessage        = "send_message"
	CmdLiveLocationStart  = "live_location_start"
	CmdLiveLocationUpdate = "live_location_update"
	CmdLiveLocationStop   = "live_location_stop"
	CmdMarkRead           = "mark_read"
)

func GroupRoom(groupID string) string { return "group:" + groupID }

func RegionRoom(region string) string { return "region:" + region }

// Envelope is the frame every event is written in.
type Envelope struct {
	Event   string          `json:"event"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

func Encode(room, event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Room: room, Payload: raw})
}

// Publisher delivers an event to every connection in a room. Delivery is
// best effort; an error means the event was not accepted at all.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
	// PublishExcept skips the connection with id exceptConnID.
	PublishExcept(ctx context.Context, room, event string, payload any, exceptConnID string) error
}
