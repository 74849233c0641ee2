package ws

import "github.com/kgellert/hodatay-groupchat/internal/messages"

type MessagePayload struct {
	Message messages.Message `json:"message"`
}

type MessageDeletedPayload struct {
	ID      string `json:"id"`
	GroupID string `json:"group_id"`
}

type MessagesReadPayload struct {
	UserID     string   `json:"user_id"`
	GroupID    string   `json:"group_id"`
	MessageIDs []string `json:"message_ids"`
	Count      int      `json:"count"`
}

type TypingPayload struct {
	UserID   string `json:"user_id"`
	GroupID  string `json:"group_id"`
	IsTyping bool   `json:"is_typing"`
}

type RoomPayload struct {
	Room    string `json:"room"`
	GroupID string `json:"group_id,omitempty"`
	Region  string `json:"region,omitempty"`
}

type LiveLocationStoppedPayload struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Ref echoes the ref of the command that failed.
	Ref string `json:"ref,omitempty"`
}

// ClientCommand is a frame sent by a client. Fields not used by Type are ignored.
type ClientCommand struct {
	Type       string                `json:"type"`
	Ref        string                `json:"ref,omitempty"`
	GroupID    string                `json:"group_id,omitempty"`
	Region     string                `json:"region,omitempty"`
	IsTyping   bool                  `json:"is_typing,omitempty"`
	Message    *messages.SendRequest `json:"message,omitempty"`
	Location   *messages.Location    `json:"location,omitempty"`
	MessageIDs []string              `json:"message_ids,omitempty"`
}
