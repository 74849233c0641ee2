package messages

import (
	"context"
	"database/sql"
	"time"
)

type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindLocation Kind = "location"
	KindSystem   Kind = "system"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindAudio, KindLocation, KindSystem:
		return true
	}
	return false
}

type Repo interface {
	Create(ctx context.Context, groupID, senderID string, payload Payload) (Message, error)
	FindByID(ctx context.Context, messageID string) (Message, error)
	Edit(ctx context.Context, messageID, actorID, text string) (Message, error)
	Delete(ctx context.Context, messageID, actorID string) error
	List(ctx context.Context, groupID string, page Page) ([]Message, error)
	MarkRead(ctx context.Context, groupID, actorID string, messageIDs []string) (int, error)
}

type Location struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// AttachmentInput is a descriptor of an object that already lives in external storage.
type AttachmentInput struct {
	URL        string  `json:"url" validate:"required,max=2048"`
	Mime       string  `json:"mime" validate:"max=255"`
	DurationMs *int64  `json:"duration_ms" validate:"omitempty,gte=0"`
	Width      *int    `json:"width" validate:"omitempty,gte=0,max=100000"`
	Height     *int    `json:"height" validate:"omitempty,gte=0,max=100000"`
	SizeBytes  *int64  `json:"size_bytes" validate:"omitempty,gte=0"`
	Caption    *string `json:"caption" validate:"omitempty,max=1000"`
}

type Attachment struct {
	ID         string  `json:"id" db:"id"`
	URL        string  `json:"url" db:"url"`
	Mime       string  `json:"mime" db:"mime"`
	DurationMs *int64  `json:"duration_ms,omitempty" db:"duration_ms"`
	Width      *int    `json:"width,omitempty" db:"width"`
	Height     *int    `json:"height,omitempty" db:"height"`
	SizeBytes  *int64  `json:"size_bytes,omitempty" db:"size_bytes"`
	Caption    *string `json:"caption,omitempty" db:"caption"`
}

type Message struct {
	ID          string       `json:"id"`
	GroupID     string       `json:"group_id"`
	SenderID    string       `json:"sender_id"`
	Kind        Kind         `json:"kind"`
	Text        *string      `json:"text"`
	Attachments []Attachment `json:"attachments"`
	Location    *Location    `json:"location,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Edited      bool         `json:"edited"`
}

type SendRequest struct {
	Kind        Kind              `json:"kind" validate:"required"`
	Text        *string           `json:"text" validate:"omitempty,max=4000"`
	Attachments []AttachmentInput `json:"attachments" validate:"omitempty,dive"`
	Location    *Location         `json:"location"`
}

type CreateMessageResponse struct {
	Message Message `json:"message"`
}

type GetMessagesResponse struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type EditMessageRequest struct {
	Text string `json:"text" validate:"max=4000"`
}

type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids" validate:"max=100"`
}

type MarkReadResponse struct {
	Count int `json:"count"`
}

type LiveLocationRequest struct {
	Location *Location `json:"location"`
}

type LiveLocationResponse struct {
	Accepted bool     `json:"accepted"`
	Message  *Message `json:"message,omitempty"`
}

type MessageRow struct {
	ID               string          `db:"id"`
	GroupID          string          `db:"group_id"`
	SenderID         string          `db:"sender_id"`
	Kind             string          `db:"kind"`
	Text             sql.NullString  `db:"text"`
	LocationLat      sql.NullFloat64 `db:"location_lat"`
	LocationLng      sql.NullFloat64 `db:"location_lng"`
	LocationAccuracy sql.NullFloat64 `db:"location_accuracy"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
	Edited           bool            `db:"edited"`
}

type AttachmentRow struct {
	ID         string         `db:"id"`
	MessageID  string         `db:"message_id"`
	Position   int            `db:"position"`
	URL        string         `db:"url"`
	Mime       sql.NullString `db:"mime"`
	SizeBytes  sql.NullInt64  `db:"size_bytes"`
	Width      sql.NullInt64  `db:"width"`
	Height     sql.NullInt64  `db:"height"`
	DurationMs sql.NullInt64  `db:"duration_ms"`
	Caption    sql.NullString `db:"caption"`
}

func NewAttachmentFromRow(row AttachmentRow) Attachment {
	att := Attachment{
		ID:   row.ID,
		URL:  row.URL,
		Mime: row.Mime.String,
	}
	if row.Width.Valid {
		w := int(row.Width.Int64)
		att.Width = &w
	}
	if row.Height.Valid {
		h := int(row.Height.Int64)
		att.Height = &h
	}
	if row.SizeBytes.Valid {
		att.SizeBytes = &row.SizeBytes.Int64
	}
	if row.DurationMs.Valid {
		att.DurationMs = &row.DurationMs.Int64
	}
	if row.Caption.Valid {
		att.Caption = &row.Caption.String
	}
	return att
}

func NewMessageFromRow(row MessageRow, attachments []AttachmentRow) Message {
	atts := make([]Attachment, 0, len(attachments))
	for _, a := range attachments {
		atts = append(atts, NewAttachmentFromRow(a))
	}

	msg := Message{
		ID:          row.ID,
		GroupID:     row.GroupID,
		SenderID:    row.SenderID,
		Kind:        Kind(row.Kind),
		Attachments: atts,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
		Edited:      row.Edited,
	}
	if row.Text.Valid {
		msg.Text = &row.Text.String
	}
	if row.LocationLat.Valid && row.LocationLng.Valid {
		loc := &Location{Lat: row.LocationLat.Float64, Lng: row.LocationLng.Float64}
		if row.LocationAccuracy.Valid {
			loc.Accuracy = &row.LocationAccuracy.Float64
		}
		msg.Location = loc
	}
	return msg
}
