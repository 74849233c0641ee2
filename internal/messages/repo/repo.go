package messagesrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
	"github.com/samber/lo"
)

const messageColumns = `id, group_id, sender_id, kind, text, location_lat, location_lng, location_accuracy, created_at, updated_at, edited`

type Repo struct {
	db  *sqlx.DB
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

func New(db *sqlx.DB) *Repo {
	return &Repo{db: db, now: time.Now}
}

// timestamp returns a UTC time with microsecond precision that is strictly
// greater than every timestamp this repo handed out before.
func (s *Repo) timestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Repo) Create(ctx context.Context, groupID, senderID string, payload messages.Payload) (messages.Message, error) {
	const op = "storage.messages.Create"

	id, err := uuid.NewV7()
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: new id: %w", op, err)
	}

	now := s.timestamp()
	row := messages.MessageRow{
		ID:        id.String(),
		GroupID:   groupID,
		SenderID:  senderID,
		Kind:      string(payload.Kind()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch p := payload.(type) {
	case messages.TextPayload:
		row.Text = nullString(&p.Text)
	case messages.MediaPayload:
		row.Text = nullString(p.Caption)
	case messages.SystemPayload:
		row.Text = nullString(p.Text)
	case messages.LocationPayload:
		row.LocationLat = sql.NullFloat64{Float64: p.Location.Lat, Valid: true}
		row.LocationLng = sql.NullFloat64{Float64: p.Location.Lng, Valid: true}
		if p.Location.Accuracy != nil {
			row.LocationAccuracy = sql.NullFloat64{Float64: *p.Location.Accuracy, Valid: true}
		}
	default:
		return messages.Message{}, fmt.Errorf("%s: %w", op, messages.ErrUnsupportedKind)
	}

	inputs := messages.PayloadAttachments(payload)
	atts := make([]messages.AttachmentRow, 0, len(inputs))
	for i, in := range inputs {
		attID, err := uuid.NewV7()
		if err != nil {
			return messages.Message{}, fmt.Errorf("%s: new attachment id: %w", op, err)
		}
		atts = append(atts, newAttachmentRow(attID.String(), row.ID, i, in))
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(
		ctx,
		`INSERT INTO messages (`+messageColumns+`)
		VALUES (:id, :group_id, :sender_id, :kind, :text, :location_lat, :location_lng, :location_accuracy, :created_at, :updated_at, :edited)`,
		row,
	)
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: insert message: %w", op, err)
	}

	for _, att := range atts {
		_, err := tx.NamedExecContext(
			ctx,
			`INSERT INTO message_attachments (id, message_id, position, url, mime, size_bytes, width, height, duration_ms, caption)
			VALUES (:id, :message_id, :position, :url, :mime, :size_bytes, :width, :height, :duration_ms, :caption)`,
			att,
		)
		if err != nil {
			return messages.Message{}, fmt.Errorf("%s: insert attachment %d: %w", op, att.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return messages.Message{}, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return messages.NewMessageFromRow(row, atts), nil
}

func (s *Repo) FindByID(ctx context.Context, messageID string) (messages.Message, error) {
	const op = "storage.messages.FindByID"

	row, err := findRow(ctx, s.db, messageID)
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	out, err := withAttachments(ctx, s.db, []messages.MessageRow{row})
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	return out[0], nil
}

// Edit replaces the text of a message owned by actorID.
func (s *Repo) Edit(ctx context.Context, messageID, actorID, text string) (messages.Message, error) {
	const op = "storage.messages.Edit"

	text = strings.TrimSpace(text)
	if text == "" {
		return messages.Message{}, messages.ErrEditTextRequired
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	row, err := findRow(ctx, tx, messageID)
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	if row.SenderID != actorID {
		return messages.Message{}, messages.ErrNotSender
	}
	if messages.Kind(row.Kind) == messages.KindLocation {
		return messages.Message{}, messages.ErrNotEditable
	}

	row.Text = sql.NullString{String: text, Valid: true}
	row.UpdatedAt = s.timestamp()
	row.Edited = true

	_, err = tx.ExecContext(
		ctx,
		tx.Rebind(`UPDATE messages SET text = ?, updated_at = ?, edited = ? WHERE id = ?`),
		row.Text, row.UpdatedAt, row.Edited, row.ID,
	)
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: update message: %w", op, err)
	}

	out, err := withAttachments(ctx, tx, []messages.MessageRow{row})
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return messages.Message{}, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return out[0], nil
}

// Delete removes a message owned by actorID with its receipts and attachments.
func (s *Repo) Delete(ctx context.Context, messageID, actorID string) error {
	const op = "storage.messages.Delete"

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	row, err := findRow(ctx, tx, messageID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if row.SenderID != actorID {
		return messages.ErrNotSender
	}

	for _, query := range []string{
		`DELETE FROM message_reads WHERE message_id = ?`,
		`DELETE FROM message_attachments WHERE message_id = ?`,
		`DELETE FROM messages WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), messageID); err != nil {
			return fmt.Errorf("%s: delete: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return nil
}

func (s *Repo) List(ctx context.Context, groupID string, page messages.Page) ([]messages.Message, error) {
	const op = "storage.messages.List"

	var (
		query string
		args  []any
	)

	switch page.Direction {
	case messages.DirectionBefore, messages.DirectionAfter:
		cursor, err := findRow(ctx, s.db, page.Cursor)
		if errors.Is(err, messages.ErrMessageNotFound) || (err == nil && cursor.GroupID != groupID) {
			return nil, messages.ErrCursorNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if page.Direction == messages.DirectionBefore {
			query = `SELECT ` + messageColumns + ` FROM messages
			WHERE group_id = ? AND created_at < ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`
		} else {
			query = `SELECT ` + messageColumns + ` FROM messages
			WHERE group_id = ? AND created_at > ?
			ORDER BY created_at ASC, id ASC
			LIMIT ?`
		}
		args = []any{groupID, cursor.CreatedAt, page.Limit}

	default:
		query = `SELECT ` + messageColumns + ` FROM messages
		WHERE group_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
		args = []any{groupID, page.Limit}
	}

	var rows []messages.MessageRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%s: select messages: %w", op, err)
	}

	out, err := withAttachments(ctx, s.db, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// MarkRead records that actorID has read messageIDs and returns how many
// receipts were newly created. Either every id belongs to groupID or nothing
// is written.
func (s *Repo) MarkRead(ctx context.Context, groupID, actorID string, messageIDs []string) (int, error) {
	const op = "storage.messages.MarkRead"

	ids := lo.Uniq(messageIDs)
	if len(ids) == 0 {
		return 0, messages.ErrMessageIDsRequired
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(`SELECT id FROM messages WHERE group_id = ? AND id IN (?)`, groupID, ids)
	if err != nil {
		return 0, fmt.Errorf("%s: build query: %w", op, err)
	}

	var found []string
	if err := tx.SelectContext(ctx, &found, tx.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("%s: select messages: %w", op, err)
	}

	if missing := lo.Without(ids, found...); len(missing) > 0 {
		return 0, &messages.InvalidMessageIDsError{IDs: missing}
	}

	insert := tx.Rebind(`
	INSERT INTO message_reads (id, message_id, user_id, read_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (message_id, user_id) DO NOTHING`)

	readAt := s.timestamp()
	count := 0
	for _, messageID := range ids {
		receiptID, err := uuid.NewV7()
		if err != nil {
			return 0, fmt.Errorf("%s: new receipt id: %w", op, err)
		}

		res, err := tx.ExecContext(ctx, insert, receiptID.String(), messageID, actorID, readAt)
		if err != nil {
			return 0, fmt.Errorf("%s: insert receipt %s: %w", op, messageID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%s: rows affected: %w", op, err)
		}
		count += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit tx: %w", op, err)
	}

	return count, nil
}

func findRow(ctx context.Context, q sqlx.ExtContext, messageID string) (messages.MessageRow, error) {
	var row messages.MessageRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return messages.MessageRow{}, messages.ErrMessageNotFound
	}
	if err != nil {
		return messages.MessageRow{}, fmt.Errorf("select message: %w", err)
	}
	return row, nil
}

// withAttachments loads the attachments of rows in one query and builds the
// domain messages in the order of rows.
func withAttachments(ctx context.Context, q sqlx.ExtContext, rows []messages.MessageRow) ([]messages.Message, error) {
	out := make([]messages.Message, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := lo.Map(rows, func(r messages.MessageRow, _ int) string { return r.ID })

	query, args, err := sqlx.In(
		`SELECT id, message_id, position, url, mime, size_bytes, width, height, duration_ms, caption
		FROM message_attachments
		WHERE message_id IN (?)
		ORDER BY message_id, position`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("build attachments query: %w", err)
	}

	var atts []messages.AttachmentRow
	if err := sqlx.SelectContext(ctx, q, &atts, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select attachments: %w", err)
	}

	byMessage := lo.GroupBy(atts, func(a messages.AttachmentRow) string { return a.MessageID })
	for _, row := range rows {
		out = append(out, messages.NewMessageFromRow(row, byMessage[row.ID]))
	}
	return out, nil
}

func newAttachmentRow(id, messageID string, position int, in messages.AttachmentInput) messages.AttachmentRow {
	row := messages.AttachmentRow{
		ID:        id,
		MessageID: messageID,
		Position:  position,
		URL:       in.URL,
		Mime:      sql.NullString{String: in.Mime, Valid: in.Mime != ""},
		Caption:   nullString(in.Caption),
	}
	if in.SizeBytes != nil {
		row.SizeBytes = sql.NullInt64{Int64: *in.SizeBytes, Valid: true}
	}
	if in.DurationMs != nil {
		row.DurationMs = sql.NullInt64{Int64: *in.DurationMs, Valid: true}
	}
	if in.Width != nil {
		row.Width = sql.NullInt64{Int64: int64(*in.Width), Valid: true}
	}
	if in.Height != nil {
		row.Height = sql.NullInt64{Int64: int64(*in.Height), Valid: true}
	}
	return row
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
