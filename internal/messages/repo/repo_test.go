package messagesrepo_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/hodatay-groupchat/internal/errs"
	"github.com/kgellert/hodatay-groupchat/internal/groups"
	"github.com/kgellert/hodatay-groupchat/internal/groups/groupstest"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
	messagesrepo "github.com/kgellert/hodatay-groupchat/internal/messages/repo"
	"github.com/kgellert/hodatay-groupchat/internal/storage"
)

func ptr[T any](v T) *T { return &v }

func setup(t *testing.T) (*sqlx.DB, *messagesrepo.Repo) {
	t.Helper()
	ctx := context.Background()

	db, err := storage.New(ctx, storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	groupstest.Users(t, db, "alice", "bob")
	groupstest.Group(t, db, groups.Group{ID: "g1", Name: "one", OwnerID: "alice", MemberIDs: []string{"bob"}})
	groupstest.Group(t, db, groups.Group{ID: "g2", Name: "two", OwnerID: "bob"})

	return db, messagesrepo.New(db)
}

func count(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func sendText(t *testing.T, repo *messagesrepo.Repo, groupID, text string) messages.Message {
	t.Helper()
	msg, err := repo.Create(context.Background(), groupID, "alice", messages.TextPayload{Text: text})
	require.NoError(t, err)
	return msg
}

func TestRepo_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("should keep dimensions beyond 32 bits", func(t *testing.T) {
		r := require.New(t)
		_, repo := setup(t)

		msg, err := repo.Create(ctx, "g1", "alice", messages.MediaPayload{
			MediaKind:   messages.KindImage,
			Attachments: []messages.AttachmentInput{{URL: "https://cdn/wide.png", Mime: "image/png", Width: ptr(3_000_000_000), Height: ptr(1)}},
		})
		r.NoError(err)

		got, err := repo.FindByID(ctx, msg.ID)
		r.NoError(err)
		r.Equal(3_000_000_000, *got.Attachments[0].Width)
		r.Equal(1, *got.Attachments[0].Height)
	})

	t.Run("should store a message with attachments in order", func(t *testing.T) {
		r := require.New(t)
		db, repo := setup(t)

		msg, err := repo.Create(ctx, "g1", "alice", messages.MediaPayload{
			MediaKind: messages.KindImage,
			Caption:   ptr("sunset"),
			Attachments: []messages.AttachmentInput{
				{URL: "https://cdn/a.png", Mime: "image/png", Width: ptr(640), Height: ptr(480)},
				{URL: "https://cdn/b.jpg", SizeBytes: ptr(int64(2048))},
			},
		})
		r.NoError(err)
		r.NotEmpty(msg.ID)
		r.Equal(messages.KindImage, msg.Kind)
		r.Equal("sunset", *msg.Text)
		r.False(msg.Edited)
		r.Equal(msg.CreatedAt, msg.UpdatedAt)
		r.Len(msg.Attachments, 2)

		got, err := repo.FindByID(ctx, msg.ID)
		r.NoError(err)
		r.Equal(msg.ID, got.ID)
		r.True(msg.CreatedAt.Equal(got.CreatedAt))
		r.Len(got.Attachments, 2)
		r.Equal("https://cdn/a.png", got.Attachments[0].URL)
		r.Equal("image/png", got.Attachments[0].Mime)
		r.Equal(640, *got.Attachments[0].Width)
		r.Equal("https://cdn/b.jpg", got.Attachments[1].URL)
		r.Equal(int64(2048), *got.Attachments[1].SizeBytes)
		r.Nil(got.Attachments[1].Width)

		r.Equal(2, count(t, db, "message_attachments"))
	})

	t.Run("should store a location", func(t *testing.T) {
		r := require.New(t)
		_, repo := setup(t)

		msg, err := repo.Create(ctx, "g1", "alice", messages.LocationPayload{
			Location: messages.Location{Lat: 41.31, Lng: 69.28, Accuracy: ptr(12.5)},
		})
		r.NoError(err)

		got, err := repo.FindByID(ctx, msg.ID)
		r.NoError(err)
		r.Nil(got.Text)
		r.Empty(got.Attachments)
		r.NotNil(got.Location)
		r.InDelta(41.31, got.Location.Lat, 1e-9)
		r.InDelta(69.28, got.Location.Lng, 1e-9)
		r.InDelta(12.5, *got.Location.Accuracy, 1e-9)
	})

	t.Run("should write nothing when the insert fails", func(t *testing.T) {
		r := require.New(t)
		db, repo := setup(t)

		_, err := repo.Create(ctx, "missing-group", "alice", messages.TextPayload{
			Text:        "hi",
			Attachments: []messages.AttachmentInput{{URL: "https://cdn/a.png"}},
		})
		r.Error(err)
		r.Zero(count(t, db, "messages"))
		r.Zero(count(t, db, "message_attachments"))
	})

	t.Run("should hand out strictly increasing timestamps", func(t *testing.T) {
		r := require.New(t)
		_, repo := setup(t)

		var prev messages.Message
		for i := range 50 {
			msg := sendText(t, repo, "g1", fmt.Sprintf("m%d", i))
			if i > 0 {
				r.True(msg.CreatedAt.After(prev.CreatedAt))
			}
			prev = msg
		}
	})
}

func TestRepo_FindByID(t *testing.T) {
	r := require.New(t)
	_, repo := setup(t)

	_, err := repo.FindByID(context.Background(), "nope")
	r.ErrorIs(err, messages.ErrMessageNotFound)
	r.ErrorIs(err, errs.ErrNotFound)
}

func TestRepo_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("should update text and mark edited", func(t *testing.T) {
		r := require.New(t)
		_, repo := setup(t)
		msg := sendText(t, repo, "g1", "helo")

		edited, err := repo.Edit(ctx, msg.ID, "alice", "  hello ")
		r.NoError(err)
		r.Equal("hello", *edited.Text)
		r.True(edited.Edited)
		r.True(edited.UpdatedAt.After(msg.UpdatedAt))
		r.True(edited.CreatedAt.Equal(msg.CreatedAt))

		got, err := repo.FindByID(ctx, msg.ID)
		r.NoError(err)
		r.Equal("hello", *got.Text)
		r.True(got.Edited)
	})

	t.Run("should reject edits by another user", func(t *testing.T) {
		r := require.New(t)
		_, repo := setup(t)
		msg := sendText(t, repo, "g1", "mine")

		_, err := repo.Edit(ctx, msg.ID, "bob", "yours")
		r.ErrorIs(err, messages.ErrNotSender)
		r.ErrorIs(err, errs.ErrForbidden)
	})

	t.Run("should reject blank text and location messages", func(t *testing.T) {
		r := require.New(t)
		_, repo := setup(t)
		msg := sendText(t, repo, "g1", "x")

		_, err := repo.Edit(ctx, msg.ID, "alice", "   ")
		r.ErrorIs(err, messages.ErrEditTextRequired)

		loc, err := repo.Create(ctx, "g1", "alice", messages.LocationPayload{Location: messages.Location{Lat: 1, Lng: 2}})
		r.NoError(err)
		_, err = repo.Edit(ctx, loc.ID, "alice", "here")
		r.ErrorIs(err, messages.ErrNotEditable)
	})

	t.Run("should report a missing message", func(t *testing.T) {
		r := require.New(t)
		_, repo := setup(t)

		_, err := repo.Edit(ctx, "nope", "alice", "text")
		r.ErrorIs(err, messages.ErrMessageNotFound)
	})
}

func TestRepo_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("should remove receipts and attachments with the message", func(t *testing.T) {
		r := require.New(t)
		db, repo := setup(t)

		msg, err := repo.Create(ctx, "g1", "alice", messages.TextPayload{
			Text:        "with files",
			Attachments: []messages.AttachmentInput{{URL: "u1"}, {URL: "u2"}},
		})
		r.NoError(err)
		_, err = repo.MarkRead(ctx, "g1", "bob", []string{msg.ID})
		r.NoError(err)

		r.NoError(repo.Delete(ctx, msg.ID, "alice"))

		_, err = repo.FindByID(ctx, msg.ID)
		r.ErrorIs(err, messages.ErrMessageNotFound)
		r.Zero(count(t, db, "message_attachments"))
		r.Zero(count(t, db, "message_reads"))
	})

	t.Run("should allow only the sender", func(t *testing.T) {
		r := require.New(t)
		db, repo := setup(t)
		msg := sendText(t, repo, "g1", "keep")

		err := repo.Delete(ctx, msg.ID, "bob")
		r.ErrorIs(err, messages.ErrNotSender)
		r.Equal(1, count(t, db, "messages"))
	})

	t.Run("should report a missing message", func(t *testing.T) {
		r := require.New(t)
		_, repo := setup(t)

		r.ErrorIs(repo.Delete(ctx, "nope", "alice"), messages.ErrMessageNotFound)
	})
}

func TestRepo_List(t *testing.T) {
	ctx := context.Background()

	_, repo := setup(t)
	all := make([]messages.Message, 0, 10)
	for i := range 10 {
		all = append(all, sendText(t, repo, "g1", fmt.Sprintf("m%d", i)))
	}
	sendText(t, repo, "g2", "elsewhere")

	ids := func(msgs []messages.Message) []string {
		out := make([]string, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, m.ID)
		}
		return out
	}

	t.Run("should return the newest messages first without a cursor", func(t *testing.T) {
		r := require.New(t)

		got, err := repo.List(ctx, "g1", messages.NormalizePage(messages.ListRequest{Limit: ptr(3)}))
		r.NoError(err)
		r.Equal([]string{all[9].ID, all[8].ID, all[7].ID}, ids(got))
	})

	t.Run("should page backwards from beforeId", func(t *testing.T) {
		r := require.New(t)

		got, err := repo.List(ctx, "g1", messages.NormalizePage(messages.ListRequest{Limit: ptr(3), BeforeID: all[5].ID}))
		r.NoError(err)
		r.Equal([]string{all[4].ID, all[3].ID, all[2].ID}, ids(got))

		got, err = repo.List(ctx, "g1", messages.NormalizePage(messages.ListRequest{Limit: ptr(3), BeforeID: all[1].ID}))
		r.NoError(err)
		r.Equal([]string{all[0].ID}, ids(got))
	})

	t.Run("should page forwards from afterId oldest first", func(t *testing.T) {
		r := require.New(t)

		got, err := repo.List(ctx, "g1", messages.NormalizePage(messages.ListRequest{Limit: ptr(3), AfterID: all[5].ID}))
		r.NoError(err)
		r.Equal([]string{all[6].ID, all[7].ID, all[8].ID}, ids(got))

		got, err = repo.List(ctx, "g1", messages.NormalizePage(messages.ListRequest{AfterID: all[9].ID}))
		r.NoError(err)
		r.Empty(got)
	})

	t.Run("should prefer beforeId when both cursors are given", func(t *testing.T) {
		r := require.New(t)

		got, err := repo.List(ctx, "g1", messages.NormalizePage(messages.ListRequest{
			Limit: ptr(2), BeforeID: all[5].ID, AfterID: all[1].ID,
		}))
		r.NoError(err)
		r.Equal([]string{all[4].ID, all[3].ID}, ids(got))
	})

	t.Run("should walk the whole history without gaps or repeats", func(t *testing.T) {
		r := require.New(t)

		seen := []string{}
		page := messages.NormalizePage(messages.ListRequest{Limit: ptr(4)})
		for {
			got, err := repo.List(ctx, "g1", page)
			r.NoError(err)
			if len(got) == 0 {
				break
			}
			seen = append(seen, ids(got)...)
			page = messages.NormalizePage(messages.ListRequest{Limit: ptr(4), BeforeID: got[len(got)-1].ID})
		}

		want := make([]string, 0, len(all))
		for i := len(all) - 1; i >= 0; i-- {
			want = append(want, all[i].ID)
		}
		r.Equal(want, seen)
	})

	t.Run("should reject unknown or foreign cursors", func(t *testing.T) {
		r := require.New(t)

		_, err := repo.List(ctx, "g1", messages.NormalizePage(messages.ListRequest{BeforeID: "nope"}))
		r.ErrorIs(err, messages.ErrCursorNotFound)
		r.ErrorIs(err, errs.ErrNotFound)

		_, err = repo.List(ctx, "g2", messages.NormalizePage(messages.ListRequest{AfterID: all[0].ID}))
		r.ErrorIs(err, messages.ErrCursorNotFound)
	})
}

func TestRepo_MarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("should count only new receipts", func(t *testing.T) {
		r := require.New(t)
		db, repo := setup(t)
		m1 := sendText(t, repo, "g1", "one")
		m2 := sendText(t, repo, "g1", "two")

		n, err := repo.MarkRead(ctx, "g1", "bob", []string{m1.ID, m2.ID, m1.ID})
		r.NoError(err)
		r.Equal(2, n)

		n, err = repo.MarkRead(ctx, "g1", "bob", []string{m1.ID, m2.ID})
		r.NoError(err)
		r.Zero(n)
		r.Equal(2, count(t, db, "message_reads"))

		n, err = repo.MarkRead(ctx, "g1", "alice", []string{m2.ID})
		r.NoError(err)
		r.Equal(1, n)
	})

	t.Run("should write nothing when any id is invalid", func(t *testing.T) {
		r := require.New(t)
		db, repo := setup(t)
		m1 := sendText(t, repo, "g1", "one")
		other := sendText(t, repo, "g2", "two")

		_, err := repo.MarkRead(ctx, "g1", "bob", []string{m1.ID, "ghost", other.ID})
		r.ErrorIs(err, errs.ErrValidation)

		var invalid *messages.InvalidMessageIDsError
		r.ErrorAs(err, &invalid)
		r.Equal([]string{"ghost", other.ID}, invalid.IDs)
		r.Zero(count(t, db, "message_reads"))
	})

	t.Run("should reject an empty list", func(t *testing.T) {
		r := require.New(t)
		_, repo := setup(t)

		_, err := repo.MarkRead(ctx, "g1", "bob", nil)
		r.ErrorIs(err, messages.ErrMessageIDsRequired)
	})

	t.Run("should insert each receipt once under concurrent calls", func(t *testing.T) {
		r := require.New(t)
		db, repo := setup(t)
		m1 := sendText(t, repo, "g1", "one")

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			total int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := repo.MarkRead(ctx, "g1", "bob", []string{m1.ID})
				if err != nil {
					return
				}
				mu.Lock()
				total += n
				mu.Unlock()
			}()
		}
		wg.Wait()

		r.Equal(1, total)
		r.Equal(1, count(t, db, "message_reads"))
	})
}
