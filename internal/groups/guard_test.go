package groups_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kgellert/hodatay-groupchat/internal/errs"
	"github.com/kgellert/hodatay-groupchat/internal/groups"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	groups map[string]groups.Group
	users  map[string]groups.User
	err    error
}

func (f *fakeRepo) GetGroup(_ context.Context, groupID string) (groups.Group, error) {
	if f.err != nil {
		return groups.Group{}, f.err
	}
	g, ok := f.groups[groupID]
	if !ok {
		return groups.Group{}, groups.ErrGroupNotFound
	}
	return g, nil
}

func (f *fakeRepo) GetUser(_ context.Context, sub string) (groups.User, error) {
	u, ok := f.users[sub]
	if !ok {
		return groups.User{}, groups.ErrUserNotFound
	}
	return u, nil
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		groups: map[string]groups.Group{
			"g1": {ID: "g1", Name: "Family", OwnerID: "owner", MemberIDs: []string{"alice"}},
		},
		users: map[string]groups.User{
			"owner":    {Sub: "owner"},
			"alice":    {Sub: "alice"},
			"stranger": {Sub: "stranger"},
		},
	}
}

func TestGuard_AssertMember(t *testing.T) {
	t.Run("should admit owner and members", func(t *testing.T) {
		r := require.New(t)
		guard := groups.NewGuard(newFakeRepo())

		m, err := guard.AssertMember(context.Background(), "owner", "g1")
		r.NoError(err)
		r.Equal("g1", m.Group.ID)
		r.Equal("owner", m.User.Sub)

		m, err = guard.AssertMember(context.Background(), "alice", "g1")
		r.NoError(err)
		r.Equal("alice", m.User.Sub)
	})

	t.Run("should reject a user outside the group", func(t *testing.T) {
		r := require.New(t)
		guard := groups.NewGuard(newFakeRepo())

		_, err := guard.AssertMember(context.Background(), "stranger", "g1")
		r.ErrorIs(err, groups.ErrNotMember)
		r.ErrorIs(err, errs.ErrForbidden)
	})

	t.Run("should report a missing group", func(t *testing.T) {
		r := require.New(t)
		guard := groups.NewGuard(newFakeRepo())

		_, err := guard.AssertMember(context.Background(), "alice", "nope")
		r.ErrorIs(err, groups.ErrGroupNotFound)
		r.ErrorIs(err, errs.ErrNotFound)
	})

	t.Run("should report a missing user", func(t *testing.T) {
		r := require.New(t)
		guard := groups.NewGuard(newFakeRepo())

		_, err := guard.AssertMember(context.Background(), "ghost", "g1")
		r.ErrorIs(err, groups.ErrUserNotFound)
		r.ErrorIs(err, errs.ErrNotFound)
	})

	t.Run("should pass storage failures through", func(t *testing.T) {
		r := require.New(t)
		repo := newFakeRepo()
		repo.err = errors.New("connection reset")
		guard := groups.NewGuard(repo)

		_, err := guard.AssertMember(context.Background(), "alice", "g1")
		r.Error(err)
		r.NotErrorIs(err, errs.ErrNotFound)
		r.NotErrorIs(err, errs.ErrForbidden)
	})
}
