package groupsrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kgellert/hodatay-groupchat/internal/groups"
)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetUser(ctx context.Context, sub string) (groups.User, error) {
	const op = "storage.groups.GetUser"

	var user groups.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(`SELECT sub, email, username FROM users WHERE sub = ?`), sub)
	if errors.Is(err, sql.ErrNoRows) {
		return groups.User{}, groups.ErrUserNotFound
	}
	if err != nil {
		return groups.User{}, fmt.Errorf("%s: select user: %w", op, err)
	}

	return user, nil
}

func (r *Repo) GetGroup(ctx context.Context, groupID string) (groups.Group, error) {
	const op = "storage.groups.GetGroup"

	var group groups.Group
	err := r.db.GetContext(ctx, &group, r.db.Rebind(`SELECT id, name, owner_sub FROM groups WHERE id = ?`), groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return groups.Group{}, groups.ErrGroupNotFound
	}
	if err != nil {
		return groups.Group{}, fmt.Errorf("%s: select group: %w", op, err)
	}

	group.MemberIDs = []string{}
	err = r.db.SelectContext(
		ctx,
		&group.MemberIDs,
		r.db.Rebind(`SELECT user_sub FROM group_members WHERE group_id = ? ORDER BY user_sub`),
		groupID,
	)
	if err != nil {
		return groups.Group{}, fmt.Errorf("%s: select members: %w", op, err)
	}

	return group, nil
}
