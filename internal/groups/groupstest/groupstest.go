// Package groupstest seeds the externally owned users and groups tables for
// tests. This service only reads them.
package groupstest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/hodatay-groupchat/internal/groups"
)

// Users inserts one row per sub with empty profile fields.
func Users(t testing.TB, db *sqlx.DB, subs ...string) {
	t.Helper()

	for _, sub := range subs {
		Profile(t, db, groups.User{Sub: sub})
	}
}

// Profile inserts a user row with its profile fields.
func Profile(t testing.TB, db *sqlx.DB, user groups.User) {
	t.Helper()

	_, err := db.ExecContext(
		context.Background(),
		db.Rebind(`INSERT INTO users (sub, email, username) VALUES (?, ?, ?)`),
		user.Sub, user.Email, user.Username,
	)
	require.NoError(t, err)
}

// Group inserts the group and its member list. Owner and members must exist.
func Group(t testing.TB, db *sqlx.DB, group groups.Group) {
	t.Helper()
	ctx := context.Background()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		tx.Rebind(`INSERT INTO groups (id, name, owner_sub) VALUES (?, ?, ?)`),
		group.ID, group.Name, group.OwnerID,
	)
	require.NoError(t, err)

	query := tx.Rebind(`
	INSERT INTO group_members (group_id, user_sub)
	VALUES (?, ?)
	ON CONFLICT (group_id, user_sub) DO NOTHING`)

	for _, memberID := range group.MemberIDs {
		_, err := tx.ExecContext(ctx, query, group.ID, memberID)
		require.NoError(t, err)
	}

	require.NoError(t, tx.Commit())
}
