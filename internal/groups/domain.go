package groups

import (
	"context"
	"slices"
)

type User struct {
	Sub      string  `json:"sub" db:"sub"`
	Email    string  `json:"email" db:"email"`
	Username *string `json:"username,omitempty" db:"username"`
}

type Group struct {
	ID        string   `json:"id" db:"id"`
	Name      string   `json:"name" db:"name"`
	OwnerID   string   `json:"owner_id" db:"owner_sub"`
	MemberIDs []string `json:"member_ids"`
}

// HasParticipant reports whether userID owns the group or is one of its members.
func (g Group) HasParticipant(userID string) bool {
	return g.OwnerID == userID || slices.Contains(g.MemberIDs, userID)
}

// Membership is what the guard hands back once access is confirmed.
type Membership struct {
	Group Group
	User  User
}

type Repo interface {
	GetGroup(ctx context.Context, groupID string) (Group, error)
	GetUser(ctx context.Context, sub string) (User, error)
}
