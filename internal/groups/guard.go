package groups

import (
	"context"
	"fmt"
)

type Guard struct {
	repo Repo
}

func NewGuard(repo Repo) *Guard {
	return &Guard{repo: repo}
}

// AssertMember resolves the group and the caller and fails unless the caller
// owns the group or belongs to it.
func (g *Guard) AssertMember(ctx context.Context, actorID, groupID string) (Membership, error) {
	const op = "groups.Guard.AssertMember"

	group, err := g.repo.GetGroup(ctx, groupID)
	if err != nil {
		return Membership{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := g.repo.GetUser(ctx, actorID)
	if err != nil {
		return Membership{}, fmt.Errorf("%s: %w", op, err)
	}

	if !group.HasParticipant(user.Sub) {
		return Membership{}, ErrNotMember
	}

	return Membership{Group: group, User: user}, nil
}
