package groups

import (
	"fmt"

	"github.com/kgellert/hodatay-groupchat/internal/errs"
)

var (
	ErrGroupNotFound = fmt.Errorf("%w: group not found", errs.ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("%w: user not found", errs.ErrNotFound)
	ErrNotMember     = fmt.Errorf("%w: not a member of this group", errs.ErrForbidden)
)
