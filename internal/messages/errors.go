package messages

import (
	"fmt"
	"strings"

	"github.com/kgellert/hodatay-groupchat/internal/errs"
)

var (
	ErrInvalidRequest              = fmt.Errorf("%w: invalid request", errs.ErrValidation)
	ErrUnsupportedKind             = fmt.Errorf("%w: unsupported message kind", errs.ErrValidation)
	ErrTextOrAttachmentsIsRequired = fmt.Errorf("%w: text message must have text or attachments", errs.ErrValidation)
	ErrImageAttachmentRequired     = fmt.Errorf("%w: image message must include at least one attachment", errs.ErrValidation)
	ErrAudioAttachmentRequired     = fmt.Errorf("%w: audio message must include an attachment", errs.ErrValidation)
	ErrInvalidImageMime            = fmt.Errorf("%w: invalid image mime", errs.ErrValidation)
	ErrInvalidAudioMime            = fmt.Errorf("%w: invalid audio mime", errs.ErrValidation)
	ErrLocationRequired            = fmt.Errorf("%w: location payload missing", errs.ErrValidation)
	ErrInvalidCoordinates          = fmt.Errorf("%w: invalid coordinates", errs.ErrValidation)
	ErrTooManyAttachments          = fmt.Errorf("%w: too many attachments", errs.ErrValidation)
	ErrEditTextRequired            = fmt.Errorf("%w: edited text must not be empty", errs.ErrValidation)
	ErrNotEditable                 = fmt.Errorf("%w: message kind cannot be edited", errs.ErrValidation)
	ErrMessageIDsRequired          = fmt.Errorf("%w: message_ids is required", errs.ErrValidation)

	ErrMessageNotFound = fmt.Errorf("%w: message not found", errs.ErrNotFound)
	ErrCursorNotFound  = fmt.Errorf("%w: cursor message not found", errs.ErrNotFound)

	ErrNotSender = fmt.Errorf("%w: only the sender can change a message", errs.ErrForbidden)
)

// InvalidMessageIDsError lists ids that were not found in the target group.
type InvalidMessageIDsError struct {
	IDs []string
}

func (e *InvalidMessageIDsError) Error() string {
	return "invalid message_ids: " + strings.Join(e.IDs, ", ")
}

func (e *InvalidMessageIDsError) Unwrap() error {
	return errs.ErrValidation
}
