package httpapi

import (
	"errors"
	"net/http"

	"github.com/kgellert/hodatay-groupchat/internal/errs"
	"github.com/kgellert/hodatay-groupchat/internal/groups"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
	"github.com/kgellert/hodatay-groupchat/internal/risk"
	"github.com/kgellert/hodatay-groupchat/internal/uploads"
	"github.com/kgellert/hodatay-groupchat/internal/ws"
)

var codes = []struct {
	err  error
	code string
}{
	{messages.ErrTextOrAttachmentsIsRequired, "text_or_attachments_required"},
	{messages.ErrImageAttachmentRequired, "image_attachment_required"},
	{messages.ErrAudioAttachmentRequired, "audio_attachment_required"},
	{messages.ErrInvalidImageMime, "invalid_image_mime"},
	{messages.ErrInvalidAudioMime, "invalid_audio_mime"},
	{messages.ErrLocationRequired, "location_required"},
	{messages.ErrInvalidCoordinates, "invalid_coordinates"},
	{messages.ErrTooManyAttachments, "too_many_attachments"},
	{messages.ErrUnsupportedKind, "unsupported_kind"},
	{messages.ErrEditTextRequired, "text_required"},
	{messages.ErrNotEditable, "not_editable"},
	{messages.ErrMessageIDsRequired, "message_ids_required"},
	{messages.ErrInvalidRequest, "invalid_request"},
	{messages.ErrMessageNotFound, "message_not_found"},
	{messages.ErrCursorNotFound, "cursor_not_found"},
	{messages.ErrNotSender, "not_sender"},
	{groups.ErrGroupNotFound, "group_not_found"},
	{groups.ErrUserNotFound, "user_not_found"},
	{groups.ErrNotMember, "not_a_member"},
	{uploads.ErrObjectNotFound, "attachment_not_found"},
	{uploads.ErrContentTypeIsRequired, "content_type_required"},
	{uploads.ErrInvalidContentType, "invalid_content_type"},
	{uploads.ErrExtensionMismatch, "extension_mismatch"},
	{uploads.ErrInvalidKey, "invalid_key"},
	{ws.ErrUnknownCommand, "unknown_command"},
	{ws.ErrGroupRequired, "group_required"},
	{risk.ErrRegionRequired, "region_required"},
}

// MapError returns the HTTP status, machine readable code and message for err.
// Unclassified errors never leak their text.
func MapError(err error) (status int, code, msg string) {
	status = statusOf(err)
	if status == http.StatusInternalServerError {
		return status, "internal_error", "internal server error"
	}

	var invalid *messages.InvalidMessageIDsError
	if errors.As(err, &invalid) {
		return status, "invalid_message_ids", err.Error()
	}

	for _, c := range codes {
		if !errors.Is(err, c.err) {
			continue
		}
		// these carry request specific detail after the sentinel text
		if c.err == messages.ErrInvalidRequest || c.err == uploads.ErrObjectNotFound {
			return status, c.code, err.Error()
		}
		return status, c.code, c.err.Error()
	}

	switch status {
	case http.StatusBadRequest:
		code = "validation_failed"
	case http.StatusNotFound:
		code = "not_found"
	case http.StatusForbidden:
		code = "forbidden"
	case http.StatusConflict:
		code = "conflict"
	case http.StatusUnauthorized:
		code = "unauthorized"
	}
	return status, code, err.Error()
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
