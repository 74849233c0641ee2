package httpapi

import (
	"errors"
	"net/http"

	response "github.com/kgellert/hodatay-groupchat/internal/lib"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
)

type invalidIDsDetails struct {
	MessageIDs []string `json:"message_ids"`
}

func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := MapError(err)

	var details any
	var invalid *messages.InvalidMessageIDsError
	if errors.As(err, &invalid) {
		details = invalidIDsDetails{MessageIDs: invalid.IDs}
	}

	response.WriteError(w, r, status, code, msg, details)
}
