package uploadshandler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
	"github.com/kgellert/hodatay-groupchat/internal/transport/httpapi"
	"github.com/kgellert/hodatay-groupchat/internal/uploads"
)

func (h *UploadsHandler) PresignDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.PresignDownload"

		log := h.logger(r, op)

		var req presignDownloadRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, fmt.Errorf("%w: malformed json body", messages.ErrInvalidRequest))
			return
		}

		if req.Key == "" {
			httpapi.WriteError(w, r, uploads.ErrInvalidKey)
			return
		}

		url, err := h.presigner.PresignDownload(r.Context(), req.Key)
		if err != nil {
			log.Error("failed to presign download", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, presignDownloadResponse{URL: url})
	}
}
