package uploadshandler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/kgellert/hodatay-groupchat/internal/auth"
	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
	"github.com/kgellert/hodatay-groupchat/internal/transport/httpapi"
	"github.com/kgellert/hodatay-groupchat/internal/uploads"
)

func (h *UploadsHandler) PresignUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.PresignUpload"

		log := h.logger(r, op)

		var req presignUploadRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, fmt.Errorf("%w: malformed json body", messages.ErrInvalidRequest))
			return
		}

		if req.ContentType == "" {
			httpapi.WriteError(w, r, uploads.ErrContentTypeIsRequired)
			return
		}

		if _, ok := uploads.ExtForContentType(req.ContentType); !ok {
			log.Warn("invalid content type", slog.String("content_type", req.ContentType))
			httpapi.WriteError(w, r, uploads.ErrInvalidContentType)
			return
		}

		presigned, err := h.presigner.PresignUpload(r.Context(), auth.UserID(r.Context()), req.ContentType, req.Filename)
		if err != nil {
			log.Error("failed to presign upload", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, presigned)
	}
}
