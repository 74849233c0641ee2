package uploadshandler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kgellert/hodatay-groupchat/internal/uploads"
)

type Presigner interface {
	PresignUpload(ctx context.Context, ownerID, contentType string, filename *string) (uploads.PresignedUpload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

type UploadsHandler struct {
	presigner Presigner
	log       *slog.Logger
}

func New(presigner Presigner, log *slog.Logger) *UploadsHandler {
	return &UploadsHandler{presigner: presigner, log: log}
}

func (h *UploadsHandler) Routes(r chi.Router) {
	r.Post("/uploads/presign", h.PresignUpload())
	r.Post("/uploads/presign-download", h.PresignDownload())
}

func (h *UploadsHandler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}
