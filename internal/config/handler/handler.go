package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/hodatay-groupchat/internal/config"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
)

// clientConfig is the part of the configuration clients need to shape
// requests. Secrets never leave the server.
type clientConfig struct {
	MaxAttachments            int  `json:"max_attachments"`
	MaxTextLength             int  `json:"max_text_length"`
	DefaultPageLimit          int  `json:"default_page_limit"`
	MaxPageLimit              int  `json:"max_page_limit"`
	LiveLocationWindowSeconds int  `json:"live_location_window_seconds"`
	UploadsEnabled            bool `json:"uploads_enabled"`
}

type appConfigResponse struct {
	Config clientConfig `json:"config"`
}

type Handler struct {
	config clientConfig
	log    *slog.Logger
}

func New(cfg *config.Config, log *slog.Logger) *Handler {
	return &Handler{
		config: clientConfig{
			MaxAttachments:            cfg.Messages.MaxAttachments,
			MaxTextLength:             messages.MaxTextLength,
			DefaultPageLimit:          messages.DefaultPageLimit,
			MaxPageLimit:              messages.MaxPageLimit,
			LiveLocationWindowSeconds: int(cfg.Messages.LiveLocationWindow.Seconds()),
			UploadsEnabled:            cfg.S3.Bucket != "",
		},
		log: log,
	}
}

func (h *Handler) GetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.config.GetConfig"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		log.Debug("config requested")

		render.JSON(w, r, appConfigResponse{Config: h.config})
	}
}
