package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/hodatay-groupchat/internal/auth"
	response "github.com/kgellert/hodatay-groupchat/internal/lib"
	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
	"github.com/kgellert/hodatay-groupchat/internal/transport/httpapi"
)

type Service interface {
	Send(ctx context.Context, actorID, groupID string, req messages.SendRequest) (messages.Message, error)
	List(ctx context.Context, actorID, groupID string, req messages.ListRequest) ([]messages.Message, error)
	MarkRead(ctx context.Context, actorID, groupID string, messageIDs []string) (int, error)
	Edit(ctx context.Context, actorID, messageID, text string) (messages.Message, error)
	Delete(ctx context.Context, actorID, messageID string) error
	StartLiveLocation(ctx context.Context, actorID, groupID string, loc *messages.Location) (messages.Message, error)
	UpdateLiveLocation(ctx context.Context, actorID, groupID string, loc *messages.Location) (messages.Message, bool, error)
	StopLiveLocation(ctx context.Context, actorID, groupID string) error
}

type Handler struct {
	service Service
	log     *slog.Logger
}

func New(service Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Routes mounts the message endpoints on r. r is expected to run behind the
// auth middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/groups/{groupId}", func(r chi.Router) {
		r.Post("/messages", h.SendMessage())
		r.Get("/messages", h.GetMessages())
		r.Post("/messages/read", h.MarkRead())
		r.Post("/live-location/start", h.StartLiveLocation())
		r.Post("/live-location", h.UpdateLiveLocation())
		r.Post("/live-location/stop", h.StopLiveLocation())
	})
	r.Patch("/messages/{messageId}", h.EditMessage())
	r.Delete("/messages/{messageId}", h.DeleteMessage())
}

func (h *Handler) GetMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.GetMessages"

		log := h.logger(r, op)

		req, err := listRequest(r)
		if err != nil {
			log.Warn("invalid query", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		msgs, err := h.service.List(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "groupId"), req)
		if err != nil {
			log.Error("failed to get messages", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		resp := messages.GetMessagesResponse{Messages: msgs}
		if n := len(msgs); n > 0 && n == messages.NormalizePage(req).Limit {
			resp.NextCursor = msgs[n-1].ID
		}

		render.JSON(w, r, resp)
	}
}

func (h *Handler) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.SendMessage"

		log := h.logger(r, op)

		var req messages.SendRequest
		if err := decode(r, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		msg, err := h.service.Send(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "groupId"), req)
		if err != nil {
			log.Error("failed to send message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, messages.CreateMessageResponse{Message: msg})
	}
}

func (h *Handler) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.MarkRead"

		log := h.logger(r, op)

		var req messages.MarkReadRequest
		if err := decode(r, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		count, err := h.service.MarkRead(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "groupId"), req.MessageIDs)
		if err != nil {
			log.Error("failed to mark messages read", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, messages.MarkReadResponse{Count: count})
	}
}

func (h *Handler) EditMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.EditMessage"

		log := h.logger(r, op)

		var req messages.EditMessageRequest
		if err := decode(r, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		msg, err := h.service.Edit(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "messageId"), req.Text)
		if err != nil {
			log.Error("failed to edit message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, messages.CreateMessageResponse{Message: msg})
	}
}

func (h *Handler) DeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.DeleteMessage"

		log := h.logger(r, op)

		if err := h.service.Delete(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "messageId")); err != nil {
			log.Error("failed to delete message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, response.SuccessResponse{Success: true})
	}
}

func (h *Handler) StartLiveLocation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.StartLiveLocation"

		log := h.logger(r, op)

		var req messages.LiveLocationRequest
		if err := decode(r, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		msg, err := h.service.StartLiveLocation(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "groupId"), req.Location)
		if err != nil {
			log.Error("failed to start live location", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, messages.CreateMessageResponse{Message: msg})
	}
}

func (h *Handler) UpdateLiveLocation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.UpdateLiveLocation"

		log := h.logger(r, op)

		var req messages.LiveLocationRequest
		if err := decode(r, &req); err != nil {
			log.Warn("failed to decode request", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		msg, accepted, err := h.service.UpdateLiveLocation(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "groupId"), req.Location)
		if err != nil {
			log.Error("failed to update live location", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		resp := messages.LiveLocationResponse{Accepted: accepted}
		if accepted {
			resp.Message = &msg
		} else {
			log.Debug("live location update throttled")
		}

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, resp)
	}
}

func (h *Handler) StopLiveLocation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.StopLiveLocation"

		log := h.logger(r, op)

		if err := h.service.StopLiveLocation(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "groupId")); err != nil {
			log.Error("failed to stop live location", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.NoContent(w, r)
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: malformed json body", messages.ErrInvalidRequest)
	}
	return nil
}

func listRequest(r *http.Request) (messages.ListRequest, error) {
	q := r.URL.Query()

	req := messages.ListRequest{
		BeforeID: q.Get("beforeId"),
		AfterID:  q.Get("afterId"),
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return messages.ListRequest{}, fmt.Errorf("%w: limit must be an integer", messages.ErrInvalidRequest)
		}
		req.Limit = &limit
	}

	return req, nil
}
