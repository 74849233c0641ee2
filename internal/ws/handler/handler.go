package wshandler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/kgellert/hodatay-groupchat/internal/auth"
	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
	"github.com/kgellert/hodatay-groupchat/internal/risk"
	"github.com/kgellert/hodatay-groupchat/internal/transport/httpapi"
	"github.com/kgellert/hodatay-groupchat/internal/ws"
	"github.com/kgellert/hodatay-groupchat/internal/ws/hub"
)

type Service interface {
	Authorize(ctx context.Context, actorID, groupID string) error
	Send(ctx context.Context, actorID, groupID string, req messages.SendRequest) (messages.Message, error)
	MarkRead(ctx context.Context, actorID, groupID string, messageIDs []string) (int, error)
	Typing(ctx context.Context, actorID, groupID, connID string, isTyping bool) error
	StartLiveLocation(ctx context.Context, actorID, groupID string, loc *messages.Location) (messages.Message, error)
	UpdateLiveLocation(ctx context.Context, actorID, groupID string, loc *messages.Location) (messages.Message, bool, error)
	StopLiveLocation(ctx context.Context, actorID, groupID string) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	hub     *hub.Hub
	service Service
	buffer  int
	log     *slog.Logger
}

func New(h *hub.Hub, service Service, buffer int, log *slog.Logger) *Handler {
	return &Handler{hub: h, service: service, buffer: buffer, log: log}
}

// ServeWS upgrades the request and serves one client until it disconnects.
// The optional groupId and region query parameters are joined before the
// first command is read.
func (h *Handler) ServeWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ws.ServeWS"

		ctx := r.Context()
		userID := auth.UserID(ctx)

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(ctx)),
			slog.String("user_id", userID),
		)

		groupID := strings.TrimSpace(r.URL.Query().Get("groupId"))
		region := strings.TrimSpace(r.URL.Query().Get("region"))

		if groupID != "" {
			if err := h.service.Authorize(ctx, userID, groupID); err != nil {
				log.Warn("connect rejected", sl.Err(err))
				httpapi.WriteError(w, r, err)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade error", sl.Err(err))
			return
		}

		c := hub.NewConnection(conn, userID, h.buffer)
		if err := h.hub.Register(ctx, c); err != nil {
			log.Error("failed to register connection", sl.Err(err))
			_ = conn.Close()
			return
		}
		go c.WritePump()

		defer func() {
			if err := h.hub.Unregister(context.WithoutCancel(ctx), c); err != nil {
				log.Debug("unregister after hub stop", sl.Err(err))
			}
		}()

		log = log.With(slog.String("conn_id", c.ID()))
		log.Debug("ws connected")

		if groupID != "" {
			h.reply(ctx, c, "", h.joinGroup(ctx, c, groupID))
		}
		if region != "" {
			h.reply(ctx, c, "", h.joinRegion(ctx, c, region))
		}

		err = c.ReadPump(func(data []byte) {
			var cmd ws.ClientCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				h.reply(ctx, c, "", fmt.Errorf("%w: malformed frame", messages.ErrInvalidRequest))
				return
			}
			h.reply(ctx, c, cmd.Ref, h.dispatch(ctx, c, cmd))
		})
		if err != nil {
			log.Debug("ws read stopped", sl.Err(err))
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, c *hub.Connection, cmd ws.ClientCommand) error {
	userID := c.UserID()
	groupID := strings.TrimSpace(cmd.GroupID)

	switch cmd.Type {
	case ws.CmdJoinRegion:
		return h.joinRegion(ctx, c, cmd.Region)
	case ws.CmdJoin, ws.CmdLeave, ws.CmdTyping, ws.CmdSendMessage, ws.CmdMarkRead,
		ws.CmdLiveLocationStart, ws.CmdLiveLocationUpdate, ws.CmdLiveLocationStop:
	default:
		return ws.ErrUnknownCommand
	}

	if groupID == "" {
		return ws.ErrGroupRequired
	}

	switch cmd.Type {
	case ws.CmdJoin:
		return h.joinGroup(ctx, c, groupID)

	case ws.CmdLeave:
		room := ws.GroupRoom(groupID)
		if err := h.hub.Leave(ctx, c, room); err != nil {
			return err
		}
		return h.hub.Reply(ctx, c, ws.EventLeft, ws.RoomPayload{Room: room, GroupID: groupID})

	case ws.CmdTyping:
		return h.service.Typing(ctx, userID, groupID, c.ID(), cmd.IsTyping)

	case ws.CmdSendMessage:
		if cmd.Message == nil {
			return fmt.Errorf("%w: message is required", messages.ErrInvalidRequest)
		}
		_, err := h.service.Send(ctx, userID, groupID, *cmd.Message)
		return err

	case ws.CmdLiveLocationStart:
		_, err := h.service.StartLiveLocation(ctx, userID, groupID, cmd.Location)
		return err

	case ws.CmdLiveLocationUpdate:
		_, _, err := h.service.UpdateLiveLocation(ctx, userID, groupID, cmd.Location)
		return err

	case ws.CmdLiveLocationStop:
		return h.service.StopLiveLocation(ctx, userID, groupID)

	case ws.CmdMarkRead:
		_, err := h.service.MarkRead(ctx, userID, groupID, cmd.MessageIDs)
		return err
	}

	return nil
}

func (h *Handler) joinGroup(ctx context.Context, c *hub.Connection, groupID string) error {
	if err := h.service.Authorize(ctx, c.UserID(), groupID); err != nil {
		return err
	}

	room := ws.GroupRoom(groupID)
	if err := h.hub.Join(ctx, c, room); err != nil {
		return err
	}
	return h.hub.Reply(ctx, c, ws.EventJoined, ws.RoomPayload{Room: room, GroupID: groupID})
}

// joinRegion subscribes c to risk updates of region. Regions are public.
func (h *Handler) joinRegion(ctx context.Context, c *hub.Connection, region string) error {
	region = strings.TrimSpace(region)
	if region == "" {
		return risk.ErrRegionRequired
	}

	room := ws.RegionRoom(region)
	if err := h.hub.Join(ctx, c, room); err != nil {
		return err
	}
	return h.hub.Reply(ctx, c, ws.EventJoined, ws.RoomPayload{Room: room, Region: region})
}

// reply reports err to the client that caused it. A nil err sends nothing.
func (h *Handler) reply(ctx context.Context, c *hub.Connection, ref string, err error) {
	if err == nil {
		return
	}

	status, code, msg := httpapi.MapError(err)
	if status == http.StatusInternalServerError {
		h.log.Error("ws command failed", slog.String("conn_id", c.ID()), sl.Err(err))
	}

	payload := ws.ErrorPayload{Code: code, Message: msg, Ref: ref}
	if err := h.hub.Reply(ctx, c, ws.EventError, payload); err != nil {
		h.log.Debug("failed to reply", slog.String("conn_id", c.ID()), sl.Err(err))
	}
}
