package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/kgellert/hodatay-groupchat/internal/groups"
	"github.com/kgellert/hodatay-groupchat/internal/lib/logger/sl"
	"github.com/kgellert/hodatay-groupchat/internal/messages"
	"github.com/kgellert/hodatay-groupchat/internal/throttle"
	"github.com/kgellert/hodatay-groupchat/internal/uploads"
	"github.com/kgellert/hodatay-groupchat/internal/ws"
)

const (
	DefaultMaxAttachments     = 10
	DefaultStoreTimeout       = 5 * time.Second
	DefaultLiveLocationWindow = 5 * time.Second
)

type Guard interface {
	AssertMember(ctx context.Context, actorID, groupID string) (groups.Membership, error)
}

type Config struct {
	MaxAttachments     int
	StoreTimeout       time.Duration
	LiveLocationWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttachments <= 0 {
		c.MaxAttachments = DefaultMaxAttachments
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.LiveLocationWindow <= 0 {
		c.LiveLocationWindow = DefaultLiveLocationWindow
	}
	return c
}

// Service runs every message operation as guard, validate, persist and
// then publish. Failures before persisting leave no rows and no events.
type Service struct {
	repo     messages.Repo
	guard    Guard
	resolver uploads.Resolver
	throttle throttle.Throttle
	pub      ws.Publisher
	cfg      Config
	log      *slog.Logger
}

func New(
	repo messages.Repo,
	guard Guard,
	resolver uploads.Resolver,
	throttle throttle.Throttle,
	pub ws.Publisher,
	cfg Config,
	log *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		guard:    guard,
		resolver: resolver,
		throttle: throttle,
		pub:      pub,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// Authorize fails unless actorID may act in groupID.
func (s *Service) Authorize(ctx context.Context, actorID, groupID string) error {
	_, err := s.guard.AssertMember(ctx, actorID, groupID)
	return err
}

func (s *Service) Send(ctx context.Context, actorID, groupID string, req messages.SendRequest) (messages.Message, error) {
	const op = "messages.service.Send"

	if err := s.Authorize(ctx, actorID, groupID); err != nil {
		return messages.Message{}, err
	}

	if err := messages.CheckRequest(req); err != nil {
		return messages.Message{}, err
	}
	if !req.Kind.Valid() {
		return messages.Message{}, messages.ErrUnsupportedKind
	}
	if len(req.Attachments) > s.cfg.MaxAttachments {
		return messages.Message{}, messages.ErrTooManyAttachments
	}

	if len(req.Attachments) > 0 {
		atts, err := s.resolver.Resolve(ctx, req.Attachments)
		if err != nil {
			return messages.Message{}, fmt.Errorf("%s: resolve attachments: %w", op, err)
		}
		req.Attachments = atts
	}

	payload, err := messages.Validate(req)
	if err != nil {
		return messages.Message{}, err
	}

	msg, err := s.create(ctx, groupID, actorID, payload)
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, groupID, ws.EventNewMessage, ws.MessagePayload{Message: msg})

	return msg, nil
}

func (s *Service) List(ctx context.Context, actorID, groupID string, req messages.ListRequest) ([]messages.Message, error) {
	const op = "messages.service.List"

	if err := s.Authorize(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	msgs, err := s.repo.List(ctx, groupID, messages.NormalizePage(req))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return msgs, nil
}

func (s *Service) MarkRead(ctx context.Context, actorID, groupID string, messageIDs []string) (int, error) {
	const op = "messages.service.MarkRead"

	if err := s.Authorize(ctx, actorID, groupID); err != nil {
		return 0, err
	}

	if err := messages.CheckRequest(messages.MarkReadRequest{MessageIDs: messageIDs}); err != nil {
		return 0, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	count, err := s.repo.MarkRead(storeCtx, groupID, actorID, messageIDs)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if count > 0 {
		s.publish(ctx, groupID, ws.EventMessagesRead, ws.MessagesReadPayload{
			UserID:     actorID,
			GroupID:    groupID,
			MessageIDs: lo.Uniq(messageIDs),
			Count:      count,
		})
	}

	return count, nil
}

func (s *Service) Edit(ctx context.Context, actorID, messageID, text string) (messages.Message, error) {
	const op = "messages.service.Edit"

	if err := messages.CheckRequest(messages.EditMessageRequest{Text: text}); err != nil {
		return messages.Message{}, err
	}

	current, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.Authorize(ctx, actorID, current.GroupID); err != nil {
		return messages.Message{}, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	msg, err := s.repo.Edit(storeCtx, messageID, actorID, text)
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, msg.GroupID, ws.EventMessageEdited, ws.MessagePayload{Message: msg})

	return msg, nil
}

func (s *Service) Delete(ctx context.Context, actorID, messageID string) error {
	const op = "messages.service.Delete"

	current, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.Authorize(ctx, actorID, current.GroupID); err != nil {
		return err
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if err := s.repo.Delete(storeCtx, messageID, actorID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, current.GroupID, ws.EventMessageDeleted, ws.MessageDeletedPayload{ID: messageID, GroupID: current.GroupID})

	return nil
}

// Typing tells the other connections in the group that actorID is typing.
func (s *Service) Typing(ctx context.Context, actorID, groupID, connID string, isTyping bool) error {
	const op = "messages.service.Typing"

	if err := s.Authorize(ctx, actorID, groupID); err != nil {
		return err
	}

	payload := ws.TypingPayload{UserID: actorID, GroupID: groupID, IsTyping: isTyping}
	if err := s.pub.PublishExcept(ctx, ws.GroupRoom(groupID), ws.EventTyping, payload, connID); err != nil {
		return fmt.Errorf("%s: publish: %w", op, err)
	}
	return nil
}

// StartLiveLocation stores the first position of a live share.
func (s *Service) StartLiveLocation(ctx context.Context, actorID, groupID string, loc *messages.Location) (messages.Message, error) {
	const op = "messages.service.StartLiveLocation"

	if err := s.Authorize(ctx, actorID, groupID); err != nil {
		return messages.Message{}, err
	}

	valid, err := messages.ValidateLocation(loc)
	if err != nil {
		return messages.Message{}, err
	}

	msg, err := s.create(ctx, groupID, actorID, messages.LocationPayload{Location: valid})
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, groupID, ws.EventLiveLocationStarted, ws.MessagePayload{Message: msg})

	return msg, nil
}

// UpdateLiveLocation stores and broadcasts a position unless the actor already
// had one accepted within the window. Dropped updates return ok=false and no
// error.
func (s *Service) UpdateLiveLocation(ctx context.Context, actorID, groupID string, loc *messages.Location) (messages.Message, bool, error) {
	const op = "messages.service.UpdateLiveLocation"

	if err := s.Authorize(ctx, actorID, groupID); err != nil {
		return messages.Message{}, false, err
	}

	valid, err := messages.ValidateLocation(loc)
	if err != nil {
		return messages.Message{}, false, err
	}

	accepted, err := s.throttle.Accept(ctx, actorID, s.cfg.LiveLocationWindow)
	if err != nil {
		return messages.Message{}, false, fmt.Errorf("%s: throttle: %w", op, err)
	}
	if !accepted {
		return messages.Message{}, false, nil
	}

	msg, err := s.create(ctx, groupID, actorID, messages.LocationPayload{Location: valid})
	if err != nil {
		return messages.Message{}, false, fmt.Errorf("%s: %w", op, err)
	}

	s.publish(ctx, groupID, ws.EventNewMessage, ws.MessagePayload{Message: msg})

	return msg, true, nil
}

func (s *Service) StopLiveLocation(ctx context.Context, actorID, groupID string) error {
	const op = "messages.service.StopLiveLocation"

	if err := s.Authorize(ctx, actorID, groupID); err != nil {
		return err
	}

	payload := ws.LiveLocationStoppedPayload{UserID: actorID, GroupID: groupID}
	if err := s.pub.Publish(ctx, ws.GroupRoom(groupID), ws.EventLiveLocationStopped, payload); err != nil {
		return fmt.Errorf("%s: publish: %w", op, err)
	}
	return nil
}

func (s *Service) create(ctx context.Context, groupID, actorID string, payload messages.Payload) (messages.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	return s.repo.Create(ctx, groupID, actorID, payload)
}

// publish is fire and forget: the message is already stored, so a failed
// broadcast is only logged.
func (s *Service) publish(ctx context.Context, groupID, event string, payload any) {
	err := s.pub.Publish(context.WithoutCancel(ctx), ws.GroupRoom(groupID), event, payload)
	if err != nil {
		s.log.Warn("failed to publish event",
			slog.String("event", event),
			slog.String("group_id", groupID),
			sl.Err(err),
		)
	}
}
