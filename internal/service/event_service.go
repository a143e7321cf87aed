package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/models"
	"github.com/noah-isme/promptlab-api/internal/observability"
	"github.com/noah-isme/promptlab-api/internal/repository"
	"github.com/noah-isme/promptlab-api/internal/workflow"
)

const (
	eventBufferSize   = 16
	teachersAudience  = "teachers"
	seenEventCapacity = 512
)

// EventService streams status changes and keeps owner notifications.
type EventService interface {
	TransitionObserver
	Subscribe(actor ActivityActor, transport string) (<-chan dto.StatusChangeEvent, func())
	ListNotifications(ctx context.Context, actor ActivityActor, query dto.NotificationQuery) ([]dto.NotificationResponse, dto.NotificationMeta, error)
	MarkRead(ctx context.Context, actor ActivityActor, id uint) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, actor ActivityActor) (dto.MarkAllReadResponse, error)
	Start(ctx context.Context)
}

// EventServiceConfig wires the event service. Redis and NATS are optional;
// without them events only reach subscribers on this node.
type EventServiceConfig struct {
	Notifications repository.NotificationRepository
	Redis         *redis.Client
	NATS          *nats.Conn
	ChannelBase   string
	RetryMin      time.Duration
	RetryMax      time.Duration
	Logger        zerolog.Logger
}

type eventService struct {
	notifications repository.NotificationRepository
	redis         *redis.Client
	redisChannel  string
	nats          *nats.Conn
	natsSubject   string
	retryMin      time.Duration
	retryMax      time.Duration
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
	broker        *eventBroker
	seen          *seenEvents
	nodeID        string
}

type statusEnvelope struct {
	ID     string                `json:"id"`
	Source string                `json:"source"`
	Event  dto.StatusChangeEvent `json:"event"`
	SentAt time.Time             `json:"sent_at"`
}

type eventBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.StatusChangeEvent]struct{}
}

// NewEventService constructs the status change stream.
func NewEventService(cfg EventServiceConfig) EventService {
	channel := ""
	subject := ""
	if base := strings.TrimSpace(cfg.ChannelBase); base != "" {
		channel = base + ":status"
		subject = strings.ReplaceAll(base, ":", ".") + ".status"
	}
	retryMin := cfg.RetryMin
	if retryMin <= 0 {
		retryMin = time.Second
	}
	retryMax := cfg.RetryMax
	if retryMax < retryMin {
		retryMax = 30 * time.Second
	}

	return &eventService{
		notifications: cfg.Notifications,
		redis:         cfg.Redis,
		redisChannel:  channel,
		nats:          cfg.NATS,
		natsSubject:   subject,
		retryMin:      retryMin,
		retryMax:      retryMax,
		logger:        cfg.Logger.With().Str("component", "event_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/promptlab-api/internal/service/event"),
		sanitizer:     bluemonday.StrictPolicy(),
		broker: &eventBroker{
			subscribers: make(map[string]map[chan dto.StatusChangeEvent]struct{}),
		},
		seen:   newSeenEvents(seenEventCapacity),
		nodeID: uuid.NewString(),
	}
}

func (s *eventService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		s.consumeNATS(ctx)
	}
}

func (s *eventService) OnTransition(ctx context.Context, transition TransitionEvent) error {
	event := dto.StatusChangeEvent{
		ProjectID:  transition.Project.ID,
		OwnerID:    transition.Project.OwnerID,
		Title:      transition.Project.Title,
		Action:     transition.Action,
		OldStatus:  transition.OldStatus,
		NewStatus:  transition.NewStatus,
		ActorID:    transition.Actor.ID,
		OccurredAt: transition.At,
	}

	ctx, span := s.tracer.Start(ctx, "events.publish", trace.WithAttributes(
		attribute.Int64("project.id", int64(event.ProjectID)),
		attribute.String("event.action", string(event.Action)),
	))
	defer span.End()

	envelope := statusEnvelope{
		ID:     uuid.NewString(),
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}
	s.seen.add(envelope.ID)
	s.deliver(event, "local")

	persistErr := s.persistNotification(ctx, transition)
	publishErr := s.publish(ctx, envelope)
	if publishErr != nil {
		span.RecordError(publishErr)
	}
	return errors.Join(persistErr, publishErr)
}

func (s *eventService) Subscribe(actor ActivityActor, transport string) (<-chan dto.StatusChangeEvent, func()) {
	channel := make(chan dto.StatusChangeEvent, eventBufferSize)
	audience := audienceFor(actor)

	s.broker.subscribe(audience, channel)
	observability.StreamClientsActive().WithLabelValues(transport).Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(audience, channel)
			observability.StreamClientsActive().WithLabelValues(transport).Dec()
		})
	}
	return channel, cleanup
}

func (s *eventService) ListNotifications(ctx context.Context, actor ActivityActor, query dto.NotificationQuery) ([]dto.NotificationResponse, dto.NotificationMeta, error) {
	if _, err := actorRole(actor); err != nil {
		return nil, dto.NotificationMeta{}, err
	}
	notifications, err := s.notifications.ListByUser(ctx, actor.ID, repository.NotificationFilter{
		UnreadOnly: query.UnreadOnly,
		Limit:      query.Limit,
		Offset:     query.Offset,
	})
	if err != nil {
		return nil, dto.NotificationMeta{}, err
	}
	unread, err := s.notifications.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, dto.NotificationMeta{}, err
	}
	return dto.NewNotificationResponseSlice(notifications), dto.NotificationMeta{
		UnreadCount: unread,
		Limit:       query.Limit,
		Offset:      query.Offset,
	}, nil
}

func (s *eventService) MarkRead(ctx context.Context, actor ActivityActor, id uint) (dto.NotificationResponse, error) {
	if _, err := actorRole(actor); err != nil {
		return dto.NotificationResponse{}, err
	}
	notification, err := s.notifications.MarkRead(ctx, id, actor.ID)
	if err != nil {
		return dto.NotificationResponse{}, notFoundOr(err, ErrNotificationNotFound)
	}
	return dto.NewNotificationResponse(notification), nil
}

func (s *eventService) MarkAllRead(ctx context.Context, actor ActivityActor) (dto.MarkAllReadResponse, error) {
	if _, err := actorRole(actor); err != nil {
		return dto.MarkAllReadResponse{}, err
	}
	updated, err := s.notifications.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return dto.MarkAllReadResponse{}, err
	}
	s.logger.Debug().Uint("user_id", actor.ID).Int64("updated", updated).Msg("notifications marked read")
	return dto.MarkAllReadResponse{Updated: updated}, nil
}

// persistNotification stores an owner notification for teacher decisions.
func (s *eventService) persistNotification(ctx context.Context, transition TransitionEvent) error {
	if s.notifications == nil || transition.Deleted {
		return nil
	}

	project := transition.Project
	title := strings.TrimSpace(s.sanitizer.Sanitize(project.Title))
	var message string
	switch transition.Action {
	case workflow.ActionApprove:
		message = fmt.Sprintf("'%s' 프로젝트가 승인되었습니다.", title)
	case workflow.ActionReject:
		message = fmt.Sprintf("'%s' 프로젝트가 반려되었습니다.", title)
		if project.RejectionReason != nil {
			message += " 사유: " + strings.TrimSpace(s.sanitizer.Sanitize(*project.RejectionReason))
		}
	case workflow.ActionRequestFeedback:
		message = fmt.Sprintf("'%s' 프로젝트에 선생님의 피드백이 도착했습니다.", title)
	default:
		return nil
	}

	projectID := project.ID
	notification := models.Notification{
		UserID:    project.OwnerID,
		Type:      string(transition.Action),
		ProjectID: &projectID,
		Message:   message,
	}
	if err := s.notifications.Create(ctx, &notification); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

func (s *eventService) deliver(event dto.StatusChangeEvent, source string) {
	observability.StatusEvents().WithLabelValues(source).Inc()
	s.broker.broadcast(userAudience(event.OwnerID), event)
	s.broker.broadcast(teachersAudience, event)
}

func (s *eventService) publish(ctx context.Context, envelope statusEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return fmt.Errorf("redis publish: %w", err)
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
	}
	return nil
}

// consumeRedis keeps a subscription open until ctx ends, resubscribing with
// exponential backoff after failures.
func (s *eventService) consumeRedis(ctx context.Context) {
	delay := s.retryMin
	for {
		subscribed, err := s.receiveRedis(ctx)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			delay = s.retryMin
		}

		s.logger.Warn().Err(err).Dur("retry_in", delay).Msg("status event redis subscription lost")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.retryMax {
			delay = s.retryMax
		}
	}
}

func (s *eventService) receiveRedis(ctx context.Context) (bool, error) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return false, err
	}

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return true, err
		}
		s.handleEnvelope([]byte(msg.Payload), "redis")
	}
}

func (s *eventService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data, "nats")
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats status subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain status nats subscription")
		}
	}()
}

func (s *eventService) handleEnvelope(payload []byte, source string) {
	var envelope statusEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid status event payload")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	// Events published to both transports arrive twice.
	if !s.seen.add(envelope.ID) {
		return
	}
	s.deliver(envelope.Event, source)
}

func audienceFor(actor ActivityActor) string {
	if actor.IsTeacher() {
		return teachersAudience
	}
	return userAudience(actor.ID)
}

func userAudience(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

func (b *eventBroker) subscribe(audience string, ch chan dto.StatusChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[audience]; !exists {
		b.subscribers[audience] = make(map[chan dto.StatusChangeEvent]struct{})
	}
	b.subscribers[audience][ch] = struct{}{}
}

func (b *eventBroker) unsubscribe(audience string, ch chan dto.StatusChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[audience]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, audience)
		}
	}
}

func (b *eventBroker) broadcast(audience string, event dto.StatusChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[audience] {
		select {
		case ch <- event:
		default:
		}
	}
}

// seenEvents remembers the most recent event IDs in insertion order.
type seenEvents struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	limit int
}

func newSeenEvents(limit int) *seenEvents {
	return &seenEvents{ids: make(map[string]struct{}, limit), limit: limit}
}

// add records id and reports whether it was new.
func (s *seenEvents) add(id string) bool {
	if id == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	return true
}
