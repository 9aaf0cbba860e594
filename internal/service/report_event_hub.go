package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/observability"
)

const reportEventBufferSize = 16

// EventPublisher delivers report events to interested subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event dto.ReportEvent)
}

// ReportEventHub fans report events out to connected clients on every node.
type ReportEventHub interface {
	EventPublisher
	Subscribe(user models.User) (<-chan dto.ReportEvent, func())
	Start(ctx context.Context)
}

// RecipientUser addresses a single account.
func RecipientUser(id uint) string {
	if id == 0 {
		return ""
	}
	return "user:" + strconv.FormatUint(uint64(id), 10)
}

// RecipientStaff addresses the staff member with the given staff id.
func RecipientStaff(staffID string) string {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return ""
	}
	return "staff:" + staffID
}

// RecipientRole addresses every connected user with the role.
func RecipientRole(role models.Role) string {
	return "role:" + role.String()
}

// subscriptionKeys lists every address a connected user listens on.
func subscriptionKeys(user models.User) []string {
	keys := []string{RecipientUser(user.ID), RecipientRole(user.Role)}
	if user.Role == models.RoleStaff {
		if key := RecipientStaff(user.StaffID); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

type reportEventEnvelope struct {
	Source     string          `json:"source"`
	Recipients []string        `json:"recipients"`
	Event      dto.ReportEvent `json:"event"`
	SentAt     time.Time       `json:"sent_at"`
}

type reportEventHub struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	broker       *reportEventBroker
	nodeID       string
}

type reportEventBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.ReportEvent]struct{}
}

// NewReportEventHub constructs the hub. Redis and NATS are optional; without them events
// only reach clients connected to this node.
func NewReportEventHub(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ReportEventHub {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":report-events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".report-events"
	}

	return &reportEventHub{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "report_event_hub").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/campusfix-api/internal/service/realtime"),
		broker: &reportEventBroker{
			subscribers: make(map[string]map[chan dto.ReportEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (h *reportEventHub) Start(ctx context.Context) {
	if h.redis != nil && h.redisChannel != "" {
		go h.consumeRedis(ctx)
	}
	if h.nats != nil && h.natsSubject != "" {
		go h.consumeNATS(ctx)
	}
}

func (h *reportEventHub) Publish(ctx context.Context, event dto.ReportEvent) {
	recipients := compactRecipients(event.Recipients)
	if len(recipients) == 0 {
		return
	}

	ctx, span := h.tracer.Start(ctx, "realtime.publish", trace.WithAttributes(
		attribute.String("event.type", event.Type),
		attribute.Int("event.report_id", int(event.ReportID)),
	))
	defer span.End()

	h.broker.broadcast(recipients, event)
	if err := h.forward(ctx, reportEventEnvelope{
		Source:     h.nodeID,
		Recipients: recipients,
		Event:      event,
		SentAt:     time.Now().UTC(),
	}); err != nil {
		span.RecordError(err)
		h.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to forward report event")
	}
}

func (h *reportEventHub) Subscribe(user models.User) (<-chan dto.ReportEvent, func()) {
	channel := make(chan dto.ReportEvent, reportEventBufferSize)
	keys := subscriptionKeys(user)

	h.broker.subscribe(keys, channel)
	observability.RealtimeClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.broker.unsubscribe(keys, channel)
			observability.RealtimeClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (h *reportEventHub) forward(ctx context.Context, envelope reportEventEnvelope) error {
	if (h.redis == nil || h.redisChannel == "") && (h.nats == nil || h.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if h.redis != nil && h.redisChannel != "" {
		if err := h.redis.Publish(ctx, h.redisChannel, payload).Err(); err != nil {
			return err
		}
	}
	if h.nats != nil && h.natsSubject != "" {
		if err := h.nats.Publish(h.natsSubject, payload); err != nil {
			return err
		}
	}
	return nil
}

func (h *reportEventHub) consumeRedis(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, h.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			h.logger.Error().Err(err).Msg("report event redis subscription closed")
			return
		}
		h.handleRemote([]byte(msg.Payload))
	}
}

func (h *reportEventHub) consumeNATS(ctx context.Context) {
	sub, err := h.nats.Subscribe(h.natsSubject, func(msg *nats.Msg) {
		h.handleRemote(msg.Data)
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe to nats report events subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to drain report event nats subscription")
		}
	}()
}

// handleRemote delivers events published by other nodes. A node receives its own
// publications back from Redis and NATS, those are skipped by node id.
func (h *reportEventHub) handleRemote(payload []byte) {
	var envelope reportEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		h.logger.Warn().Err(err).Msg("invalid report event payload")
		return
	}
	if envelope.Source == h.nodeID {
		return
	}
	h.broker.broadcast(compactRecipients(envelope.Recipients), envelope.Event)
}

func compactRecipients(recipients []string) []string {
	seen := make(map[string]struct{}, len(recipients))
	out := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient == "" {
			continue
		}
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}
		out = append(out, recipient)
	}
	return out
}

func (b *reportEventBroker) subscribe(keys []string, ch chan dto.ReportEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		if _, exists := b.subscribers[key]; !exists {
			b.subscribers[key] = make(map[chan dto.ReportEvent]struct{})
		}
		b.subscribers[key][ch] = struct{}{}
	}
}

func (b *reportEventBroker) unsubscribe(keys []string, ch chan dto.ReportEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		if subscribers, ok := b.subscribers[key]; ok {
			delete(subscribers, ch)
			if len(subscribers) == 0 {
				delete(b.subscribers, key)
			}
		}
	}
	close(ch)
}

// broadcast sends the event once to every channel listening on any recipient key.
// Slow consumers drop events rather than block the publisher.
func (b *reportEventBroker) broadcast(recipients []string, event dto.ReportEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := make(map[chan dto.ReportEvent]struct{})
	for _, key := range recipients {
		for ch := range b.subscribers[key] {
			if _, done := delivered[ch]; done {
				continue
			}
			delivered[ch] = struct{}{}
			select {
			case ch <- event:
				observability.RealtimeEvents().WithLabelValues(event.Type).Inc()
			default:
			}
		}
	}
}
