/**
 * @description
 * Core business logic for overdue billing and collections. The Service is the
 * only entry point for commands and queries; it holds no state of its own
 * beyond the injected store and collaborators.
 */
package app

import (
	"context"
	"time"

	"github.com/transfa/collections-service/internal/domain"
	"github.com/transfa/collections-service/internal/store"
	"go.uber.org/zap"
)

const eventsExchange = "collections.events"

// DocumentProvider generates the payment document and payment link of a charge.
type DocumentProvider interface {
	Generate(ctx context.Context, charge domain.Charge) (documentRef, paymentLinkRef string, err error)
}

// Notifier delivers a charge notification to a client over a channel.
type Notifier interface {
	Notify(ctx context.Context, charge domain.Charge, client domain.Client, channel domain.Channel) error
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// StatisticsCache stores computed statistics. Get returns nil on a miss along
// with the cache generation; Set stores only while that generation is current,
// and Invalidate moves to a new one.
type StatisticsCache interface {
	Get(ctx context.Context) (*domain.Statistics, int64, error)
	Set(ctx context.Context, generation int64, stats domain.Statistics) (bool, error)
	Invalidate(ctx context.Context) error
}

// Service provides the business logic for collections.
type Service struct {
	store     store.Store
	docs      DocumentProvider
	notifier  Notifier
	publisher EventPublisher
	cache     StatisticsCache
	logger    *zap.Logger

	policy         domain.EscalationPolicy
	autoEscalate   bool
	defaultChannel domain.Channel
	notifyTimeout  time.Duration
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the business timezone used for overdue ages.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.policy.Location = loc
		}
	}
}

// WithEscalationThreshold overrides the overdue age that triggers a block.
func WithEscalationThreshold(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.policy.ThresholdDays = days
		}
	}
}

// WithAutoEscalation toggles escalation after every mutating command.
func WithAutoEscalation(enabled bool) Option {
	return func(s *Service) { s.autoEscalate = enabled }
}

// WithDefaultChannel sets the channel used when a command does not name one.
func WithDefaultChannel(ch domain.Channel) Option {
	return func(s *Service) {
		if ch != "" {
			s.defaultChannel = ch
		}
	}
}

// WithNotifyTimeout bounds each notification dispatch.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithStatisticsCache enables statistics caching.
func WithStatisticsCache(cache StatisticsCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new collections service. docs, notifier and publisher
// may be nil; the corresponding side effects are then skipped.
func NewService(st store.Store, docs DocumentProvider, notifier Notifier, publisher EventPublisher, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:          st,
		docs:           docs,
		notifier:       notifier,
		publisher:      publisher,
		logger:         logger,
		policy:         domain.NewEscalationPolicy(time.UTC),
		autoEscalate:   true,
		defaultChannel: domain.ChannelBoth,
		notifyTimeout:  10 * time.Second,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the escalation policy in effect.
func (s *Service) Policy() domain.EscalationPolicy {
	return s.policy
}

type collectionsEvent struct {
	ChargeID  string    `json:"charge_id,omitempty"`
	ClientID  string    `json:"client_id"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount,omitempty"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func chargeEvent(c domain.Charge, actor string) collectionsEvent {
	return collectionsEvent{
		ChargeID: c.ID,
		ClientID: c.ClientID,
		Status:   string(c.Status),
		Amount:   c.Amount.StringFixed(2),
		Actor:    actor,
	}
}

func clientEvent(c domain.Client, actor, reason string) collectionsEvent {
	return collectionsEvent{
		ClientID: c.ID,
		Status:   string(c.Status),
		Actor:    actor,
		Reason:   reason,
	}
}

// afterCommit runs the side effects of a committed mutation: the statistics
// cache is dropped and the lifecycle event is published. Neither can fail the
// command.
func (s *Service) afterCommit(ctx context.Context, routingKey string, event collectionsEvent) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
		}
	}
	if s.publisher == nil {
		return
	}
	event.Timestamp = s.now()
	if err := s.publisher.Publish(ctx, eventsExchange, routingKey, event); err != nil {
		s.logger.Warn("failed to publish collections event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
