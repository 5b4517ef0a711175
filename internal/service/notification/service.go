package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpraEria/gather/internal/model"
	"github.com/OpraEria/gather/internal/repository"
	"github.com/OpraEria/gather/pkg/logger"
	"github.com/OpraEria/gather/pkg/messaging"
	"github.com/OpraEria/gather/pkg/metrics"
	"github.com/OpraEria/gather/pkg/pushtransport"
)

var (
	// ErrUnauthorized means neither the session nor the request body
	// established an acting user and group.
	ErrUnauthorized = errors.New("no resolvable user and group")
)

// Service owns push subscriptions and fans notifications out to a group
type Service interface {
	Subscribe(ctx context.Context, userID uuid.UUID, credential json.RawMessage) error
	Unsubscribe(ctx context.Context, userID uuid.UUID) error
	Dispatch(ctx context.Context, identity *model.SessionIdentity, req *model.DispatchRequest) (*model.DispatchSummary, error)
}

type service struct {
	subs           repository.SubscriptionRepository
	sender         pushtransport.Sender
	broker         messaging.Broker
	metrics        *metrics.Metrics
	logger         *logger.Logger
	maxConcurrency int
}

func NewService(
	subs repository.SubscriptionRepository,
	sender pushtransport.Sender,
	broker messaging.Broker,
	m *metrics.Metrics,
	logger *logger.Logger,
	maxConcurrency int,
) Service {
	if maxConcurrency <= 0 {
		maxConcurrency = 16
	}
	return &service{
		subs:           subs,
		sender:         sender,
		broker:         broker,
		metrics:        m,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

func (s *service) Subscribe(ctx context.Context, userID uuid.UUID, credential json.RawMessage) error {
	if len(credential) == 0 {
		return fmt.Errorf("credential is required")
	}

	sub := &model.PushSubscription{
		UserID:     userID,
		Credential: credential,
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to persist subscription: %w", err)
	}

	s.metrics.SubscriptionUpserts.Inc()
	return nil
}

func (s *service) Unsubscribe(ctx context.Context, userID uuid.UUID) error {
	if err := s.subs.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	s.metrics.SubscriptionDeletes.Inc()
	return nil
}

// Dispatch notifies every other subscribed member of the actor's group.
// Delivery is best-effort: per-recipient failures are logged and counted,
// never returned. An empty audience is a zero-sent success.
func (s *service) Dispatch(ctx context.Context, identity *model.SessionIdentity, req *model.DispatchRequest) (*model.DispatchSummary, error) {
	timer := prometheus.NewTimer(s.metrics.DispatchDuration)
	defer timer.ObserveDuration()

	actor, err := resolveActor(identity, req)
	if err != nil {
		return nil, err
	}

	subs, err := s.subs.ListForGroupExcluding(ctx, actor.GroupID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group subscriptions: %w", err)
	}

	s.metrics.DispatchAudience.Observe(float64(len(subs)))
	if len(subs) == 0 {
		return &model.DispatchSummary{Sent: 0, Total: 0}, nil
	}

	payload := buildPayload(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	outcomes := s.fanOut(ctx, subs, body)

	summary := &model.DispatchSummary{Total: len(subs)}
	for _, o := range outcomes {
		if o.OK() {
			summary.Sent++
			continue
		}
		s.metrics.DeliveriesFailed.Inc()
		s.logger.Error(o.Err, "push delivery failed", "user_id", o.UserID.String())
	}
	s.metrics.DeliveriesSent.Add(float64(summary.Sent))

	// Mirror the payload onto the broker so in-process delivery workers
	// see the same message the push network carries to devices.
	if err := s.broker.Publish(ctx, messaging.ChannelWorkerEvents, messaging.Message{
		Type:    "push",
		Payload: payload,
	}); err != nil {
		s.logger.Error(err, "failed to publish worker event")
	}

	return summary, nil
}

// resolveActor picks the acting user and group, preferring explicit
// identifiers from the request over the caller's session.
func resolveActor(identity *model.SessionIdentity, req *model.DispatchRequest) (*model.SessionIdentity, error) {
	actor := &model.SessionIdentity{}

	switch {
	case req != nil && req.UserID != nil:
		actor.UserID = *req.UserID
	case identity != nil:
		actor.UserID = identity.UserID
	}

	switch {
	case req != nil && req.GroupID != nil:
		actor.GroupID = *req.GroupID
	case identity != nil:
		actor.GroupID = identity.GroupID
	}

	if actor.UserID == uuid.Nil || actor.GroupID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return actor, nil
}

func buildPayload(req *model.DispatchRequest) *model.NotificationPayload {
	payload := &model.NotificationPayload{
		Title: model.DefaultNotificationTitle,
		Body:  model.DefaultNotificationBody,
		Icon:  model.NotificationIconPath,
		Badge: model.NotificationIconPath,
		URL:   "/",
		Tag:   model.EventNotificationTag,
	}

	if req == nil {
		return payload
	}
	if req.Title != "" {
		payload.Title = req.Title
	}
	if req.Body != "" {
		payload.Body = req.Body
	}
	if req.EventID != nil {
		payload.EventID = req.EventID
		payload.URL = fmt.Sprintf("/event/%s", req.EventID)
	}
	return payload
}

// fanOut attempts delivery to every credential concurrently, bounded by
// maxConcurrency, and waits for every attempt to settle. One failure
// never aborts the others.
func (s *service) fanOut(ctx context.Context, subs []*model.PushSubscription, body []byte) []model.DeliveryOutcome {
	outcomes := make([]model.DeliveryOutcome, len(subs))
	sem := make(chan struct{}, s.maxConcurrency)

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *model.PushSubscription) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			err := s.sender.Send(ctx, sub.Credential, body)
			outcomes[i] = model.DeliveryOutcome{UserID: sub.UserID, Err: err}
			if err == nil {
				s.logger.Debug("push delivered",
					"user_id", sub.UserID.String(),
					"took", time.Since(start).String())
			}
		}(i, sub)
	}
	wg.Wait()

	return outcomes
}
