// Package worker implements the delivery worker: a long-lived process
// woken by inbound messages, dispatching on event type the way the
// companion service worker reacts to push, notification-click and
// background-sync events.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/OpraEria/gather/pkg/logger"
	"github.com/OpraEria/gather/pkg/messaging"
	"github.com/OpraEria/gather/pkg/metrics"
)

// Inbound event types
const (
	EventTypePush  = "push"
	EventTypeClick = "click"
	EventTypeSync  = "sync"
)

// SyncEventsTag is the only sync tag the worker acts on.
const SyncEventsTag = "sync-events"

// EventsCacheKey is where the refreshed events listing is stored.
const EventsCacheKey = "/api/v1/events"

// Defaults shown when an inbound payload is malformed or sparse.
const (
	fallbackTitle = "Gather"
	fallbackBody  = "Nytt event publisert!"
	fallbackIcon  = "/icon-192x192.png"
	fallbackTag   = "event-notification"
)

// Notification is what the worker asks the platform to display
type Notification struct {
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Icon  string           `json:"icon"`
	Tag   string           `json:"tag"`
	Data  NotificationData `json:"data"`
}

// NotificationData travels with the notification and drives click-through
type NotificationData struct {
	URL     string     `json:"url"`
	EventID *uuid.UUID `json:"event_id,omitempty"`
}

// Notifier is the platform surface the worker displays through.
// Show must not return until the notification is visible; the worker
// acks an inbound push only after Show settles.
type Notifier interface {
	Show(ctx context.Context, n *Notification) error
	Dismiss(ctx context.Context, tag string) error
	Open(ctx context.Context, url string) error
}

// ListingSource fetches the current events listing for cache refresh
type ListingSource interface {
	FetchEvents(ctx context.Context) ([]byte, error)
}

type inboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type pushPayload struct {
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	Icon    string     `json:"icon"`
	Tag     string     `json:"tag"`
	URL     string     `json:"url"`
	EventID *uuid.UUID `json:"event_id"`
}

type clickPayload struct {
	Tag string `json:"tag"`
	URL string `json:"url"`
}

type syncPayload struct {
	Tag string `json:"tag"`
}

// DeliveryWorker reacts to inbound events one at a time. It keeps no
// state of its own beyond the events cache entry.
type DeliveryWorker struct {
	broker   messaging.Broker
	notifier Notifier
	source   ListingSource
	cache    *cache.Cache
	handlers map[string]func(context.Context, json.RawMessage) error
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewDeliveryWorker(
	broker messaging.Broker,
	notifier Notifier,
	source ListingSource,
	eventsCache *cache.Cache,
	logger *logger.Logger,
	m *metrics.Metrics,
) *DeliveryWorker {
	w := &DeliveryWorker{
		broker:   broker,
		notifier: notifier,
		source:   source,
		cache:    eventsCache,
		logger:   logger,
		metrics:  m,
	}
	w.handlers = map[string]func(context.Context, json.RawMessage) error{
		EventTypePush:  w.handlePush,
		EventTypeClick: w.handleClick,
		EventTypeSync:  w.handleSync,
	}
	return w
}

// Run consumes inbound worker events and event activity until both
// channels close or the context is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	events, err := w.broker.Subscribe(ctx, messaging.ChannelWorkerEvents)
	if err != nil {
		return fmt.Errorf("failed to subscribe to worker events: %w", err)
	}
	activity, err := w.broker.Subscribe(ctx, messaging.ChannelEventActivity)
	if err != nil {
		return fmt.Errorf("failed to subscribe to event activity: %w", err)
	}

	w.logger.Info("delivery worker started")
	for events != nil || activity != nil {
		select {
		case raw, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.Handle(ctx, raw)
		case raw, ok := <-activity:
			if !ok {
				activity = nil
				continue
			}
			w.HandleActivity(ctx, raw)
		}
	}

	w.logger.Info("delivery worker stopped")
	return nil
}

// HandleActivity reacts to event lifecycle messages. A created event
// invalidates the cached listing so the next read is fresh.
func (w *DeliveryWorker) HandleActivity(ctx context.Context, raw []byte) {
	var event inboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		w.logger.Error(err, "malformed activity message")
		return
	}
	if event.Type != messaging.TypeEventCreated {
		return
	}
	w.refreshEvents(ctx)
}

// Handle dispatches one raw inbound message to its typed handler.
func (w *DeliveryWorker) Handle(ctx context.Context, raw []byte) {
	var event inboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		w.logger.Error(err, "malformed inbound event")
		return
	}

	handler, ok := w.handlers[event.Type]
	if !ok {
		w.logger.Warn("unknown inbound event type", "type", event.Type)
		return
	}

	if err := handler(ctx, event.Payload); err != nil {
		w.metrics.WorkerEventsFailed.WithLabelValues(event.Type).Inc()
		w.logger.Error(err, "event handler failed", "type", event.Type)
		return
	}
	w.metrics.WorkerEventsHandled.WithLabelValues(event.Type).Inc()
}

// handlePush parses the payload and displays a notification. A payload
// that fails to parse still produces exactly one generic notification;
// the message is never silently dropped.
func (w *DeliveryWorker) handlePush(ctx context.Context, payload json.RawMessage) error {
	var p pushPayload
	if len(payload) == 0 || json.Unmarshal(payload, &p) != nil {
		w.logger.Warn("unparseable push payload, showing fallback")
		return w.notifier.Show(ctx, fallbackNotification())
	}

	n := &Notification{
		Title: p.Title,
		Body:  p.Body,
		Icon:  p.Icon,
		Tag:   p.Tag,
		Data: NotificationData{
			URL:     p.URL,
			EventID: p.EventID,
		},
	}
	if n.Title == "" {
		n.Title = fallbackTitle
	}
	if n.Body == "" {
		n.Body = fallbackBody
	}
	if n.Icon == "" {
		n.Icon = fallbackIcon
	}
	if n.Tag == "" {
		n.Tag = fallbackTag
	}
	if n.Data.URL == "" {
		n.Data.URL = "/"
	}

	return w.notifier.Show(ctx, n)
}

func (w *DeliveryWorker) handleClick(ctx context.Context, payload json.RawMessage) error {
	var p clickPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed click payload: %w", err)
	}

	if err := w.notifier.Dismiss(ctx, p.Tag); err != nil {
		return fmt.Errorf("failed to dismiss notification: %w", err)
	}

	url := p.URL
	if url == "" {
		url = "/"
	}
	return w.notifier.Open(ctx, url)
}

// handleSync refreshes the cached events listing. It is gated on the
// recognized tag and best-effort: fetch failures are logged, not
// propagated.
func (w *DeliveryWorker) handleSync(ctx context.Context, payload json.RawMessage) error {
	var p syncPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed sync payload: %w", err)
	}
	if p.Tag != SyncEventsTag {
		return nil
	}

	w.refreshEvents(ctx)
	return nil
}

// refreshEvents re-fetches the events listing into the cache. Fetch
// failures are logged, never propagated; a stale entry beats none.
func (w *DeliveryWorker) refreshEvents(ctx context.Context) {
	body, err := w.source.FetchEvents(ctx)
	if err != nil {
		w.logger.Error(err, "failed to refresh events cache")
		return
	}

	w.cache.Set(EventsCacheKey, body, cache.DefaultExpiration)
	w.logger.Debug("events cache refreshed", "bytes", len(body))
}

func fallbackNotification() *Notification {
	return &Notification{
		Title: fallbackTitle,
		Body:  fallbackBody,
		Icon:  fallbackIcon,
		Tag:   fallbackTag,
		Data:  NotificationData{URL: "/"},
	}
}
