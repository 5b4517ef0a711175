package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpraEria/gather/pkg/logger"
	"github.com/OpraEria/gather/pkg/messaging"
	"github.com/OpraEria/gather/pkg/metrics"
)

// Registered once; promauto panics on duplicate registration.
var testMetrics = metrics.NewMetrics("test_worker")

type fakeNotifier struct {
	shown     []*Notification
	dismissed []string
	opened    []string
	showErr   error
}

func (n *fakeNotifier) Show(_ context.Context, notification *Notification) error {
	if n.showErr != nil {
		return n.showErr
	}
	n.shown = append(n.shown, notification)
	return nil
}

func (n *fakeNotifier) Dismiss(_ context.Context, tag string) error {
	n.dismissed = append(n.dismissed, tag)
	return nil
}

func (n *fakeNotifier) Open(_ context.Context, url string) error {
	n.opened = append(n.opened, url)
	return nil
}

type fakeListingSource struct {
	body    []byte
	err     error
	fetches int
}

func (s *fakeListingSource) FetchEvents(context.Context) ([]byte, error) {
	s.fetches++
	return s.body, s.err
}

// nullBroker serves pre-seeded channels; unknown channels read as
// already closed.
type nullBroker struct {
	channels map[string]chan []byte
}

func (b *nullBroker) Publish(context.Context, string, interface{}) error { return nil }
func (b *nullBroker) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	if ch, ok := b.channels[channel]; ok {
		return ch, nil
	}
	closed := make(chan []byte)
	close(closed)
	return closed, nil
}
func (b *nullBroker) Close() error { return nil }

func newTestWorker(notifier *fakeNotifier, source *fakeListingSource) (*DeliveryWorker, *cache.Cache) {
	c := cache.New(time.Minute, time.Minute)
	w := NewDeliveryWorker(&nullBroker{}, notifier, source, c, logger.NewLogger(nil), testMetrics)
	return w, c
}

func envelope(t *testing.T, eventType string, payload interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	require.NoError(t, err)
	return raw
}

func TestHandlePushShowsNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	w, _ := newTestWorker(notifier, &fakeListingSource{})

	eventID := uuid.New()
	w.Handle(context.Background(), envelope(t, EventTypePush, map[string]interface{}{
		"title":    "Sommerfest",
		"body":     "Bli med!",
		"icon":     "/custom.png",
		"tag":      "party",
		"url":      "/event/" + eventID.String(),
		"event_id": eventID.String(),
	}))

	require.Len(t, notifier.shown, 1)
	n := notifier.shown[0]
	assert.Equal(t, "Sommerfest", n.Title)
	assert.Equal(t, "Bli med!", n.Body)
	assert.Equal(t, "/custom.png", n.Icon)
	assert.Equal(t, "party", n.Tag)
	assert.Equal(t, "/event/"+eventID.String(), n.Data.URL)
	require.NotNil(t, n.Data.EventID)
	assert.Equal(t, eventID, *n.Data.EventID)
}

func TestHandlePushSubstitutesDefaults(t *testing.T) {
	notifier := &fakeNotifier{}
	w, _ := newTestWorker(notifier, &fakeListingSource{})

	w.Handle(context.Background(), envelope(t, EventTypePush, map[string]interface{}{}))

	require.Len(t, notifier.shown, 1)
	n := notifier.shown[0]
	assert.Equal(t, fallbackTitle, n.Title)
	assert.Equal(t, fallbackBody, n.Body)
	assert.Equal(t, fallbackIcon, n.Icon)
	assert.Equal(t, fallbackTag, n.Tag)
	assert.Equal(t, "/", n.Data.URL)
}

func TestHandlePushMalformedPayloadShowsFallback(t *testing.T) {
	notifier := &fakeNotifier{}
	w, _ := newTestWorker(notifier, &fakeListingSource{})

	raw := []byte(`{"type":"push","payload":"not an object"}`)
	w.Handle(context.Background(), raw)

	require.Len(t, notifier.shown, 1, "malformed push still produces exactly one notification")
	assert.Equal(t, fallbackTitle, notifier.shown[0].Title)
	assert.Equal(t, fallbackBody, notifier.shown[0].Body)
}

func TestHandlePushEmptyPayloadShowsFallback(t *testing.T) {
	notifier := &fakeNotifier{}
	w, _ := newTestWorker(notifier, &fakeListingSource{})

	w.Handle(context.Background(), []byte(`{"type":"push"}`))

	require.Len(t, notifier.shown, 1)
	assert.Equal(t, fallbackTitle, notifier.shown[0].Title)
}

func TestHandleClickDismissesThenOpens(t *testing.T) {
	notifier := &fakeNotifier{}
	w, _ := newTestWorker(notifier, &fakeListingSource{})

	w.Handle(context.Background(), envelope(t, EventTypeClick, map[string]interface{}{
		"tag": "event-notification",
		"url": "/event/abc",
	}))

	assert.Equal(t, []string{"event-notification"}, notifier.dismissed)
	assert.Equal(t, []string{"/event/abc"}, notifier.opened)
}

func TestHandleClickDefaultsToRoot(t *testing.T) {
	notifier := &fakeNotifier{}
	w, _ := newTestWorker(notifier, &fakeListingSource{})

	w.Handle(context.Background(), envelope(t, EventTypeClick, map[string]interface{}{
		"tag": "event-notification",
	}))

	assert.Equal(t, []string{"/"}, notifier.opened)
}

func TestHandleSyncRefreshesCache(t *testing.T) {
	source := &fakeListingSource{body: []byte(`[{"title":"Sommerfest"}]`)}
	w, c := newTestWorker(&fakeNotifier{}, source)

	// Pre-existing entry is overwritten, not merged.
	c.Set(EventsCacheKey, []byte(`[]`), cache.DefaultExpiration)

	w.Handle(context.Background(), envelope(t, EventTypeSync, map[string]interface{}{
		"tag": SyncEventsTag,
	}))

	assert.Equal(t, 1, source.fetches)
	cached, ok := c.Get(EventsCacheKey)
	require.True(t, ok)
	assert.Equal(t, source.body, cached.([]byte))
}

func TestHandleSyncIgnoresUnknownTag(t *testing.T) {
	source := &fakeListingSource{body: []byte(`[]`)}
	w, c := newTestWorker(&fakeNotifier{}, source)

	w.Handle(context.Background(), envelope(t, EventTypeSync, map[string]interface{}{
		"tag": "some-other-tag",
	}))

	assert.Zero(t, source.fetches)
	_, ok := c.Get(EventsCacheKey)
	assert.False(t, ok)
}

func TestHandleSyncFetchFailureKeepsCache(t *testing.T) {
	source := &fakeListingSource{err: errors.New("api unreachable")}
	w, c := newTestWorker(&fakeNotifier{}, source)

	stale := []byte(`[{"title":"Gammelt event"}]`)
	c.Set(EventsCacheKey, stale, cache.DefaultExpiration)

	w.Handle(context.Background(), envelope(t, EventTypeSync, map[string]interface{}{
		"tag": SyncEventsTag,
	}))

	cached, ok := c.Get(EventsCacheKey)
	require.True(t, ok, "stale entry survives a failed refresh")
	assert.Equal(t, stale, cached.([]byte))
}

func TestHandleUnknownEventType(t *testing.T) {
	notifier := &fakeNotifier{}
	source := &fakeListingSource{}
	w, _ := newTestWorker(notifier, source)

	w.Handle(context.Background(), envelope(t, "install", map[string]interface{}{}))

	assert.Empty(t, notifier.shown)
	assert.Zero(t, source.fetches)
}

func TestHandleMalformedEnvelope(t *testing.T) {
	notifier := &fakeNotifier{}
	w, _ := newTestWorker(notifier, &fakeListingSource{})

	w.Handle(context.Background(), []byte(`not json`))

	assert.Empty(t, notifier.shown)
}

func TestRunConsumesUntilChannelCloses(t *testing.T) {
	notifier := &fakeNotifier{}
	msgs := make(chan []byte, 2)
	broker := &nullBroker{channels: map[string]chan []byte{
		messaging.ChannelWorkerEvents: msgs,
	}}
	c := cache.New(time.Minute, time.Minute)
	w := NewDeliveryWorker(broker, notifier, &fakeListingSource{}, c, logger.NewLogger(nil), testMetrics)

	msgs <- envelope(t, EventTypePush, map[string]interface{}{"title": "En"})
	msgs <- envelope(t, EventTypePush, map[string]interface{}{"title": "To"})
	close(msgs)

	require.NoError(t, w.Run(context.Background()))
	require.Len(t, notifier.shown, 2)
	assert.Equal(t, "En", notifier.shown[0].Title)
	assert.Equal(t, "To", notifier.shown[1].Title)
}

func TestRunRefreshesCacheOnEventCreated(t *testing.T) {
	source := &fakeListingSource{body: []byte(`[{"title":"Sommerfest"}]`)}
	activity := make(chan []byte, 1)
	broker := &nullBroker{channels: map[string]chan []byte{
		messaging.ChannelEventActivity: activity,
	}}
	c := cache.New(time.Minute, time.Minute)
	w := NewDeliveryWorker(broker, &fakeNotifier{}, source, c, logger.NewLogger(nil), testMetrics)

	activity <- envelope(t, messaging.TypeEventCreated, map[string]interface{}{"title": "Sommerfest"})
	close(activity)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 1, source.fetches)
	cached, ok := c.Get(EventsCacheKey)
	require.True(t, ok)
	assert.Equal(t, source.body, cached.([]byte))
}

func TestHandleActivityIgnoresOtherTypes(t *testing.T) {
	source := &fakeListingSource{body: []byte(`[]`)}
	w, _ := newTestWorker(&fakeNotifier{}, source)

	w.HandleActivity(context.Background(), envelope(t, "event.deleted", map[string]interface{}{}))
	assert.Zero(t, source.fetches)
}
