// Package pushtransport delivers payloads to stored push credentials
// through the vendor push network.
package pushtransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/OpraEria/gather/pkg/circuitbreaker"
)

// Sender delivers one payload to one credential. The credential is the
// opaque blob persisted by the subscription store.
type Sender interface {
	Send(ctx context.Context, credential json.RawMessage, payload []byte) error
}

// Config holds VAPID signing material and delivery options
type Config struct {
	Subscriber      string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	TTL             int
}

type webPushSender struct {
	cfg Config
	cb  *circuitbreaker.CircuitBreaker
}

// NewWebPushSender creates a Sender backed by the Web Push protocol
func NewWebPushSender(cfg Config) Sender {
	if cfg.TTL == 0 {
		cfg.TTL = 60 * 60 * 24
	}
	return &webPushSender{
		cfg: cfg,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "webpush",
			MaxFailures: 20,
			Timeout:     30 * time.Second,
		}),
	}
}

func (s *webPushSender) Send(ctx context.Context, credential json.RawMessage, payload []byte) error {
	var sub webpush.Subscription
	if err := json.Unmarshal(credential, &sub); err != nil {
		return fmt.Errorf("failed to decode credential: %w", err)
	}

	var status int
	err := s.cb.Execute(func() error {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, &webpush.Options{
			Subscriber:      s.cfg.Subscriber,
			VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
			TTL:             s.cfg.TTL,
		})
		if err != nil {
			return fmt.Errorf("failed to send push: %w", err)
		}
		resp.Body.Close()
		status = resp.StatusCode
		return nil
	})
	if err != nil {
		return err
	}

	// 404 and 410 mean this endpoint no longer exists upstream. That is
	// one recipient's failure, not the transport's, so it stays outside
	// the breaker; deliveries to other credentials proceed. The stored
	// credential is left in place; the dispatcher only counts the
	// failure.
	if status >= http.StatusBadRequest {
		return fmt.Errorf("push endpoint returned %d", status)
	}
	return nil
}
