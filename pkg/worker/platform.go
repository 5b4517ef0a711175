package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/OpraEria/gather/pkg/logger"
)

// logNotifier renders notifications into the structured log. The worker
// binary has no display surface; this is its production sink.
type logNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(l *logger.Logger) Notifier {
	return &logNotifier{logger: l}
}

func (n *logNotifier) Show(_ context.Context, notification *Notification) error {
	n.logger.Info("notification shown",
		"title", notification.Title,
		"body", notification.Body,
		"tag", notification.Tag,
		"url", notification.Data.URL)
	return nil
}

func (n *logNotifier) Dismiss(_ context.Context, tag string) error {
	n.logger.Info("notification dismissed", "tag", tag)
	return nil
}

func (n *logNotifier) Open(_ context.Context, url string) error {
	n.logger.Info("opening window", "url", url)
	return nil
}

// httpListingSource fetches the events listing from the API server
type httpListingSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPListingSource(baseURL string, timeout time.Duration) ListingSource {
	return &httpListingSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *httpListingSource) FetchEvents(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+EventsCacheKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events listing returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
