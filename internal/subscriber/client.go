package subscriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// httpAPI talks to the server's subscription endpoints
type httpAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPAPI creates an API client authenticating with the given bearer
// token.
func NewHTTPAPI(baseURL, token string) API {
	return &httpAPI{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *httpAPI) Subscribe(ctx context.Context, userID uuid.UUID, credential json.RawMessage) error {
	body := map[string]interface{}{
		"subscription": credential,
		"user_id":      userID.String(),
	}
	return a.post(ctx, "/api/v1/notifications/subscribe", body)
}

func (a *httpAPI) Unsubscribe(ctx context.Context) error {
	return a.post(ctx, "/api/v1/notifications/unsubscribe", map[string]interface{}{})
}

func (a *httpAPI) post(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}
	return nil
}
