package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FormsRelay posts messages as JSON to a hosted forms endpoint.
type FormsRelay struct {
	endpoint   string
	httpClient *http.Client
}

var _ Relay = (*FormsRelay)(nil)

func NewFormsRelay(endpoint string) *FormsRelay {
	return &FormsRelay{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send treats any 2xx response as delivered.
func (r *FormsRelay) Send(ctx context.Context, msg Message) error {
	if r.endpoint == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("forms relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("forms relay: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
