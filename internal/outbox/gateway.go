package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Gateway delivers an event to the external government system and returns
// the receipt ("protocol") it issued. Implementations must honour the
// context deadline; a sweep cannot afford a hanging call.
type Gateway interface {
	Deliver(ctx context.Context, event Event) (protocol string, err error)
}

// IntegrationConfig gates delivery. With the integration disabled or not
// configured, delivery attempts fail softly without touching the row.
type IntegrationConfig struct {
	Enabled  bool
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Configured reports whether the endpoint and credential are present.
func (c IntegrationConfig) Configured() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Token) != ""
}

// HTTPGateway posts events as JSON to the configured endpoint.
type HTTPGateway struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPGateway builds the production gateway. The client timeout bounds
// each delivery attempt so one slow call cannot stall a whole sweep.
func NewHTTPGateway(cfg IntegrationConfig) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		client:   &http.Client{Timeout: timeout},
	}
}

type deliverRequest struct {
	EventID   string          `json:"event_id"`
	TenantID  int64           `json:"tenant_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type deliverResponse struct {
	Protocol string `json:"protocol"`
}

// Deliver performs the external call.
func (g *HTTPGateway) Deliver(ctx context.Context, event Event) (string, error) {
	body, err := json.Marshal(deliverRequest{
		EventID:   event.ID.String(),
		TenantID:  event.TenantID,
		EventType: event.EventType,
		Payload:   event.Payload,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("government api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var decoded deliverResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("government api response unreadable: %w", err)
	}
	if decoded.Protocol == "" {
		return "", fmt.Errorf("government api response missing protocol")
	}
	return decoded.Protocol, nil
}
