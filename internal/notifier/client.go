package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"vms-inventory/internal/config"
)

// EventIDHeader carries the transition's event id; retries of one transition reuse it
const EventIDHeader = "X-Event-ID"

// RemoteAck is the counterpart system's answer to a notification
type RemoteAck struct {
	StatusCode int                    `json:"statusCode"`
	Status     string                 `json:"status"`
	Body       map[string]interface{} `json:"body,omitempty"`
}

// Notifier delivers order state changes to the counterpart system
type Notifier interface {
	Notify(ctx context.Context, endpoint string, eventID uuid.UUID, payload interface{}) (*RemoteAck, error)
}

// Client is an HTTP Notifier that applies a retry Policy to every call
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     Policy
	logger     *zap.Logger
}

// NewClient creates a Client for the counterpart system described by cfg
func NewClient(cfg config.IMSConfig, logger *zap.Logger) *Client {
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return NewClientWithPolicy(cfg.BaseURL, PolicyFromConfig(cfg), httpClient, logger)
}

// NewClientWithPolicy creates a Client with an explicit policy and HTTP client
func NewClientWithPolicy(baseURL string, policy Policy, httpClient *http.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		policy:     policy,
		logger:     logger,
	}
}

// Notify posts payload as JSON to endpoint, which is joined to the base URL.
// It returns ErrRemoteUnavailable once the policy is exhausted.
func (c *Client) Notify(ctx context.Context, endpoint string, eventID uuid.UUID, payload interface{}) (*RemoteAck, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}

	url := c.baseURL + endpoint

	ack, err := c.policy.Attempt(ctx, func(ctx context.Context) (*RemoteAck, error) {
		return c.post(ctx, url, eventID, body)
	}, func(failure *AttemptError) {
		c.logger.Warn("Remote notification attempt failed",
			zap.String("url", url),
			zap.String("event_id", eventID.String()),
			zap.Int("attempt", failure.Attempt),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.Error(failure.Err),
		)
	})
	if err != nil {
		c.logger.Error("Remote notification failed",
			zap.String("url", url),
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Info("Remote notification acknowledged",
		zap.String("url", url),
		zap.String("event_id", eventID.String()),
		zap.Int("status_code", ack.StatusCode),
	)

	return ack, nil
}

func (c *Client) post(ctx context.Context, url string, eventID uuid.UUID, body []byte) (*RemoteAck, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventIDHeader, eventID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	ack := &RemoteAck{StatusCode: resp.StatusCode}
	if len(raw) > 0 {
		// a body that is not a JSON object leaves Status empty and the attempt fails
		if err := json.Unmarshal(raw, &ack.Body); err == nil {
			if status, ok := ack.Body["status"].(string); ok {
				ack.Status = status
			}
		}
	}

	if resp.StatusCode != http.StatusOK {
		return ack, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	return ack, nil
}
