package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// EventsPath is where the audit service accepts new events
const EventsPath = "/api/audit-logs"

const sendTimeout = 10 * time.Second

// Auditor records events without blocking the caller. Delivery failures
// are logged, never returned.
type Auditor interface {
	Record(ctx context.Context, ev Event)
	IsEnabled() bool
}

// Config configures the audit client. An empty ServiceURL disables auditing.
type Config struct {
	ServiceURL string `yaml:"serviceUrl"`
	Enabled    bool   `yaml:"enabled"`
}

// Client posts events to the audit service in the background
type Client struct {
	endpoint string
	http     *http.Client
	pending  sync.WaitGroup
}

// NewClient returns a client for cfg; a disabled or unusable config yields
// a client that drops every event
func NewClient(cfg Config) *Client {
	if !cfg.Enabled || cfg.ServiceURL == "" {
		slog.Info("Audit client disabled")
		return &Client{}
	}

	endpoint, err := url.JoinPath(cfg.ServiceURL, EventsPath)
	if err != nil {
		slog.Error("Audit client disabled, bad service URL", "url", cfg.ServiceURL, "error", err)
		return &Client{}
	}

	slog.Info("Audit client initialized", "endpoint", endpoint)
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: sendTimeout},
	}
}

// IsEnabled reports whether events are sent anywhere
func (c *Client) IsEnabled() bool {
	return c.endpoint != ""
}

// Record sends ev asynchronously. Delivery is not tied to ctx cancellation.
func (c *Client) Record(ctx context.Context, ev Event) {
	if !c.IsEnabled() {
		return
	}

	sendCtx := context.WithoutCancel(ctx)
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if err := c.send(sendCtx, ev); err != nil {
			slog.Warn("Audit event not delivered",
				"action", ev.EventAction,
				"target_id", ev.TargetID,
				"trace_id", ev.TraceID,
				"error", err)
		}
	}()
}

// Wait blocks until every pending event has been sent or has failed
func (c *Client) Wait() {
	c.pending.Wait()
}

func (c *Client) send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("audit service answered %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
