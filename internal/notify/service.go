// Package notify posts dataset lifecycle events to configured webhooks.
//
// Each delivery is a JSON POST, optionally signed with HMAC-SHA256 over
// the body, retried with exponential backoff on network errors and 5xx
// responses.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// Webhook is one delivery target.
type Webhook struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Secret string `mapstructure:"secret" yaml:"secret"`
	// Events filters by event type; empty or "*" means all.
	Events []string `mapstructure:"events" yaml:"events"`
}

// Result reports one delivery.
type Result struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Service dispatches events to webhooks.
type Service struct {
	hooks   []Webhook
	client  *http.Client
	retries uint64
}

// NewService creates a dispatcher. A nil client gets a 15s timeout.
func NewService(hooks []Webhook, client *http.Client) *Service {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Service{hooks: hooks, client: client, retries: 2}
}

// Notify delivers ev to every subscribed webhook and logs failures.
func (s *Service) Notify(ctx context.Context, ev models.DatasetEvent) {
	s.Dispatch(ctx, ev)
}

// Dispatch delivers ev to every subscribed webhook concurrently.
func (s *Service) Dispatch(ctx context.Context, ev models.DatasetEvent) []Result {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode notification")
		return nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []Result
	)
	for _, hook := range s.hooks {
		if !subscribes(hook, ev.Type) {
			continue
		}
		wg.Add(1)
		go func(h Webhook) {
			defer wg.Done()
			r := Result{URL: h.URL, Success: true}
			if err := s.send(ctx, h, ev.Type, body); err != nil {
				r.Success = false
				r.Error = err.Error()
				log.Warn().Err(err).Str("url", h.URL).Str("event", ev.Type).Msg("Webhook delivery failed")
			} else {
				log.Debug().Str("url", h.URL).Str("event", ev.Type).Str("dataset", ev.DatasetID).Msg("Webhook delivered")
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(hook)
	}
	wg.Wait()
	return results
}

func (s *Service) send(ctx context.Context, h Webhook, eventType string, body []byte) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build webhook request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "chartgenie-webhook/1.0")
		req.Header.Set("X-Chartgenie-Event", eventType)
		if h.Secret != "" {
			req.Header.Set("X-Chartgenie-Signature", Sign(h.Secret, body))
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("webhook HTTP %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("webhook HTTP %d", resp.StatusCode))
		}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(eb, s.retries), ctx))
}

// Sign returns the X-Chartgenie-Signature value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func subscribes(h Webhook, eventType string) bool {
	if len(h.Events) == 0 {
		return true
	}
	for _, e := range h.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}
