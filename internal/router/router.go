// Package router implements the model router behind the reasoning
// capability. It keeps an ordered list of providers, sends each request
// to the first one, and fails over to the next on any error.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// ErrNoProviders is returned when the router has nothing to call.
var ErrNoProviders = errors.New("no reasoning providers configured")

// ProviderError carries a non-2xx provider response.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Body)
}

// Driver speaks one provider protocol.
type Driver interface {
	Kinds() []models.ProviderKind
	Complete(ctx context.Context, p models.Provider, req models.CompletionRequest) (*models.Completion, error)
}

// ModelRouter routes completion requests to configured providers.
type ModelRouter struct {
	providers []models.Provider
	drivers   map[models.ProviderKind]Driver
	tracer    trace.Tracer

	// Latency tracking: provider name → rolling avg ms
	latencyMu sync.RWMutex
	latencies map[string]int64

	usageMu sync.Mutex
	usage   map[string]*models.TokenUsage
}

// NewModelRouter creates a router over providers, tried in order. The
// HTTP client is shared by all drivers; nil uses a client with a 60s
// timeout.
func NewModelRouter(providers []models.Provider, client *http.Client) *ModelRouter {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	mr := &ModelRouter{
		providers: append([]models.Provider(nil), providers...),
		drivers:   make(map[models.ProviderKind]Driver),
		tracer:    otel.Tracer("chartgenie/router"),
		latencies: make(map[string]int64),
		usage:     make(map[string]*models.TokenUsage),
	}
	mr.RegisterDriver(newOpenAIDriver(client))
	mr.RegisterDriver(newAnthropicDriver(client))
	return mr
}

// RegisterDriver adds or replaces the driver for its kinds.
func (mr *ModelRouter) RegisterDriver(d Driver) {
	for _, k := range d.Kinds() {
		mr.drivers[k] = d
	}
}

// ListDrivers returns the registered provider kinds, sorted.
func (mr *ModelRouter) ListDrivers() []string {
	out := make([]string, 0, len(mr.drivers))
	for k := range mr.drivers {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// Providers returns the configured provider names in fallback order.
func (mr *ModelRouter) Providers() []string {
	out := make([]string, len(mr.providers))
	for i, p := range mr.providers {
		out[i] = p.Name
	}
	return out
}

// Complete sends req to each provider in order until one succeeds.
func (mr *ModelRouter) Complete(ctx context.Context, req models.CompletionRequest) (*models.Completion, error) {
	if len(mr.providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, p := range mr.providers {
		resp, err := mr.call(ctx, p, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().
			Str("provider", p.Name).
			Str("kind", string(p.Kind)).
			Err(err).
			Msg("Provider call failed, trying next")
	}
	return nil, fmt.Errorf("all providers failed, last error: %w", lastErr)
}

func (mr *ModelRouter) call(ctx context.Context, p models.Provider, req models.CompletionRequest) (*models.Completion, error) {
	ctx, span := mr.tracer.Start(ctx, "router.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.name", p.Name),
			attribute.String("provider.kind", string(p.Kind)),
			attribute.String("provider.model", p.Model),
		),
	)
	defer span.End()

	d, ok := mr.drivers[p.Kind]
	if !ok {
		err := fmt.Errorf("no driver for provider kind %q", p.Kind)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	resp, err := d.Complete(ctx, p, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	latencyMs := time.Since(start).Milliseconds()
	resp.LatencyMs = latencyMs
	resp.Provider = p.Name
	if resp.Model == "" {
		resp.Model = p.Model
	}
	span.SetAttributes(
		attribute.Int64("usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int64("usage.output_tokens", resp.Usage.OutputTokens),
	)

	mr.latencyMu.Lock()
	prev := mr.latencies[p.Name]
	if prev == 0 {
		mr.latencies[p.Name] = latencyMs
	} else {
		// Exponential moving average
		mr.latencies[p.Name] = (prev*7 + latencyMs*3) / 10
	}
	mr.latencyMu.Unlock()

	mr.usageMu.Lock()
	u, ok := mr.usage[p.Name]
	if !ok {
		u = &models.TokenUsage{}
		mr.usage[p.Name] = u
	}
	u.InputTokens += resp.Usage.InputTokens
	u.OutputTokens += resp.Usage.OutputTokens
	u.TotalTokens += resp.Usage.TotalTokens
	mr.usageMu.Unlock()

	return resp, nil
}

// Latency returns the rolling average latency for a provider, in ms.
func (mr *ModelRouter) Latency(provider string) int64 {
	mr.latencyMu.RLock()
	defer mr.latencyMu.RUnlock()
	return mr.latencies[provider]
}

// Usage returns accumulated token usage per provider.
func (mr *ModelRouter) Usage() map[string]models.TokenUsage {
	mr.usageMu.Lock()
	defer mr.usageMu.Unlock()
	out := make(map[string]models.TokenUsage, len(mr.usage))
	for k, v := range mr.usage {
		out[k] = *v
	}
	return out
}
