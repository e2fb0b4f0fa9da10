package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// ── Anthropic Provider ──────────────────────────────────────

const defaultAnthropicMaxTokens = 1024

type anthropicDriver struct {
	client *http.Client
}

func newAnthropicDriver(client *http.Client) *anthropicDriver {
	return &anthropicDriver{client: client}
}

func (d *anthropicDriver) Kinds() []models.ProviderKind {
	return []models.ProviderKind{models.ProviderAnthropic}
}

func (d *anthropicDriver) Complete(ctx context.Context, p models.Provider, req models.CompletionRequest) (*models.Completion, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api_key not configured for provider %s", p.Name)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(p.APIKey),
		option.WithHTTPClient(d.client),
		// failover is handled by the router
		option.WithMaxRetries(0),
	}
	if p.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(p.Endpoint, "/")+"/"))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("anthropic: no messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Provider: p.Name, Status: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &models.Completion{
		Model:   string(message.Model),
		Content: content.String(),
		Usage: models.TokenUsage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
			TotalTokens:  message.Usage.InputTokens + message.Usage.OutputTokens,
		},
	}, nil
}
