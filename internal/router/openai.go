package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// ── OpenAI-compatible Providers (OpenAI, Groq, Ollama) ──────

var defaultEndpoints = map[models.ProviderKind]string{
	models.ProviderOpenAI: "https://api.openai.com/v1",
	models.ProviderGroq:   "https://api.groq.com/openai/v1",
	models.ProviderOllama: "http://localhost:11434/v1",
}

type openAIDriver struct {
	client *http.Client
}

func newOpenAIDriver(client *http.Client) *openAIDriver {
	return &openAIDriver{client: client}
}

func (d *openAIDriver) Kinds() []models.ProviderKind {
	return []models.ProviderKind{models.ProviderOpenAI, models.ProviderGroq, models.ProviderOllama}
}

type openAIRequest struct {
	Model          string               `json:"model"`
	Messages       []models.ChatMessage `json:"messages"`
	Temperature    *float64             `json:"temperature,omitempty"`
	MaxTokens      int                  `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (d *openAIDriver) Complete(ctx context.Context, p models.Provider, req models.CompletionRequest) (*models.Completion, error) {
	endpoint := strings.TrimRight(p.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoints[p.Kind]
	}
	if p.APIKey == "" && p.Kind != models.ProviderOllama {
		return nil, fmt.Errorf("%s: api_key not configured for provider %s", p.Kind, p.Name)
	}

	messages := make([]models.ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	oaiReq := openAIRequest{
		Model:       p.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		oaiReq.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(oaiReq)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", p.Kind, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", p.Kind, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", p.Kind, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, &ProviderError{Provider: p.Name, Status: httpResp.StatusCode, Body: string(respBody)}
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", p.Kind, err)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("%s: response has no choices", p.Kind)
	}

	return &models.Completion{
		Model:   oaiResp.Model,
		Content: oaiResp.Choices[0].Message.Content,
		Usage: models.TokenUsage{
			InputTokens:  oaiResp.Usage.PromptTokens,
			OutputTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:  oaiResp.Usage.TotalTokens,
		},
	}, nil
}
