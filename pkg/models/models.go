// Package models holds the domain types shared across the chartgenie
// control plane: datasets, schemas, chart specifications, conversation
// turns and reasoning requests.
package models

import "time"

// ── Datasets ─────────────────────────────────────────────────

// DatasetStatus tracks the analysis lifecycle of an uploaded dataset.
type DatasetStatus string

const (
	DatasetPending   DatasetStatus = "PENDING"
	DatasetAnalyzing DatasetStatus = "ANALYZING"
	DatasetReady     DatasetStatus = "READY"
	DatasetError     DatasetStatus = "ERROR"
)

// Dataset is the persisted record for one uploaded CSV.
type Dataset struct {
	ID                 string        `json:"id" db:"id"`
	OwnerID            string        `json:"owner_id" db:"owner_id"`
	Name               string        `json:"dataset_name" db:"dataset_name"`
	Status             DatasetStatus `json:"status" db:"status"`
	ColumnSchema       Schema        `json:"column_schema" db:"column_schema"`
	PreviewData        []Row         `json:"preview_data,omitempty" db:"preview_data"`
	SuggestedQuestions []string      `json:"suggested_questions,omitempty" db:"suggested_questions"`
	StorageObjectPath  string        `json:"storage_object_path" db:"storage_object_path"`
	RowCount           int           `json:"row_count" db:"row_count"`
	Error              string        `json:"error,omitempty" db:"error"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// Dataset lifecycle event types.
const (
	EventDatasetReady  = "dataset.ready"
	EventDatasetFailed = "dataset.failed"
)

// DatasetEvent is posted to webhooks when analysis finishes.
type DatasetEvent struct {
	Type        string        `json:"type"`
	DatasetID   string        `json:"dataset_id"`
	OwnerID     string        `json:"owner_id"`
	DatasetName string        `json:"dataset_name"`
	Status      DatasetStatus `json:"status"`
	RowCount    int           `json:"row_count"`
	Error       string        `json:"error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// ── Conversations ────────────────────────────────────────────

// Turn is one message in a conversation, from the user or from Genie.
type Turn struct {
	Text      string     `json:"text"`
	IsUser    bool       `json:"is_user"`
	ChartSpec *ChartSpec `json:"chart_spec,omitempty"`
	ChartData []Row      `json:"chart_data,omitempty"`
	Error     bool       `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ResultType distinguishes the two conversational answer shapes.
type ResultType string

const (
	ResultText ResultType = "text"
	ResultViz  ResultType = "viz"
)

// QueryResult is the answer to one conversational turn.
type QueryResult struct {
	Type         ResultType `json:"type"`
	Insight      string     `json:"insight"`
	ChartSpec    *ChartSpec `json:"chart_spec,omitempty"`
	ChartData    []Row      `json:"chart_data,omitempty"`
	UsedFallback bool       `json:"used_fallback"`
	Strategy     string     `json:"strategy"`
}

// ── Reasoning ────────────────────────────────────────────────

// ChatMessage is a single role-tagged message sent to a reasoning provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest asks a reasoning provider for a single completion.
type CompletionRequest struct {
	System      string        `json:"system,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	// JSON asks providers that support it for a JSON object response.
	JSON bool `json:"json,omitempty"`
}

// Completion is a provider's answer.
type Completion struct {
	Provider  string     `json:"provider"`
	Model     string     `json:"model"`
	Content   string     `json:"content"`
	Usage     TokenUsage `json:"usage"`
	LatencyMs int64      `json:"latency_ms"`
}

type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// ProviderKind selects a reasoning driver.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderGroq      ProviderKind = "groq"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOllama    ProviderKind = "ollama"
)

// Provider describes one configured reasoning endpoint.
type Provider struct {
	Name     string       `json:"name" yaml:"name" mapstructure:"name"`
	Kind     ProviderKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Endpoint string       `json:"endpoint,omitempty" yaml:"endpoint" mapstructure:"endpoint"`
	Model    string       `json:"model" yaml:"model" mapstructure:"model"`
	APIKey   string       `json:"-" yaml:"api_key" mapstructure:"api_key"`
}
