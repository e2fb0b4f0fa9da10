// Package config loads chartgenie configuration from defaults, an
// optional YAML file, a .env file and CHARTGENIE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/chartgenie/chartgenie/internal/analysis"
	"github.com/chartgenie/chartgenie/internal/autochart"
	"github.com/chartgenie/chartgenie/internal/notify"
	"github.com/chartgenie/chartgenie/internal/query"
	"github.com/chartgenie/chartgenie/internal/schema"
	"github.com/chartgenie/chartgenie/internal/storage"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// EnvPrefix prefixes every environment override, e.g. CHARTGENIE_PORT.
const EnvPrefix = "CHARTGENIE"

// Config holds all configuration for the chartgenie server and CLI.
type Config struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Version        string   `mapstructure:"version" yaml:"version"`
	DataDir        string   `mapstructure:"data_dir" yaml:"data_dir"`
	APIKeys        []string `mapstructure:"api_keys" yaml:"api_keys"`
	CORSOrigins    []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`

	Log           LogConfig          `mapstructure:"log" yaml:"log"`
	Database      DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Storage       StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Providers     []models.Provider  `mapstructure:"providers" yaml:"providers"`
	Schema        schema.Thresholds  `mapstructure:"schema" yaml:"schema"`
	Charts        autochart.Options  `mapstructure:"charts" yaml:"charts"`
	Query         query.Options      `mapstructure:"query" yaml:"query"`
	Analysis      analysis.Options   `mapstructure:"analysis" yaml:"analysis"`
	Conversations ConversationConfig `mapstructure:"conversations" yaml:"conversations"`
	Telemetry     TelemetryConfig    `mapstructure:"telemetry" yaml:"telemetry"`
	Notify        NotifyConfig       `mapstructure:"notify" yaml:"notify"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// JSON switches from the console writer to raw JSON lines.
	JSON bool `mapstructure:"json" yaml:"json"`
}

// DatabaseConfig selects the dataset store. An empty URL keeps datasets
// in memory with a JSON snapshot under DataDir.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// StorageConfig selects where raw uploads live.
type StorageConfig struct {
	Backend   string           `mapstructure:"backend" yaml:"backend"` // local | s3
	LocalPath string           `mapstructure:"local_path" yaml:"local_path"`
	Compress  bool             `mapstructure:"compress" yaml:"compress"`
	S3        storage.S3Config `mapstructure:"s3" yaml:"s3"`
}

type ConversationConfig struct {
	MaxTurns        int           `mapstructure:"max_turns" yaml:"max_turns"`
	IdleTTL         time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`
}

// NotifyConfig lists webhooks that receive dataset.ready and
// dataset.failed events.
type NotifyConfig struct {
	Webhooks []notify.Webhook `mapstructure:"webhooks" yaml:"webhooks"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
	// SampleRatio is the fraction of root traces kept, 0..1. Child spans
	// follow their parent's decision.
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
	// Insecure disables TLS to the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`
}

// Load reads configuration. Precedence: env > config file > defaults.
// cfgFile may be empty; a missing default file is not an error.
func Load(cfgFile string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("chartgenie")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".chartgenie"))
		}
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(c.Providers) == 0 {
		c.Providers = providersFromEnv()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the configuration with nothing but defaults applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return &c
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".chartgenie")

	v.SetDefault("port", 8080)
	v.SetDefault("version", "0.1.0")
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("api_keys", []string{})
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("max_upload_bytes", 50<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("database.url", "")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_path", filepath.Join(dataDir, "uploads"))
	v.SetDefault("storage.compress", true)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.prefix", "datasets")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", false)

	th := schema.DefaultThresholds()
	v.SetDefault("schema.numeric_ratio", th.NumericRatio)
	v.SetDefault("schema.date_ratio", th.DateRatio)
	v.SetDefault("schema.geo_ratio", th.GeoRatio)
	v.SetDefault("schema.category_max_distinct", th.CategoryMaxDistinct)
	v.SetDefault("schema.category_max_ratio", th.CategoryMaxRatio)
	v.SetDefault("schema.sample_limit", th.SampleLimit)

	ch := autochart.DefaultOptions()
	v.SetDefault("charts.max_charts", ch.MaxCharts)
	v.SetDefault("charts.max_lines", ch.MaxLines)
	v.SetDefault("charts.bar_min_distinct", ch.BarMinDistinct)
	v.SetDefault("charts.bar_max_distinct", ch.BarMaxDistinct)
	v.SetDefault("charts.treemap_min_distinct", ch.TreemapMinDistinct)
	v.SetDefault("charts.treemap_max_distinct", ch.TreemapMaxDistinct)
	v.SetDefault("charts.heatmap_max_distinct", ch.HeatmapMaxDistinct)

	q := query.DefaultOptions()
	v.SetDefault("query.reasoning_timeout", q.ReasoningTimeout)
	v.SetDefault("query.insight_timeout", q.InsightTimeout)

	an := analysis.DefaultOptions()
	v.SetDefault("analysis.preview_rows", an.PreviewRows)
	v.SetDefault("analysis.question_timeout", an.QuestionTimeout)
	v.SetDefault("analysis.max_retries", an.MaxRetries)
	v.SetDefault("analysis.retry_interval", an.RetryInterval)

	v.SetDefault("conversations.max_turns", 20)
	v.SetDefault("conversations.idle_ttl", 2*time.Hour)
	v.SetDefault("conversations.janitor_interval", 5*time.Minute)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "chartgenie")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.insecure", true)
}

// providersFromEnv builds a fallback chain from well-known provider
// keys when none are configured explicitly. Groq goes first.
func providersFromEnv() []models.Provider {
	var out []models.Provider
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		out = append(out, models.Provider{
			Name:   "groq",
			Kind:   models.ProviderGroq,
			Model:  envOr("GROQ_MODEL", "llama-3.3-70b-versatile"),
			APIKey: key,
		})
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		out = append(out, models.Provider{
			Name:   "openai",
			Kind:   models.ProviderOpenAI,
			Model:  envOr("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey: key,
		})
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		out = append(out, models.Provider{
			Name:   "anthropic",
			Kind:   models.ProviderAnthropic,
			Model:  envOr("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			APIKey: key,
		})
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		out = append(out, models.Provider{
			Name:     "ollama",
			Kind:     models.ProviderOllama,
			Endpoint: strings.TrimSuffix(strings.TrimRight(host, "/"), "/v1") + "/v1",
			Model:    envOr("OLLAMA_MODEL", "llama3.1"),
		})
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		switch p.Kind {
		case models.ProviderOpenAI, models.ProviderGroq, models.ProviderAnthropic, models.ProviderOllama:
		default:
			return fmt.Errorf("providers[%d] %s: unknown kind %q", i, p.Name, p.Kind)
		}
	}
	if r := c.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1], got %g", r)
	}
	for i, h := range c.Notify.Webhooks {
		if !strings.HasPrefix(h.URL, "http://") && !strings.HasPrefix(h.URL, "https://") {
			return fmt.Errorf("notify.webhooks[%d]: url must be http(s), got %q", i, h.URL)
		}
	}
	return nil
}
