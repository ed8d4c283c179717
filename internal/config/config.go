package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SurveyInsights/internal/ranking"
)

const (
	defaultTimezone = "UTC"
	defaultInterval = 24 * time.Hour

	configPathEnv     = "SURVEY_INSIGHTS_CONFIG"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	openAIModelEnv    = "OPENAI_MODEL"
	pineconeAPIKeyEnv = "PINECONE_API_KEY"
	pineconeHostEnv   = "PINECONE_INDEX_HOST"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	googleCredsEnv    = "GOOGLE_CREDENTIALS_FILE"
	redisAddrEnv      = "REDIS_ADDR"
	excelPathEnv      = "SURVEY_EXCEL_PATH"
)

// ErrMissingSetting reports a required setting that is empty.
var ErrMissingSetting = errors.New("missing setting")

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	LLM           LLMConfig          `yaml:"llm"`
	Retrieval     RetrievalConfig    `yaml:"retrieval"`
	Ingest        IngestConfig       `yaml:"ingest"`
	Spreadsheet   SpreadsheetConfig  `yaml:"spreadsheet"`
	Prompt        PromptConfig       `yaml:"prompt"`
	Publish       PublishConfig      `yaml:"publish"`
	Notifications NotificationConfig `yaml:"notifications"`
	Cache         CacheConfig        `yaml:"cache"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Survey        SurveyConfig       `yaml:"survey"`
	Ranking       ranking.Config     `yaml:"ranking"`
}

// LoggingConfig selects level and handler ("text", "json" or "pretty").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines how often the batch of questions is re-run.
type SchedulerConfig struct {
	Interval string         `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Every parses Interval, falling back to one day.
func (s SchedulerConfig) Every() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil || d <= 0 {
		return defaultInterval
	}
	return d
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LLMConfig defines how to contact the OpenAI-compatible API.
type LLMConfig struct {
	BaseURL             string  `yaml:"baseUrl"`
	APIKey              string  `yaml:"apiKey"`
	Model               string  `yaml:"model"`
	Temperature         float64 `yaml:"temperature"`
	SystemPrompt        string  `yaml:"systemPrompt"`
	EmbeddingModel      string  `yaml:"embeddingModel"`
	EmbeddingDimensions int     `yaml:"embeddingDimensions"`
	Timeout             string  `yaml:"timeout"`
}

// RequestTimeout parses Timeout, falling back to one minute.
func (l LLMConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(l.Timeout)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// RetrievalConfig selects the question index.
type RetrievalConfig struct {
	Provider      string         `yaml:"provider"`
	TopK          int            `yaml:"topK"`
	QueryTemplate string         `yaml:"queryTemplate"`
	Namespace     string         `yaml:"namespace"`
	Pinecone      PineconeConfig `yaml:"pinecone"`
	Milvus        MilvusConfig   `yaml:"milvus"`
}

// PineconeConfig addresses a serverless Pinecone index.
type PineconeConfig struct {
	IndexHost string `yaml:"indexHost"`
	APIKey    string `yaml:"apiKey"`
}

// MilvusConfig addresses a Milvus collection.
type MilvusConfig struct {
	Address    string `yaml:"address"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Collection string `yaml:"collection"`
}

// IngestConfig controls questionnaire chunking.
type IngestConfig struct {
	ChunkTokens   int    `yaml:"chunkTokens"`
	OverlapTokens int    `yaml:"overlapTokens"`
	Encoding      string `yaml:"encoding"`
	BatchSize     int    `yaml:"batchSize"`
}

// SpreadsheetConfig locates the tabulation workbook.
type SpreadsheetConfig struct {
	Path       string `yaml:"path"`
	Sheet      string `yaml:"sheet"`
	WindowSize int    `yaml:"windowSize"`
	MaxColumns int    `yaml:"maxColumns"`
}

// PromptConfig carries study-level prompt settings.
type PromptConfig struct {
	Brand           string `yaml:"brand"`
	StudyContext    string `yaml:"studyContext"`
	BaseSize        int    `yaml:"baseSize"`
	Insights        int    `yaml:"insights"`
	Recommendations int    `yaml:"recommendations"`
	Template        string `yaml:"template"`
}

// PublishConfig selects where finished reports go ("gdocs", "s3" or "none").
type PublishConfig struct {
	Provider   string           `yaml:"provider"`
	GoogleDocs GoogleDocsConfig `yaml:"googleDocs"`
	S3         S3Config         `yaml:"s3"`
}

// GoogleDocsConfig holds service-account credentials for the Docs API.
type GoogleDocsConfig struct {
	CredentialsFile string `yaml:"credentialsFile"`
	Endpoint        string `yaml:"endpoint"`
}

// S3Config addresses an S3-compatible bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	PublicBaseURL   string `yaml:"publicBaseUrl"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// CacheConfig selects the embedding cache ("memory", "redis" or "none").
type CacheConfig struct {
	Provider  string `yaml:"provider"`
	RedisAddr string `yaml:"redisAddr"`
	Capacity  int    `yaml:"capacity"`
	TTL       string `yaml:"ttl"`
}

// Expiry parses TTL, falling back to one day.
func (c CacheConfig) Expiry() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// MetricsConfig exposes the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// SurveyConfig lists the questions the scheduled batch asks.
type SurveyConfig struct {
	Questions []string `yaml:"questions"`
}

// Load reads .env, YAML configuration (if present) and applies environment overrides.
// path wins over SURVEY_INSIGHTS_CONFIG. Problems are logged and defaults kept.
func Load(path string) Config {
	loadDotEnv()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}

	cfg := defaultConfig()
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = fileCfg
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	return cfg
}

// LoadFile decodes the YAML file at path over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("cannot parse %s: %w", path, err)
	}
	if err := cfg.Ranking.Validate(); err != nil {
		return defaultConfig(), fmt.Errorf("ranking section of %s: %w", path, err)
	}
	return cfg, nil
}

// RequireAsk reports every setting the ask path cannot run without.
func (c Config) RequireAsk() error {
	var result *multierror.Error
	result = require(result, "llm.apiKey", c.LLM.APIKey)
	result = require(result, "spreadsheet.path", c.Spreadsheet.Path)
	result = multierror.Append(result, c.requireIndex())
	return result.ErrorOrNil()
}

// RequireIngest reports every setting the ingest path cannot run without.
func (c Config) RequireIngest() error {
	var result *multierror.Error
	result = require(result, "llm.apiKey", c.LLM.APIKey)
	result = multierror.Append(result, c.requireIndex())
	return result.ErrorOrNil()
}

func (c Config) requireIndex() error {
	var result *multierror.Error
	switch c.Retrieval.Provider {
	case "pinecone":
		result = require(result, "retrieval.pinecone.indexHost", c.Retrieval.Pinecone.IndexHost)
		result = require(result, "retrieval.pinecone.apiKey", c.Retrieval.Pinecone.APIKey)
	case "milvus":
		result = require(result, "retrieval.milvus.address", c.Retrieval.Milvus.Address)
		result = require(result, "retrieval.milvus.collection", c.Retrieval.Milvus.Collection)
	case "pgvector":
		result = require(result, "database.dsn", c.Database.DSN)
	default:
		result = multierror.Append(result, fmt.Errorf("retrieval.provider %q: unsupported", c.Retrieval.Provider))
	}
	return result.ErrorOrNil()
}

func require(result *multierror.Error, name, value string) *multierror.Error {
	if value == "" {
		return multierror.Append(result, fmt.Errorf("%w: %s", ErrMissingSetting, name))
	}
	return result
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{openAIAPIKeyEnv, &c.LLM.APIKey},
		{openAIModelEnv, &c.LLM.Model},
		{pineconeAPIKeyEnv, &c.Retrieval.Pinecone.APIKey},
		{pineconeHostEnv, &c.Retrieval.Pinecone.IndexHost},
		{databaseDSNEnv, &c.Database.DSN},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
		{googleCredsEnv, &c.Publish.GoogleDocs.CredentialsFile},
		{redisAddrEnv, &c.Cache.RedisAddr},
		{excelPathEnv, &c.Spreadsheet.Path},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{Interval: "24h", Timezone: defaultTimezone, location: tz},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4",
			Temperature:    0.7,
			SystemPrompt:   "You are an expert market research analyst.",
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        "60s",
		},
		Retrieval: RetrievalConfig{
			Provider:      "pinecone",
			TopK:          20,
			QueryTemplate: "Survey question about: %s",
			Milvus:        MilvusConfig{Collection: "survey_questions"},
		},
		Ingest: IngestConfig{
			ChunkTokens:   400,
			OverlapTokens: 100,
			Encoding:      "cl100k_base",
			BatchSize:     100,
		},
		Spreadsheet: SpreadsheetConfig{Sheet: "col%", WindowSize: 25, MaxColumns: 10},
		Prompt: PromptConfig{
			Brand:           "the brand",
			StudyContext:    "a general market research study",
			BaseSize:        1000,
			Insights:        3,
			Recommendations: 2,
		},
		Publish: PublishConfig{Provider: "none", S3: S3Config{Region: "us-east-1", Prefix: "reports/"}},
		Cache:   CacheConfig{Provider: "memory", Capacity: 512, TTL: "24h"},
		Ranking: ranking.DefaultConfig(),
	}
}
