package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"newswatch/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration. It is loaded once per run
// and passed into components at construction time; nothing reads it as
// a global.
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:newswatch.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Search  SearchConfig  `yaml:"search" json:"search" jsonschema:"description=Search provider and collection pacing configuration"`
	Scoring ScoringConfig `yaml:"scoring" json:"scoring" jsonschema:"description=Relevance scoring configuration"`

	Entities struct {
		Clients     string `yaml:"clients" json:"clients" jsonschema:"default=config/clients.json,description=Path to client roster JSON"`
		Competitors string `yaml:"competitors" json:"competitors" jsonschema:"default=config/competitors.json,description=Path to competitor roster JSON"`
		Topics      string `yaml:"topics" json:"topics" jsonschema:"default=config/topics.json,description=Path to topic roster JSON"`
	} `yaml:"entities" json:"entities" jsonschema:"description=Entity roster file locations"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM configuration for executive summaries"`

	Monitor MonitorConfig `yaml:"monitor" json:"monitor" jsonschema:"description=Website change monitoring configuration"`
}

// SearchConfig holds search client, result sizing and pacing settings
type SearchConfig struct {
	Endpoint       string        `yaml:"endpoint" json:"endpoint" jsonschema:"required,description=Search provider HTTP endpoint"`
	APIKey         string        `yaml:"api_key" json:"api_key" jsonschema:"description=Provider API key (can use environment variable)"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Per-request timeout"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Newswatch/1.0,description=User agent for provider requests"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries" jsonschema:"default=5,description=Maximum retry attempts on rate limits"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff" jsonschema:"default=10s,description=Initial backoff on rate limits"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff" jsonschema:"default=120s,description=Backoff cap"`

	BatchSize    int           `yaml:"batch_size" json:"batch_size" jsonschema:"default=3,description=Entities per collection batch"`
	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay" jsonschema:"default=8s,description=Base delay between entity requests"`

	DefaultResults     int `yaml:"default_results" json:"default_results" jsonschema:"default=3,description=Articles per entity by default"`
	HighProfileResults int `yaml:"high_profile_results" json:"high_profile_results" jsonschema:"default=5,description=Articles per high-profile entity"`
	LowProfileResults  int `yaml:"low_profile_results" json:"low_profile_results" jsonschema:"default=4,description=Articles per low-profile entity"`
	TopicResults       int `yaml:"topic_results" json:"topic_results" jsonschema:"default=5,description=Articles per industry topic"`

	HighProfile []string `yaml:"high_profile" json:"high_profile" jsonschema:"description=Entities frequently in the news (more results and slower pacing)"`
	LowProfile  []string `yaml:"low_profile" json:"low_profile" jsonschema:"description=Entities rarely in the news (more results to find any signal)"`
}

// ScoringConfig holds relevance scoring settings. Aliases map an entity
// name to additional lower-case variations the scorer should match;
// kept as data so the table can be tuned per roster without code changes.
type ScoringConfig struct {
	MinRelevance float64             `yaml:"min_relevance" json:"min_relevance" jsonschema:"default=0.5,minimum=0,maximum=1,description=Minimum relevance to keep an article"`
	Aliases      map[string][]string `yaml:"aliases" json:"aliases" jsonschema:"description=Extra name variations per entity"`
}

// LLMConfig holds LLM configuration for summary generation
type LLMConfig struct {
	Endpoint     string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model        string        `yaml:"model" json:"model" jsonschema:"required,description=Model name"`
	Temperature  float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0,description=Temperature for response generation"`
	MaxTokens    int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=4000,description=Maximum tokens in response"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	SystemPrompt string        `yaml:"system_prompt" json:"system_prompt" jsonschema:"description=System prompt (optional)"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts" jsonschema:"default=3,description=Attempts before giving up on a summary"`
}

// MonitorConfig holds website change monitoring settings
type MonitorConfig struct {
	Delay     time.Duration `yaml:"delay" json:"delay" jsonschema:"default=5s,description=Delay between sites"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Per-page timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Newswatch/1.0,description=User agent for page requests"`
	Sites     []SiteConfig  `yaml:"sites" json:"sites" jsonschema:"description=Websites to monitor"`
}

// SiteConfig describes one monitored website and the CSS selectors used
// to pull news items off its page
type SiteConfig struct {
	Name         string `yaml:"name" json:"name" jsonschema:"required,description=Site display name"`
	URL          string `yaml:"url" json:"url" jsonschema:"required,description=Page URL"`
	ItemSelector string `yaml:"item_selector" json:"item_selector" jsonschema:"required,description=CSS selector for news items"`
	TitleSel     string `yaml:"title_selector" json:"title_selector" jsonschema:"description=CSS selector for item title (item text when empty)"`
	LinkSel      string `yaml:"link_selector" json:"link_selector" jsonschema:"description=CSS selector for item link (first anchor when empty)"`
	DateSel      string `yaml:"date_selector" json:"date_selector" jsonschema:"description=CSS selector for item date (optional)"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:newswatch.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for search
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 30 * time.Second
	}
	if cfg.Search.UserAgent == "" {
		cfg.Search.UserAgent = "Newswatch/1.0"
	}
	if cfg.Search.MaxRetries == 0 {
		cfg.Search.MaxRetries = 5
	}
	if cfg.Search.InitialBackoff == 0 {
		cfg.Search.InitialBackoff = 10 * time.Second
	}
	if cfg.Search.MaxBackoff == 0 {
		cfg.Search.MaxBackoff = 120 * time.Second
	}
	if cfg.Search.BatchSize == 0 {
		cfg.Search.BatchSize = 3
	}
	if cfg.Search.RequestDelay == 0 {
		cfg.Search.RequestDelay = 8 * time.Second
	}
	if cfg.Search.DefaultResults == 0 {
		cfg.Search.DefaultResults = 3
	}
	if cfg.Search.HighProfileResults == 0 {
		cfg.Search.HighProfileResults = 5
	}
	if cfg.Search.LowProfileResults == 0 {
		cfg.Search.LowProfileResults = 4
	}
	if cfg.Search.TopicResults == 0 {
		cfg.Search.TopicResults = 5
	}

	// set defaults for scoring
	if cfg.Scoring.MinRelevance == 0 {
		cfg.Scoring.MinRelevance = 0.5
	}

	// set defaults for entity rosters
	if cfg.Entities.Clients == "" {
		cfg.Entities.Clients = "config/clients.json"
	}
	if cfg.Entities.Competitors == "" {
		cfg.Entities.Competitors = "config/competitors.json"
	}
	if cfg.Entities.Topics == "" {
		cfg.Entities.Topics = "config/topics.json"
	}

	// set defaults for LLM
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.MaxAttempts == 0 {
		cfg.LLM.MaxAttempts = 3
	}

	// set defaults for monitor
	if cfg.Monitor.Delay == 0 {
		cfg.Monitor.Delay = 5 * time.Second
	}
	if cfg.Monitor.Timeout == 0 {
		cfg.Monitor.Timeout = 30 * time.Second
	}
	if cfg.Monitor.UserAgent == "" {
		cfg.Monitor.UserAgent = "Newswatch/1.0"
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Search.Endpoint == "" {
		return fmt.Errorf("search.endpoint is required")
	}
	if cfg.Search.MaxRetries < 1 {
		return fmt.Errorf("search.max_retries must be at least 1")
	}
	if cfg.Search.InitialBackoff > cfg.Search.MaxBackoff {
		return fmt.Errorf("search.initial_backoff must not exceed search.max_backoff")
	}
	if cfg.Search.BatchSize < 1 {
		return fmt.Errorf("search.batch_size must be at least 1")
	}
	if cfg.Scoring.MinRelevance < 0 || cfg.Scoring.MinRelevance > 1 {
		return fmt.Errorf("scoring.min_relevance must be between 0 and 1")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}
	for _, site := range cfg.Monitor.Sites {
		if site.URL == "" || site.ItemSelector == "" {
			return fmt.Errorf("monitor site %q needs url and item_selector", site.Name)
		}
	}
	return nil
}

// LoadEntities reads the roster file for the given kind. A missing or
// invalid roster is a setup problem and is returned as an error, unlike
// transient search failures which only degrade results.
func (c *Config) LoadEntities(kind domain.EntityKind) ([]domain.Entity, error) {
	var path string
	switch kind {
	case domain.KindClient:
		path = c.Entities.Clients
	case domain.KindCompetitor:
		path = c.Entities.Competitors
	case domain.KindTopic:
		path = c.Entities.Topics
	default:
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("read %s roster: %w", kind, err)
	}

	var entities []domain.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("parse %s roster: %w", kind, err)
	}

	return entities, nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetSearchConfig returns search configuration
func (c *Config) GetSearchConfig() SearchConfig {
	return c.Search
}

// GetLLMConfig returns LLM configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}
