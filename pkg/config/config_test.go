package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswatch/pkg/domain"
)

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configContent := `
server:
  listen: ":9090"
  timeout: 45s

search:
  endpoint: https://search.example.com/news
  api_key: test-key
  max_retries: 4
  initial_backoff: 2s
  max_backoff: 30s
  batch_size: 2
  request_delay: 3s
  high_profile:
    - BigCorp
  low_profile:
    - TinyCo

scoring:
  min_relevance: 0.6
  aliases:
    BigCorp:
      - bc
      - big corp inc
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)

		assert.Equal(t, "https://search.example.com/news", cfg.Search.Endpoint)
		assert.Equal(t, "test-key", cfg.Search.APIKey)
		assert.Equal(t, 4, cfg.Search.MaxRetries)
		assert.Equal(t, 2*time.Second, cfg.Search.InitialBackoff)
		assert.Equal(t, 30*time.Second, cfg.Search.MaxBackoff)
		assert.Equal(t, 2, cfg.Search.BatchSize)
		assert.Equal(t, 3*time.Second, cfg.Search.RequestDelay)
		assert.Equal(t, []string{"BigCorp"}, cfg.Search.HighProfile)
		assert.Equal(t, []string{"TinyCo"}, cfg.Search.LowProfile)

		assert.InDelta(t, 0.6, cfg.Scoring.MinRelevance, 0.0001)
		assert.Equal(t, []string{"bc", "big corp inc"}, cfg.Scoring.Aliases["BigCorp"])
	})

	t.Run("defaults", func(t *testing.T) {
		configContent := `
search:
  endpoint: https://search.example.com/news
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// check server defaults
		assert.Equal(t, ":8080", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)

		// check search defaults
		assert.Equal(t, 5, cfg.Search.MaxRetries)
		assert.Equal(t, 10*time.Second, cfg.Search.InitialBackoff)
		assert.Equal(t, 120*time.Second, cfg.Search.MaxBackoff)
		assert.Equal(t, 3, cfg.Search.BatchSize)
		assert.Equal(t, 8*time.Second, cfg.Search.RequestDelay)
		assert.Equal(t, 3, cfg.Search.DefaultResults)
		assert.Equal(t, 5, cfg.Search.HighProfileResults)
		assert.Equal(t, 4, cfg.Search.LowProfileResults)
		assert.Equal(t, 5, cfg.Search.TopicResults)

		// check scoring and roster defaults
		assert.InDelta(t, 0.5, cfg.Scoring.MinRelevance, 0.0001)
		assert.Equal(t, "config/clients.json", cfg.Entities.Clients)
		assert.Equal(t, "config/competitors.json", cfg.Entities.Competitors)
		assert.Equal(t, "config/topics.json", cfg.Entities.Topics)

		// check llm defaults
		assert.Equal(t, 4000, cfg.LLM.MaxTokens)
		assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	})

	t.Run("environment variable expansion", func(t *testing.T) {
		t.Setenv("TEST_SEARCH_KEY", "secret-from-env")
		configContent := `
search:
  endpoint: https://search.example.com/news
  api_key: ${TEST_SEARCH_KEY}
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "secret-from-env", cfg.Search.APIKey)
	})

	t.Run("file not found", func(t *testing.T) {
		cfg, err := Load("/non/existent/file.yml")
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configContent := `
invalid yaml content
  with bad indentation
    and no structure
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("missing search endpoint", func(t *testing.T) {
		configContent := `
server:
  listen: ":8080"
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "search.endpoint is required")
	})

	t.Run("backoff exceeds cap", func(t *testing.T) {
		configContent := `
search:
  endpoint: https://search.example.com/news
  initial_backoff: 5m
  max_backoff: 1m
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "initial_backoff must not exceed")
	})

	t.Run("monitor site missing selector", func(t *testing.T) {
		configContent := `
search:
  endpoint: https://search.example.com/news

monitor:
  sites:
    - name: Broken Site
      url: https://broken.example.com/news
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "Broken Site")
	})
}

func TestConfig_LoadEntities(t *testing.T) {
	t.Run("valid rosters", func(t *testing.T) {
		tmpDir := t.TempDir()
		clientsPath := filepath.Join(tmpDir, "clients.json")
		err := os.WriteFile(clientsPath, []byte(`[
			{"name": "Acme Corp"},
			{"name": "Globex", "query": "\"Globex\" OR \"Globex Corporation\""}
		]`), 0o644)
		require.NoError(t, err)

		topicsPath := filepath.Join(tmpDir, "topics.json")
		err = os.WriteFile(topicsPath, []byte(`[
			{"name": "Grid Storage", "category": "Energy"}
		]`), 0o644)
		require.NoError(t, err)

		cfg := &Config{}
		cfg.Entities.Clients = clientsPath
		cfg.Entities.Topics = topicsPath

		clients, err := cfg.LoadEntities(domain.KindClient)
		require.NoError(t, err)
		require.Len(t, clients, 2)
		assert.Equal(t, "Acme Corp", clients[0].Name)
		assert.Equal(t, `"Acme Corp"`, clients[0].SearchQuery())
		assert.Equal(t, `"Globex" OR "Globex Corporation"`, clients[1].SearchQuery())

		topics, err := cfg.LoadEntities(domain.KindTopic)
		require.NoError(t, err)
		require.Len(t, topics, 1)
		assert.Equal(t, "Energy: Grid Storage", topics[0].DisplayName())
	})

	t.Run("missing roster file", func(t *testing.T) {
		cfg := &Config{}
		cfg.Entities.Competitors = "/non/existent/competitors.json"

		entities, err := cfg.LoadEntities(domain.KindCompetitor)
		require.Error(t, err)
		assert.Nil(t, entities)
		assert.Contains(t, err.Error(), "read competitor roster")
	})

	t.Run("invalid roster json", func(t *testing.T) {
		tmpDir := t.TempDir()
		clientsPath := filepath.Join(tmpDir, "clients.json")
		err := os.WriteFile(clientsPath, []byte(`{"not": "a list"}`), 0o644)
		require.NoError(t, err)

		cfg := &Config{}
		cfg.Entities.Clients = clientsPath

		entities, err := cfg.LoadEntities(domain.KindClient)
		require.Error(t, err)
		assert.Nil(t, entities)
		assert.Contains(t, err.Error(), "parse client roster")
	})

	t.Run("unknown kind", func(t *testing.T) {
		cfg := &Config{}
		entities, err := cfg.LoadEntities(domain.EntityKind("partner"))
		require.Error(t, err)
		assert.Nil(t, entities)
	})
}

func TestConfig_GetServerConfig(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Listen = ":9090"
	cfg.Server.Timeout = 45 * time.Second

	listen, timeout := cfg.GetServerConfig()
	assert.Equal(t, ":9090", listen)
	assert.Equal(t, 45*time.Second, timeout)
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)
}
