// Package llm generates executive summaries of collected news through
// an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/sashabaranov/go-openai"

	"newswatch/pkg/config"
	"newswatch/pkg/domain"
)

// Summarizer produces markdown summaries of collected news records
type Summarizer struct {
	client    *openai.Client
	config    config.LLMConfig
	systemMsg string

	sleep func(ctx context.Context, d time.Duration) bool // replaced in tests
}

// NewSummarizer creates a summarizer from LLM config
func NewSummarizer(cfg config.LLMConfig) *Summarizer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	// use custom system prompt if provided, otherwise use default
	systemMsg := cfg.SystemPrompt
	if systemMsg == "" {
		systemMsg = defaultSystemPrompt
	}

	return &Summarizer{
		client:    openai.NewClientWithConfig(clientConfig),
		config:    cfg,
		systemMsg: systemMsg,
		sleep:     sleepCtx,
	}
}

const defaultSystemPrompt = `You are an expert analyst creating executive news summaries. Your output is direct, factual, and focused on the most significant developments.`

// Request carries the news records to summarize, grouped by roster
type Request struct {
	Period      string // "day" or "week", used in the prompt wording
	Clients     []domain.Record
	Competitors []domain.Record
	Topics      []domain.Record
}

// Summarize generates a markdown executive summary of the given records.
// Transient API failures are retried with exponentially growing waits up
// to the configured attempt limit.
func (s *Summarizer) Summarize(ctx context.Context, req Request) (string, error) {
	total := len(req.Clients) + len(req.Competitors) + len(req.Topics)
	if total == 0 {
		return "", fmt.Errorf("no records to summarize")
	}

	prompt, err := s.buildPrompt(req)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	attempts := s.config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.config.Model,
			Temperature: float32(s.config.Temperature),
			MaxTokens:   s.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: s.systemMsg},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("no response from llm")
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		wait := time.Duration(1<<attempt) * time.Second
		lgr.Printf("[WARN] summary attempt %d/%d failed, retrying in %v: %v", attempt, attempts, wait, err)
		if !s.sleep(ctx, wait) {
			return "", fmt.Errorf("summary cancelled: %w", ctx.Err())
		}
	}
	return "", fmt.Errorf("summary failed after %d attempts: %w", attempts, lastErr)
}

// promptArticle is the per-article shape embedded in the prompt JSON
type promptArticle struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Source  string `json:"source"`
	Excerpt string `json:"excerpt"`
	URL     string `json:"url"`
}

// buildPrompt renders records into a JSON payload grouped by roster and
// entity, wrapped in the summary instructions
func (s *Summarizer) buildPrompt(req Request) (string, error) {
	data := map[string]map[string][]promptArticle{
		"clients":     groupByEntity(req.Clients),
		"competitors": groupByEntity(req.Competitors),
		"topics":      groupByEntity(req.Topics),
	}
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal news data: %w", err)
	}

	period := req.Period
	if period == "" {
		period = "week"
	}

	prompt := fmt.Sprintf(`Create a concise executive news summary covering the past %[1]s for the companies and industry topics in the data below.

Instructions:

1. Create a markdown document titled "Executive News Summary" with today's date.
2. Create three main sections: "Client Companies" for the "clients" object, "Competitor Companies" for the "competitors" object, and "Industry Topics" for the "topics" object. Omit a section when its object is empty.
3. Within each section, add a subsection header per entity that has news.
4. Write a single paragraph (3-5 sentences) summarizing the most significant news for each entity. Be direct, start immediately with the news, and include specific facts and figures when available.
5. Only include news where the entity plays a significant role; ignore passing mentions and reports the entity merely published about others.
6. Keep every entity under the section matching its object in the data; never move a company between sections.
7. Format the output as a clean, professional markdown document.

News data:
%[2]s`, period, string(jsonData))
	return prompt, nil
}

// groupByEntity shapes records into prompt articles keyed by entity name
func groupByEntity(records []domain.Record) map[string][]promptArticle {
	out := make(map[string][]promptArticle)
	for _, r := range records {
		date := r.PublishedRaw
		if !r.Published.IsZero() {
			date = r.Published.Format("2006-01-02")
		}
		out[r.Entity] = append(out[r.Entity], promptArticle{
			Title:   r.Title,
			Date:    date,
			Source:  r.Source,
			Excerpt: r.Excerpt,
			URL:     r.URL,
		})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
