// Package instruct implements the instruction-generator boundary: an
// OpenAI-compatible chat completion client that turns the supervision
// context (conversation turns, intervention reason and kind) into the
// next instruction for the monitored agent, plus the credential storage
// used to hold its API key.
package instruct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config tunes the generator client.
type Config struct {
	// BaseURL is the OpenAI-compatible API root (default:
	// https://api.openai.com/v1). Works with any compatible endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests. Usually resolved from the keyring
	// or vault rather than written here; supports ${VAR} references.
	APIKey string `yaml:"api_key"`

	// Model is the completion model name (default: gpt-4o).
	Model string `yaml:"model"`

	// Timeout bounds one completion request (default: 60s).
	Timeout time.Duration `yaml:"timeout"`

	// SystemPrompt overrides the built-in supervisor persona.
	SystemPrompt string `yaml:"system_prompt"`
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
		Timeout: 60 * time.Second,
	}
}

// defaultSystemPrompt frames the model as the project lead steering a
// coding agent through short chat instructions.
const defaultSystemPrompt = `You are the project lead supervising an AI coding agent through its chat window.
You see only the agent's on-screen output. Reply with exactly one short, concrete
instruction for the agent: what to do next, stated directly, no preamble and no
commentary. If the agent asked a question, answer it decisively. If it finished
a task, name the next task. If it is stuck, tell it which approach to take.`

// ---------- Wire types (OpenAI-compatible) ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client is the chat-completion instruction generator.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a generator client from config.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = def.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = def.Model
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = def.Timeout
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       cfg.APIKey,
		model:        model,
		systemPrompt: systemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger.With("component", "instruct"),
	}
}

// Generate produces the next instruction for the monitored agent.
// promptContext is the turn manager's rendering of recent conversation;
// reason and kind describe the supervision decision that triggered it.
func (c *Client) Generate(ctx context.Context, promptContext, reason, kind string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured, run 'steward auth set' or set STEWARD_API_KEY")
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: buildPrompt(promptContext, reason, kind)},
		},
		Temperature: 0.4,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("requesting instruction", "model", c.model, "kind", kind, "endpoint", endpoint)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("API error", "status", resp.StatusCode, "body", preview(string(respBody), 500))
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, preview(string(respBody), 500))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	instruction := strings.TrimSpace(chatResp.Choices[0].Message.Content)

	c.logger.Info("instruction generated",
		"model", c.model,
		"kind", kind,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
	)

	return instruction, nil
}

// buildPrompt assembles the user message: what happened, why the
// supervisor stepped in, and kind-specific steering.
func buildPrompt(promptContext, reason, kind string) string {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	b.WriteString(promptContext)
	b.WriteString("\n\nSupervision trigger: ")
	b.WriteString(reason)
	b.WriteString("\n")

	switch kind {
	case "response_completed":
		b.WriteString("The agent finished its current task. Give the next concrete task, " +
			"or the first improvement to make to what it just delivered.")
	case "content_timeout":
		b.WriteString("The agent's output has not changed for a while. It is likely waiting " +
			"or stuck. Unblock it: answer any open question, or tell it the next step explicitly.")
	case "force_progress":
		b.WriteString("The session has made no progress for several minutes despite repeated " +
			"checks. Issue a firm, unambiguous instruction that changes the situation, " +
			"such as switching approach or starting the next task.")
	default:
		b.WriteString("Give the agent its next instruction.")
	}

	return b.String()
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
