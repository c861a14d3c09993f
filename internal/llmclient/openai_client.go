// internal/llmclient/openai_client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/logsurgeon/api/schemas"
	"github.com/xkilldash9x/logsurgeon/internal/config"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClient implements the schemas.LLMClient interface against any
// chat-completions compatible endpoint. It serves both the hosted OpenAI API
// and local Ollama servers, which speak the same dialect.
type OpenAIClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	config     config.LLMModelConfig

	backoffFactory func() backoff.BackOff
}

// -- Chat Completions Request/Response Structures (Internal to this file) --

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	TopP           float64               `json:"top_p,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIClient initializes the client. For the Ollama provider an explicit
// endpoint is mandatory and the API key is optional; for OpenAI it is the
// other way around.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	endpoint := cfg.Endpoint
	switch cfg.Provider {
	case config.ProviderOllama:
		if endpoint == "" {
			return nil, fmt.Errorf("Ollama endpoint is required (e.g. http://localhost:11434/v1/chat/completions)")
		}
	default:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API Key is required")
		}
		if endpoint == "" {
			endpoint = defaultOpenAIEndpoint
		}
	}

	return &OpenAIClient{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		config:   cfg,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("llm_client.openai"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Generate sends the prompts to the chat-completions endpoint and returns the
// generated content, retrying transient failures with exponential backoff.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	payload := c.buildRequestPayload(req)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	var responseContent string

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload openAIResponse
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		if responsePayload.Error != nil {
			return backoff.Permanent(fmt.Errorf("chat completions API error: %s (%s)", responsePayload.Error.Message, responsePayload.Error.Type))
		}
		if len(responsePayload.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("chat completions API returned no choices"))
		}

		choice := responsePayload.Choices[0]
		if choice.Message.Content == "" {
			if choice.FinishReason == "content_filter" {
				return backoff.Permanent(fmt.Errorf("chat completions API blocked the request (Reason: %s)", choice.FinishReason))
			}
			return fmt.Errorf("chat completions API returned empty content (Reason: %s)", choice.FinishReason)
		}

		c.logger.Info("LLM generation complete (chat completions)",
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", responsePayload.Usage.PromptTokens),
			zap.Int("completion_tokens", responsePayload.Usage.CompletionTokens),
			zap.Int("total_tokens", responsePayload.Usage.TotalTokens),
		)

		responseContent = choice.Message.Content
		return nil
	}

	if err = backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", err
	}

	return responseContent, nil
}

// Close releases idle connections held by the underlying HTTP client.
func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *OpenAIClient) buildRequestPayload(req schemas.GenerationRequest) openAIRequest {
	payload := openAIRequest{
		Model: c.config.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: req.Options.Temperature,
		TopP:        float64(c.config.TopP),
		MaxTokens:   c.config.MaxTokens,
	}

	// Per-request options win over the model defaults.
	if req.Options.TopP > 0 {
		payload.TopP = req.Options.TopP
	}
	if req.Options.MaxTokens > 0 {
		payload.MaxTokens = req.Options.MaxTokens
	}
	if req.Options.ForceJSONFormat {
		payload.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	return payload
}

func (c *OpenAIClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Chat completions API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("chat completions API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err) // Permanent errors.
	}
}
