package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/core"
	"newsdesk/internal/resilience"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model for labeling and analysis.
	DefaultModel = "gemini-1.5-flash"
	// DefaultEmbeddingModel is the default model for transcript embeddings.
	DefaultEmbeddingModel = "text-embedding-004"
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 60 * time.Second
)

// TextGenerator produces text, optionally constrained to a JSON schema.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error)
}

// Embedder turns documents into vectors, one per input, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Client represents a client for interacting with Gemini.
// A single Client is created at startup and shared by every stage.
type Client struct {
	apiKey         string
	modelName      string
	embeddingModel string
	dimensions     int32
	timeout        time.Duration
	retry          resilience.RetryConfig
	defaults       TextGenerationOptions
	gClient        *genai.Client
}

// TextGenerationOptions contains options for text generation
type TextGenerationOptions struct {
	MaxTokens      int32         // Maximum number of tokens to generate
	Temperature    float32       // Temperature for randomness (0.0 to 1.0)
	Model          string        // Model to use (optional, defaults to client's model)
	ResponseSchema *genai.Schema // Optional schema for structured JSON output
}

// Options configures a Client.
type Options struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Dimensions     int32
	Timeout        time.Duration
	MaxRetries     int
	MaxTokens      int32
	Temperature    float32
}

// OptionsFromConfig maps the gemini config section to client options.
func OptionsFromConfig(cfg config.GeminiConfig) Options {
	return Options{
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        config.Duration(cfg.Timeout, DefaultTimeout),
		MaxRetries:     cfg.MaxRetries,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
	}
}

// NewClient creates a new Gemini client from explicit options.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = DefaultEmbeddingModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	retry := resilience.DefaultRetryConfig()
	if opts.MaxRetries > 0 {
		retry.MaxAttempts = opts.MaxRetries
	}

	return &Client{
		apiKey:         opts.APIKey,
		modelName:      opts.Model,
		embeddingModel: opts.EmbeddingModel,
		dimensions:     opts.Dimensions,
		timeout:        opts.Timeout,
		retry:          retry,
		defaults:       TextGenerationOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature},
		gClient:        gClient,
	}, nil
}

// GenerateText generates text using the LLM with specified options.
// Transient provider errors are retried; the returned error wraps core.ErrProviderFailure.
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	modelName := c.modelName
	if options.Model != "" {
		modelName = options.Model
	}
	if options.MaxTokens == 0 {
		options.MaxTokens = c.defaults.MaxTokens
	}
	if options.Temperature == 0 {
		options.Temperature = c.defaults.Temperature
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	var cfg *genai.GenerateContentConfig
	if options.MaxTokens > 0 || options.Temperature > 0 || options.ResponseSchema != nil {
		cfg = &genai.GenerateContentConfig{}
		if options.MaxTokens > 0 {
			cfg.MaxOutputTokens = options.MaxTokens
		}
		if options.Temperature > 0 {
			temp := options.Temperature
			cfg.Temperature = &temp
		}
		if options.ResponseSchema != nil {
			cfg.ResponseMIMEType = "application/json"
			cfg.ResponseSchema = options.ResponseSchema
		}
	}

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("gemini", "generate")
	text, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.gClient.Models.GenerateContent(callCtx, modelName, contents, cfg)
		if err != nil {
			return "", classifyError(err)
		}
		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("empty response from LLM")
		}
		return text, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate text: %w", core.ErrProviderFailure, err)
	}
	return text, nil
}

// EmbedTexts returns one embedding per text. An empty vector for any input
// fails the whole call so callers never store a partial batch.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}, Role: "user"}
	}

	var cfg *genai.EmbedContentConfig
	if c.dimensions > 0 {
		dims := c.dimensions
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	retry := c.retry
	retry.OnRetry = resilience.RetryLogger("gemini", "embed")
	vectors, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([][]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.gClient.Models.EmbedContent(callCtx, c.embeddingModel, contents, cfg)
		if err != nil {
			return nil, classifyError(err)
		}
		if resp == nil || len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings from API", len(texts))
		}

		out := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			if e == nil || len(e.Values) == 0 {
				return nil, fmt.Errorf("empty embedding returned for input %d", i)
			}
			out[i] = e.Values
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate embeddings: %w", core.ErrProviderFailure, err)
	}
	return vectors, nil
}

// classifyError marks rate limits and server errors as retryable.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.Code) {
		return resilience.NewTransientError(err, apiErr.Code)
	}
	return err
}

// ExtractJSON strips markdown code fences some models wrap around JSON output.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Close cleans up resources used by the client
func (c *Client) Close() {
	// The genai client holds no resources that need releasing
}

// GetModelName returns the model name used by this client
func (c *Client) GetModelName() string {
	return c.modelName
}
