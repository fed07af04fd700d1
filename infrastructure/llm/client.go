// Package llm adapts hosted language models (OpenAI, Anthropic, Google) to
// ports.LLMClient, the completion interface the analyzers depend on.
//
// Each provider implements Provider. Cross-cutting concerns are layered as
// Middleware around the provider in a fixed order:
//
//	tracing -> metrics -> rate limit -> timeout -> provider
//
// Retries are not handled here. The engine's retry policy owns them, so the
// provider SDKs are configured not to retry on their own.
//
// Basic usage:
//
//	client, err := llm.New(llm.Config{
//	    Provider: "openai",
//	    APIKey:   os.Getenv("OPENAI_API_KEY"),
//	    Model:    "gpt-4o-mini",
//	})
//	text, err := client.Complete(ctx, prompt, map[string]any{"system": sys, "json": true})
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-vidrank/internal/ports"
)

// DefaultMaxTokens bounds completion length when the caller sets no limit.
const DefaultMaxTokens = 2048

// Request is one completion call in provider-neutral form.
type Request struct {
	Prompt string
	System string
	Model  string

	// Temperature is nil when the provider default applies.
	Temperature *float64
	MaxTokens   int

	// JSON asks the provider for a JSON object reply where supported.
	JSON bool
}

// Response is the text of a completion plus token usage.
type Response struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Provider is the minimal contract each model vendor implements.
type Provider interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
	Model() string
}

// Middleware wraps a Provider with one cross-cutting concern.
type Middleware func(Provider) Provider

// ProviderFactory builds a Provider from configuration.
type ProviderFactory func(Config) (Provider, error)

var providerFactories = map[string]ProviderFactory{
	"openai":    newOpenAIProvider,
	"anthropic": newAnthropicProvider,
	"google":    newGoogleProvider,
}

// Config selects a provider and the middleware applied around it.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string

	// Timeout bounds each request. Zero disables the per-request timeout.
	Timeout time.Duration

	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64
	Burst             int

	// Temperature is applied when a call does not set one.
	Temperature *float64

	Metrics ports.MetricsCollector
	Tracer  trace.Tracer

	// Middleware runs outside the standard chain, first entry outermost.
	Middleware []Middleware
}

// Client implements ports.LLMClient over a middleware-wrapped Provider.
type Client struct {
	provider    Provider
	model       string
	temperature *float64
}

var _ ports.LLMClient = (*Client)(nil)

// New builds a client for cfg.Provider.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	factory, ok := providerFactories[strings.ToLower(cfg.Provider)]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	p, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}
	return NewWithProvider(p, cfg), nil
}

// NewWithProvider wraps an existing provider with the middleware chain that
// cfg describes. Tests use it to inject fakes.
func NewWithProvider(p Provider, cfg Config) *Client {
	var chain []Middleware
	chain = append(chain, cfg.Middleware...)
	if cfg.Tracer != nil {
		chain = append(chain, TracingMiddleware(cfg.Tracer))
	}
	if cfg.Metrics != nil {
		chain = append(chain, MetricsMiddleware(cfg.Metrics))
	}
	if cfg.RequestsPerSecond > 0 {
		chain = append(chain, RateLimitMiddleware(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1)))
	}
	if cfg.Timeout > 0 {
		chain = append(chain, TimeoutMiddleware(cfg.Timeout))
	}

	// Apply in reverse so the first entry is the outermost.
	for i := len(chain) - 1; i >= 0; i-- {
		p = chain[i](p)
	}
	return &Client{provider: p, model: p.Model(), temperature: cfg.Temperature}
}

// Complete sends prompt and returns the reply text. Recognised options:
// "system" (string), "temperature" (float64), "max_tokens" (int),
// "model" (string) and "json" (bool). Errors are wrapped in *ports.LLMError.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	req := requestFromOptions(prompt, options, c.model)
	if req.Temperature == nil && c.temperature != nil {
		t := *c.temperature
		req.Temperature = &t
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return "", ports.NewLLMError(req.Model, "complete", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", ports.NewLLMError(req.Model, "complete", ErrEmptyResponse)
	}
	return resp.Text, nil
}

// EstimateTokens approximates four characters per token.
func (c *Client) EstimateTokens(text string) (int, error) {
	return estimateTokens(text), nil
}

// GetModel returns the default model of the client.
func (c *Client) GetModel() string { return c.model }

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// tokensOr prefers a usage count reported by the provider.
func tokensOr(reported int64, text string) int {
	if reported > 0 {
		return int(reported)
	}
	return estimateTokens(text)
}
