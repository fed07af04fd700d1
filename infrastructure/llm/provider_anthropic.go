package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// The engine's retry policy is the only retry layer.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		u, err := validateBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(u))
	}
	return &anthropicProvider{client: anthropic.NewClient(opts...), model: cfg.Model}, nil
}

func (p *anthropicProvider) Name() string  { return "anthropic" }
func (p *anthropicProvider) Model() string { return p.model }

// Generate has no JSON mode to enable; the prompts already demand a JSON
// object and the analyzers extract it from the reply.
func (p *anthropicProvider) Generate(ctx context.Context, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature != nil {
		// Anthropic accepts [0, 1].
		params.Temperature = anthropic.Float(clamp(*req.Temperature, 0, 1))
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, p.classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	out := text.String()
	if out == "" {
		return Response{}, NewProviderError(p.Name(), ErrorTypeServerError, 0, "no text content", ErrEmptyResponse)
	}
	return Response{
		Text:      out,
		TokensIn:  tokensOr(msg.Usage.InputTokens, req.Prompt),
		TokensOut: tokensOr(msg.Usage.OutputTokens, out),
	}, nil
}

func (p *anthropicProvider) classify(err error) error {
	if perr, ok := classifyContext(p.Name(), err); ok {
		return perr
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(p.Name(), apiErr.StatusCode, "request failed", err)
	}
	return NewProviderError(p.Name(), ErrorTypeUnknown, 0, "request failed", err)
}
