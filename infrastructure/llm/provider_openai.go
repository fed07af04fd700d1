package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

type openAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIProvider(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := validateBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		clientCfg.BaseURL = u
	}
	// Request deadlines come from the context, not the transport.
	clientCfg.HTTPClient = &http.Client{}

	return &openAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

func (p *openAIProvider) Name() string  { return "openai" }
func (p *openAIProvider) Model() string { return p.model }

func (p *openAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	creq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		creq.Temperature = float32(clamp(*req.Temperature, MinTemperature, MaxTemperature))
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return Response{}, p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, NewProviderError(p.Name(), ErrorTypeServerError, 0, "no choices returned", ErrEmptyResponse)
	}

	text := resp.Choices[0].Message.Content
	return Response{
		Text:      text,
		TokensIn:  tokensOr(int64(resp.Usage.PromptTokens), req.Prompt),
		TokensOut: tokensOr(int64(resp.Usage.CompletionTokens), text),
	}, nil
}

func (p *openAIProvider) classify(err error) error {
	if perr, ok := classifyContext(p.Name(), err); ok {
		return perr
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = "unknown error"
		}
		return classifyStatus(p.Name(), apiErr.HTTPStatusCode, msg, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(p.Name(), reqErr.HTTPStatusCode, "request failed", err)
	}
	return NewProviderError(p.Name(), ErrorTypeUnknown, 0, "request failed", err)
}
