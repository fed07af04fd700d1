package llm

import (
	"context"
	"errors"
	"math"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

type googleProvider struct {
	client *genai.Client
	model  string
}

func newGoogleProvider(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	gcfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		u, err := validateBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		gcfg.HTTPOptions = genai.HTTPOptions{BaseURL: u}
	}
	client, err := genai.NewClient(context.Background(), gcfg)
	if err != nil {
		return nil, err
	}
	return &googleProvider{client: client, model: cfg.Model}, nil
}

func (p *googleProvider) Name() string  { return "google" }
func (p *googleProvider) Model() string { return p.model }

func (p *googleProvider) Generate(ctx context.Context, req Request) (Response, error) {
	gen := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(min(req.MaxTokens, math.MaxInt32)),
	}
	if req.System != "" {
		gen.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		gen.Temperature = genai.Ptr(float32(clamp(*req.Temperature, MinTemperature, MaxTemperature)))
	}
	if req.JSON {
		gen.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}, gen)
	if err != nil {
		return Response{}, p.classify(err)
	}

	text := resp.Text()
	if text == "" {
		return Response{}, NewProviderError(p.Name(), ErrorTypeContentPolicy, 0, "no text candidates", ErrEmptyResponse)
	}

	var in, out int64
	if u := resp.UsageMetadata; u != nil {
		in, out = int64(u.PromptTokenCount), int64(u.CandidatesTokenCount)
	}
	return Response{
		Text:      text,
		TokensIn:  tokensOr(in, req.Prompt),
		TokensOut: tokensOr(out, text),
	}, nil
}

func (p *googleProvider) classify(err error) error {
	if perr, ok := classifyContext(p.Name(), err); ok {
		return perr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if isSafetyMessage(apiErr.Message) {
			return NewProviderError(p.Name(), ErrorTypeContentPolicy, apiErr.Code, "blocked by safety filters", err)
		}
		return classifyStatus(p.Name(), apiErr.Code, apiErr.Message, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		msg := gErr.Message
		if msg == "" && len(gErr.Errors) > 0 {
			msg = gErr.Errors[0].Message
		}
		for _, item := range gErr.Errors {
			if item.Reason == "SAFETY" || item.Reason == "BLOCKED" {
				return NewProviderError(p.Name(), ErrorTypeContentPolicy, gErr.Code, "blocked by safety filters", err)
			}
		}
		if isSafetyMessage(msg) {
			return NewProviderError(p.Name(), ErrorTypeContentPolicy, gErr.Code, "blocked by safety filters", err)
		}
		return classifyStatus(p.Name(), gErr.Code, msg, err)
	}

	return NewProviderError(p.Name(), ErrorTypeUnknown, 0, "request failed", err)
}

func isSafetyMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "safety") || strings.Contains(lower, "blocked")
}
