package llm

import (
	"fmt"
	"net/url"
)

// Parameter bounds shared by all providers.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// requestFromOptions maps the loosely typed ports.LLMClient options onto a
// Request. Values of the wrong type or out of range are ignored.
func requestFromOptions(prompt string, opts map[string]any, defaultModel string) Request {
	req := Request{
		Prompt:    prompt,
		Model:     defaultModel,
		MaxTokens: DefaultMaxTokens,
	}
	if s, ok := opts["system"].(string); ok {
		req.System = s
	}
	if m, ok := opts["model"].(string); ok && m != "" {
		req.Model = m
	}
	if n, ok := asInt(opts["max_tokens"]); ok && n > 0 {
		req.MaxTokens = n
	}
	if t, ok := asFloat(opts["temperature"]); ok && t >= MinTemperature && t <= MaxTemperature {
		req.Temperature = &t
	}
	if j, ok := opts["json"].(bool); ok {
		req.JSON = j
	}
	return req
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != n {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

// validateBaseURL accepts an empty URL, meaning the vendor default.
func validateBaseURL(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return u.String(), nil
}
