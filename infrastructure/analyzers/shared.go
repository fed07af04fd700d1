// Package analyzers implements the Stage1 analyzers and the cross-item
// originality comparator on top of a ports.LLMClient.
//
// Every analyzer renders a text/template prompt, asks the model for a JSON
// object, fills defaults for fields the model left out, validates the decoded
// response and only then derives its score. A malformed or out-of-range reply
// is returned as an error so the engine's retry policy can try again.
package analyzers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-vidrank/internal/ports"
)

// Defaults shared by every analyzer.
const (
	DefaultTemperature = 0.0
	DefaultMaxTokens   = 2048
)

var (
	// ErrMalformedResponse is returned when the model reply holds no usable
	// JSON object or the object fails validation.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrNilClient is returned by constructors given a nil LLM client.
	ErrNilClient = errors.New("LLM client cannot be nil")
)

var validate = validator.New()

// Options tune the LLM calls made by an analyzer.
type Options struct {
	Temperature float64
	MaxTokens   int
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// caller is the LLM plumbing shared by the analyzers.
type caller struct {
	name   string
	client ports.LLMClient
	system string
	prompt *template.Template
	opts   Options
}

func newCaller(name string, client ports.LLMClient, system, prompt string, opts Options) (caller, error) {
	if client == nil {
		return caller{}, ErrNilClient
	}
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(prompt)
	if err != nil {
		return caller{}, fmt.Errorf("%s: parse prompt template: %w", name, err)
	}
	return caller{
		name:   name,
		client: client,
		system: system,
		prompt: tmpl,
		opts:   opts.withDefaults(),
	}, nil
}

// completeJSON renders the prompt with data, calls the model and decodes the
// reply into out. fill runs between decoding and validation.
func (c caller) completeJSON(ctx context.Context, data any, out any, fill func()) error {
	var buf bytes.Buffer
	if err := c.prompt.Execute(&buf, data); err != nil {
		return fmt.Errorf("%s: render prompt: %w", c.name, err)
	}

	reply, err := c.client.Complete(ctx, buf.String(), map[string]any{
		"system":      c.system,
		"temperature": c.opts.Temperature,
		"max_tokens":  c.opts.MaxTokens,
		"json":        true,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	raw := extractJSON(reply)
	if raw == "" {
		return fmt.Errorf("%s: %w: no JSON object in reply (%d chars)", c.name, ErrMalformedResponse, len(reply))
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%s: %w: %w", c.name, ErrMalformedResponse, err)
	}
	if fill != nil {
		fill()
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%s: %w: %w", c.name, ErrMalformedResponse, err)
	}
	return nil
}

// extractJSON returns the first JSON object in a reply that may wrap it in a
// markdown fence or surround it with prose. It returns "" when none is found.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```"); start != -1 {
		body := response[start+3:]
		if nl := strings.Index(body, "\n"); nl != -1 {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			if candidate := strings.TrimSpace(body[:end]); strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// firstWords returns the first n whitespace-separated words of s.
func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
