package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/pkg/anthropic"
	"github.com/AntoineDubuc/theodore/pkg/gemini"
)

// Request is a provider-agnostic prompt.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
	JSON        bool
}

// Response is a provider-agnostic completion.
type Response struct {
	Text     string
	Provider string
	Model    string
	Usage    model.TokenUsage
}

// Provider is one LLM vendor behind the gateway.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// claudeProvider adapts the Anthropic client.
type claudeProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewClaudeProvider wraps an Anthropic client as a gateway provider.
// maxTokens caps the output when a request does not set its own.
func NewClaudeProvider(client anthropic.Client, modelID string, maxTokens int) Provider {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &claudeProvider{client: client, model: modelID, maxTokens: maxTokens}
}

func (p *claudeProvider) Name() string { return "claude" }

func (p *claudeProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	system := req.System
	if req.JSON {
		// The Messages API has no JSON response mode; instruct instead.
		if system != "" {
			system += "\n\n"
		}
		system += "Respond with a single valid JSON object and nothing else."
	}

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   int64(maxTokens),
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, classifyProviderErr(ctx, "claude", err)
	}

	usage := model.TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		Cost:         resp.Usage.EstimateCost(resp.Model),
	}
	return &Response{Text: resp.Text, Provider: "claude", Model: resp.Model, Usage: usage}, nil
}

// geminiProvider adapts the Gemini client.
type geminiProvider struct {
	client gemini.Client
	model  string
}

// NewGeminiProvider wraps a Gemini client as a gateway provider.
func NewGeminiProvider(client gemini.Client, modelID string) Provider {
	return &geminiProvider{client: client, model: modelID}
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var temp *float32
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		temp = &t
	}

	resp, err := p.client.GenerateText(ctx, gemini.GenerateRequest{
		Model:       p.model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   int32(req.MaxTokens), //nolint:gosec
		Temperature: temp,
		JSONOutput:  req.JSON,
	})
	if err != nil {
		return nil, classifyProviderErr(ctx, "gemini", err)
	}

	usage := model.TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	return &Response{Text: resp.Text, Provider: "gemini", Model: p.model, Usage: usage}, nil
}

// classifyProviderErr maps a vendor SDK error onto the pipeline's error
// kinds so the gateway can decide between retry, fallback, and surface.
func classifyProviderErr(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return eris.Wrap(errs.ErrTimeout, "llm: "+provider)
	}
	if errors.Is(err, context.Canceled) {
		return eris.Wrap(errs.ErrCancelled, "llm: "+provider)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") || strings.Contains(msg, "resource exhausted"):
		return eris.Wrap(errs.ErrRateLimit, "llm: "+provider+": "+err.Error())
	case strings.Contains(msg, "connection") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "eof") || strings.Contains(msg, "timeout"):
		return eris.Wrap(errs.ErrNetwork, "llm: "+provider+": "+err.Error())
	default:
		return eris.Wrap(errs.ErrProvider, "llm: "+provider+": "+err.Error())
	}
}
