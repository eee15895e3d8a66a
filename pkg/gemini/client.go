// Package gemini wraps google.golang.org/genai behind a small interface
// with request/response types owned by this repo. Gemini serves two roles:
// fallback text generation and embedding generation.
package gemini

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

// Client defines the Gemini API operations used by the pipeline.
type Client interface {
	GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Embed(ctx context.Context, text string, dimension int) ([]float32, error)
}

// GenerateRequest is our own request type for GenerateText.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature *float32
	JSONOutput  bool
}

// GenerateResponse is our own response type from GenerateText.
type GenerateResponse struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// sdkClient implements Client using google.golang.org/genai.
type sdkClient struct {
	client     *genai.Client
	embedModel string
}

// NewClient creates a Gemini client against the Gemini API backend.
// embedModel is the model used for Embed calls.
func NewClient(ctx context.Context, apiKey, embedModel string) (Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "gemini: init client")
	}
	return &sdkClient{client: client, embedModel: embedModel}, nil
}

func (c *sdkClient) GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Temperature)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	var text strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return nil, eris.New("gemini: empty response")
	}

	out := &GenerateResponse{Text: text.String()}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func (c *sdkClient) Embed(ctx context.Context, text string, dimension int) ([]float32, error) {
	if text == "" {
		return nil, eris.New("gemini: empty text for embedding")
	}

	outputDim := int32(dimension)
	cfg := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	result, err := c.client.Models.EmbedContent(ctx, c.embedModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: embed content")
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if len(embedding) == 0 {
		return nil, eris.New("gemini: no embedding returned")
	}
	if len(embedding) != dimension {
		return nil, eris.Errorf("gemini: embedding dimension mismatch: expected %d, got %d", dimension, len(embedding))
	}
	return embedding, nil
}
