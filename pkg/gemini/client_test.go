package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GenerateResponse), args.Error(1)
}

func (m *MockClient) Embed(ctx context.Context, text string, dimension int) ([]float32, error) {
	args := m.Called(ctx, text, dimension)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

var _ Client = (*MockClient)(nil)

func TestGenerateText_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	req := GenerateRequest{
		Model:      "gemini-2.5-flash",
		Prompt:     "Summarize",
		JSONOutput: true,
	}
	mc.On("GenerateText", ctx, req).Return(&GenerateResponse{
		Text:  `{"ok":true}`,
		Usage: TokenUsage{InputTokens: 12, OutputTokens: 4},
	}, nil)

	resp, err := mc.GenerateText(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, int64(12), resp.Usage.InputTokens)

	mc.AssertExpectations(t)
}

func TestEmbed_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	vec := make([]float32, 768)
	vec[0] = 0.5
	mc.On("Embed", ctx, "canonical text", 768).Return(vec, nil)

	got, err := mc.Embed(ctx, "canonical text", 768)
	require.NoError(t, err)
	assert.Len(t, got, 768)

	mc.AssertExpectations(t)
}
