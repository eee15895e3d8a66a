package anthropic

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

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestCreateMessage_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	req := MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages: []Message{
			{Role: "user", Content: "Hello"},
		},
	}

	expected := &MessageResponse{
		ID:         "msg_123",
		Model:      "claude-sonnet-4-5-20250929",
		Text:       "Hi there!",
		StopReason: "end_turn",
		Usage: TokenUsage{
			InputTokens:  10,
			OutputTokens: 5,
		},
	}

	mc.On("CreateMessage", ctx, req).Return(expected, nil)

	resp, err := mc.CreateMessage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "msg_123", resp.ID)
	assert.Equal(t, "Hi there!", resp.Text)
	assert.Equal(t, int64(10), resp.Usage.InputTokens)
	assert.Equal(t, int64(5), resp.Usage.OutputTokens)

	mc.AssertExpectations(t)
}

func TestToSDKMessages(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "", Content: "defaults to user"},
	}

	out := toSDKMessages(msgs)
	require.Len(t, out, 3)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
	assert.Equal(t, "user", string(out[2].Role))
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}

	t.Run("known model", func(t *testing.T) {
		t.Parallel()
		cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
		assert.InDelta(t, 18.00, cost, 0.001)
	})

	t.Run("haiku", func(t *testing.T) {
		t.Parallel()
		cost := usage.EstimateCost("claude-haiku-4-5-20251001")
		assert.InDelta(t, 4.80, cost, 0.001)
	})

	t.Run("unknown model returns zero", func(t *testing.T) {
		t.Parallel()
		assert.Zero(t, usage.EstimateCost("some-future-model"))
	})

	t.Run("zero usage", func(t *testing.T) {
		t.Parallel()
		assert.Zero(t, TokenUsage{}.EstimateCost("claude-sonnet-4-5-20250929"))
	})
}
