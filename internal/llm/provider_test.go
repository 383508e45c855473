package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	name     string
	requests []Request
	closed   bool
	closeErr error
}

func (s *stubProvider) Complete(_ context.Context, req Request) (string, error) {
	s.requests = append(s.requests, req)
	return s.name + ":" + req.Prompt, nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return s.closeErr
}

func (s *stubProvider) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"provider": s.name}
}

func TestRegistry_ResolveByPrefix(t *testing.T) {
	gpt := &stubProvider{name: "openai"}
	claude := &stubProvider{name: "anthropic"}

	reg := NewRegistry(zap.NewNop())
	reg.Register("gpt", ProviderOpenAI, gpt)
	reg.Register("claude", ProviderAnthropic, claude)

	p, err := reg.Resolve("gpt-5.2")
	require.NoError(t, err)
	assert.Same(t, gpt, p)

	p, err = reg.Resolve("claude-sonnet-4-5-20250929")
	require.NoError(t, err)
	assert.Same(t, claude, p)

	_, err = reg.Resolve("gemini-2.0-flash")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModel))
	assert.Equal(t, "unknown model: gemini-2.0-flash", err.Error())
}

func TestRegistry_CompleteDispatches(t *testing.T) {
	claude := &stubProvider{name: "anthropic"}
	reg := NewRegistry(zap.NewNop())
	reg.Register("claude", ProviderAnthropic, claude)

	out, err := reg.Complete(context.Background(), NewRequest("claude-x", "hi", ""))
	require.NoError(t, err)
	assert.Equal(t, "anthropic:hi", out)
	require.Len(t, claude.requests, 1)
	assert.Equal(t, DefaultTemperature, claude.requests[0].Temperature)
	assert.Equal(t, DefaultMaxTokens, claude.requests[0].MaxTokens)

	_, err = reg.Complete(context.Background(), NewRequest("llama-3", "hi", ""))
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestRegistry_CloseAndInfo(t *testing.T) {
	a := &stubProvider{name: "openai", closeErr: errors.New("boom")}
	b := &stubProvider{name: "anthropic"}
	reg := NewRegistry(zap.NewNop())
	reg.Register("gpt", ProviderOpenAI, a)
	reg.Register("claude", ProviderAnthropic, b)

	info := reg.GetProvidersInfo()
	require.Len(t, info, 2)
	assert.Equal(t, "gpt", info[0]["prefix"])
	assert.Equal(t, "anthropic", info[1]["provider"])

	assert.EqualError(t, reg.Close(), "boom")
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestBuildSystemPrompt(t *testing.T) {
	assert.Equal(t,
		"You are a helpful AI companion assistant. \nRespond naturally to the user's message.",
		BuildSystemPrompt(""))

	ctx := "You've been chatting with the user for 2 weeks."
	got := BuildSystemPrompt(ctx)
	assert.Equal(t,
		"You are a helpful AI companion assistant. \n"+ctx+"\n\nRespond naturally to the user's message.",
		got)
}
