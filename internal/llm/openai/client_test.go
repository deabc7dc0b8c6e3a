package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

type captured struct {
	mu     sync.Mutex
	path   string
	auth   string
	body   map[string]any
	called int
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.called++
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &c.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

const okReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1727000000,
  "model": "llama-3.2-90b-vision-preview",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Aqui está:\n[{\"numeroRps\": \"123\"}]"}}],
  "usage": {"prompt_tokens": 1200, "completion_tokens": 80, "total_tokens": 1280}
}`

func TestCompleteSendsVisionRequest(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, okReply)
	c := NewClient(Config{APIKey: "gsk_test", BaseURL: srv.URL}, nil)

	p := llm.BuildPrompt("OCR TEXT", llm.Image{MIME: "image/jpeg", Data: []byte{0xff, 0xd8}})
	out, err := c.Complete(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "Aqui está:\n[{\"numeroRps\": \"123\"}]", out.Text)
	assert.Equal(t, "llama-3.2-90b-vision-preview", out.Model)
	assert.Equal(t, int64(1200), out.PromptTokens)
	assert.Equal(t, int64(80), out.CompletionTokens)

	assert.Equal(t, "/chat/completions", got.path)
	assert.Equal(t, "Bearer gsk_test", got.auth)
	assert.Equal(t, "llama-3.2-90b-vision-preview", got.body["model"])
	assert.EqualValues(t, 0, got.body["temperature"])
	assert.EqualValues(t, 1, got.body["top_p"])
	assert.EqualValues(t, 8000, got.body["max_tokens"])

	msgs := got.body["messages"].([]any)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	content := msg["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].(map[string]any)["type"])
	assert.Equal(t, p.Text, content[0].(map[string]any)["text"])
	img := content[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	url := img["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
}

func TestCompleteNoChoices(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","model":"m","choices":[]}`)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	_, err := c.Complete(context.Background(), llm.Prompt{Text: "hi"})
	assert.ErrorIs(t, err, llm.ErrNoChoices)
}

func TestCompleteUpstreamErrorIsNotRetried(t *testing.T) {
	srv, got := newServer(t, http.StatusInternalServerError, `{"error":{"message":"model overloaded","type":"server_error"}}`)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	_, err := c.Complete(context.Background(), llm.Prompt{Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, got.called)
}

func TestCompleteRateLimitHonorsContext(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, okReply)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, RPS: 0.001}, nil)

	_, err := c.Complete(context.Background(), llm.Prompt{Text: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, llm.Prompt{Text: "second"})
	require.Error(t, err)
	assert.Equal(t, 1, got.called)
}

func TestNewClientDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "from-env")
	c := NewClient(Config{}, nil)
	assert.Equal(t, "from-env", c.cfg.APIKey)
	assert.Equal(t, "https://api.groq.com/openai/v1", c.cfg.BaseURL)
	assert.Equal(t, "llama-3.2-90b-vision-preview", c.Model())
	assert.Equal(t, 8000, c.cfg.MaxTokens)
	assert.Equal(t, float32(1), c.cfg.TopP)
	assert.Nil(t, c.limiter)
}
