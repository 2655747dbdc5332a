package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
	assert.Equal(t, float64(42), result["num"])
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	result := ParseJSONResponse("```json\n{\"key\": \"value\"}\n```")
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
}

func TestParseJSONResponseWithPlainFence(t *testing.T) {
	result := ParseJSONResponse("```\n{\"key\": \"value\"}\n```")
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
}

func TestParseJSONResponseFenceAfterProse(t *testing.T) {
	result := ParseJSONResponse("Here is the analysis:\n```json\n{\"key\": \"value\"}\n```\nThanks")
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
}

func TestParseJSONResponseInvalid(t *testing.T) {
	assert.Nil(t, ParseJSONResponse("not json at all"))
}

func TestParseJSONResponseEmpty(t *testing.T) {
	assert.Nil(t, ParseJSONResponse(""))
}

func TestParseJSONResponseWhitespace(t *testing.T) {
	result := ParseJSONResponse("  \n  {\"key\": \"value\"}  \n  ")
	require.NotNil(t, result)
	assert.Equal(t, "value", result["key"])
}

func TestDecodeTyped(t *testing.T) {
	var out struct {
		Rising []string `json:"rising"`
	}
	require.NoError(t, Decode("```json\n{\"rising\": [\"a\", \"b\"]}\n```", &out))
	assert.Equal(t, []string{"a", "b"}, out.Rising)
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripThinking("<think>\nreasoning here\n</think>\n{\"a\":1}"))
}

func TestOpenAIProviderGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_LLM_KEY", "secret")
	p := NewOpenAIProvider("test-model", srv.URL+"/v1/", "TEST_LLM_KEY")
	require.True(t, p.IsConfigured())

	out, err := p.Generate(context.Background(), "be brief", "hi", 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	assert.Equal(t, "test-model", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, float64(100), got["max_tokens"])
}

func TestOpenAIProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("TEST_LLM_KEY", "secret")
	p := NewOpenAIProvider("m", srv.URL, "TEST_LLM_KEY")
	_, err := p.Generate(context.Background(), "", "hi", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"qwen2.5:7b"}]}`))
		case "/api/chat":
			w.Write([]byte(`{"message":{"content":"<think>x</think>answer"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL)
	assert.True(t, p.IsConfigured())

	out, err := p.Generate(context.Background(), "", "hi", 10)
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	missing := NewOllamaProvider("llama3", srv.URL)
	assert.False(t, missing.IsConfigured())
}

func TestCreateProviderNoneAvailable(t *testing.T) {
	t.Setenv("TEST_LLM_KEY_UNSET", "")
	p := CreateProvider(Options{Provider: "openai", APIKeyEnv: "TEST_LLM_KEY_UNSET"}, zaptest.NewLogger(t))
	assert.Nil(t, p)
}

func TestCreateProviderOpenAI(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "k")
	p := CreateProvider(Options{Provider: "openai", OpenAIModel: "m", APIKeyEnv: "TEST_LLM_KEY"}, zaptest.NewLogger(t))
	require.NotNil(t, p)
	assert.IsType(t, &OpenAIProvider{}, p)
}
