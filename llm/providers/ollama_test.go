package providers

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/doppel/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaCompletionURL(t *testing.T) {
	prov := &OllamaProvider{}

	cases := []struct {
		name string
		base string
		want string
	}{
		{"default when empty", "", "http://localhost:11434/v1/chat/completions"},
		{"custom server", "http://myserver:8080/v1", "http://myserver:8080/v1/chat/completions"},
		{"trailing slash", "http://localhost:11434/v1/", "http://localhost:11434/v1/chat/completions"},
		{"full endpoint passes through", "http://localhost:11434/v1/chat/completions", "http://localhost:11434/v1/chat/completions"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, prov.CompletionURL(tc.base))
		})
	}
}

func TestOllamaEncodeRequest(t *testing.T) {
	prov := &OllamaProvider{}
	msgs := []llm.Message{
		{Role: "system", Content: "You generate name variations."},
		{Role: "user", Content: "Generate 5 variations of John Smith"},
	}

	tempLow := 0.4
	tempZero := 0.0

	cases := []struct {
		name        string
		temperature *float64
		maxTokens   int
		contains    []string
		absent      []string
	}{
		{
			name:        "all params set",
			temperature: &tempLow,
			maxTokens:   300,
			contains: []string{
				`"model":"llama3.1:latest"`,
				`"role":"system"`,
				`"role":"user"`,
				`"temperature":0.4`,
				`"max_tokens":300`,
			},
		},
		{
			name:   "optional params omitted",
			absent: []string{`"temperature"`, `"max_tokens"`},
		},
		{
			// Zero temperature pins deterministic sampling and must
			// survive serialization.
			name:        "zero temperature kept",
			temperature: &tempZero,
			contains:    []string{`"temperature":0`},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, err := prov.EncodeRequest("llama3.1:latest", msgs, tc.temperature, tc.maxTokens)
			require.NoError(t, err)
			require.True(t, json.Valid(body))

			for _, want := range tc.contains {
				assert.Contains(t, string(body), want)
			}
			for _, not := range tc.absent {
				assert.NotContains(t, string(body), not)
			}
		})
	}
}

func TestOllamaDecodeResponse(t *testing.T) {
	prov := &OllamaProvider{}

	body := []byte(`{
		"id": "chatcmpl-4fk2Pw",
		"created": 1726154210,
		"model": "llama3.1:latest",
		"choices": [
			{
				"message": {"role": "assistant", "content": "Jon Smith\nJohn Smyth"},
				"finish_reason": "stop"
			}
		],
		"usage": {"prompt_tokens": 21, "completion_tokens": 9, "total_tokens": 30}
	}`)

	got, err := prov.DecodeResponse(body, "test-model")
	require.NoError(t, err)

	assert.Equal(t, "Jon Smith\nJohn Smyth", got.Content)
	assert.Equal(t, "llama3.1:latest", got.Model)
	assert.Equal(t, "stop", got.FinishReason)
	assert.Equal(t, 21, got.Usage.PromptTokens)
	assert.Equal(t, 9, got.Usage.CompletionTokens)
	assert.Equal(t, 30, got.Usage.TotalTokens)
}

func TestOllamaDecodeResponseNoChoices(t *testing.T) {
	prov := &OllamaProvider{}

	_, err := prov.DecodeResponse([]byte(`{"id": "chatcmpl-4fk2Pw", "choices": []}`), "test-model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestOllamaDecodeResponseNotJSON(t *testing.T) {
	prov := &OllamaProvider{}

	// Misconfigured proxies answer with HTML error pages.
	_, err := prov.DecodeResponse([]byte("<html>502 Bad Gateway</html>"), "test-model")
	require.Error(t, err)
}
