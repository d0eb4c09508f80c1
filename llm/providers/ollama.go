// Package providers registers the concrete LLM backends. All of them
// speak the OpenAI chat-completions wire shape; they differ in default
// endpoint and authentication.
package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/doppel/llm"
)

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// OllamaProvider talks to Ollama, vLLM, and other local servers exposing
// the OpenAI-compatible API.
type OllamaProvider struct{}

func (o *OllamaProvider) Name() string {
	return "ollama"
}

func (o *OllamaProvider) CompletionURL(baseURL string) string {
	return completionsURL(baseURL, "http://localhost:11434/v1")
}

// ApplyHeaders sets a bearer token when OPENAI_API_KEY is present; local
// servers typically need none, gateways like OpenRouter do.
func (o *OllamaProvider) ApplyHeaders(req *http.Request) {
	bearerFromEnv(req)
}

// bearerFromEnv copies OPENAI_API_KEY into the Authorization header.
// No key, no header.
func bearerFromEnv(req *http.Request) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

// completionsURL resolves the chat-completions endpoint from a base URL.
// A base that already ends in /chat/completions is used as-is so
// operators can pin an exact endpoint.
func completionsURL(base, fallback string) string {
	if base == "" {
		base = fallback
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// wireRequest is the chat-completions request body. llm.Message already
// carries the wire field names, so messages pass through unconverted.
type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

// EncodeRequest marshals the chat request. A nil temperature leaves
// the server default in effect; zero is sent explicitly for
// deterministic sampling. max_tokens is included only when positive.
func (o *OllamaProvider) EncodeRequest(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	out := wireRequest{Model: model, Messages: messages, Temperature: temperature}
	if maxTokens > 0 {
		out.MaxTokens = &maxTokens
	}
	return json.Marshal(out)
}

// wireReply is the slice of a chat-completions response the client
// actually reads. Everything else in the reply is dropped.
type wireReply struct {
	Model   string         `json:"model"`
	Usage   llm.TokenUsage `json:"usage"`
	Choices []wireChoice   `json:"choices"`
}

type wireChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// DecodeResponse pulls the first choice out of a chat-completions reply.
func (o *OllamaProvider) DecodeResponse(body []byte, _ string) (*llm.Response, error) {
	var reply wireReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("decode completion reply: %w", err)
	}
	if len(reply.Choices) == 0 {
		return nil, errors.New("completion has no choices")
	}
	first := reply.Choices[0]
	return &llm.Response{
		Content:      first.Message.Content,
		Model:        reply.Model,
		FinishReason: first.FinishReason,
		Usage:        reply.Usage,
	}, nil
}
