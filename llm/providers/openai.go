package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/doppel/llm"
)

// OpenAIProvider targets api.openai.com and OpenRouter. The wire format
// is the same OpenAI-compatible chat shape Ollama speaks, so it embeds
// OllamaProvider and overrides only the default URL and auth.
type OpenAIProvider struct{ OllamaProvider }

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}

func (o *OpenAIProvider) CompletionURL(baseURL string) string {
	return completionsURL(baseURL, "https://api.openai.com/v1")
}

// ApplyHeaders applies the bearer token and, for OpenRouter, the optional
// attribution headers.
func (o *OpenAIProvider) ApplyHeaders(req *http.Request) {
	bearerFromEnv(req)
	if site := os.Getenv("OPENROUTER_SITE_URL"); site != "" {
		req.Header.Set("HTTP-Referer", site)
	}
	if name := os.Getenv("OPENROUTER_SITE_NAME"); name != "" {
		req.Header.Set("X-Title", name)
	}
}
