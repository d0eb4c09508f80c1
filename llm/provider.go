package llm

import (
	"net/http"
	"sync"
)

// Provider adapts one endpoint family's wire format. Implementations
// register themselves in an init func and are looked up by the name an
// endpoint config carries.
type Provider interface {
	// Name is the identifier endpoint configs reference ("ollama", "openai").
	Name() string

	// CompletionURL resolves the completion URL for a configured base URL.
	CompletionURL(baseURL string) string

	// ApplyHeaders applies auth and any provider-specific headers.
	ApplyHeaders(req *http.Request)

	// EncodeRequest renders the JSON body. A nil temperature keeps
	// the provider default.
	EncodeRequest(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// DecodeResponse decodes the provider's completion payload.
	DecodeResponse(body []byte, model string) (*Response, error)
}

var (
	provMu    sync.RWMutex
	providers = map[string]Provider{}
)

// RegisterProvider makes a provider available for endpoint lookup.
// Later registrations under the same name win.
func RegisterProvider(p Provider) {
	provMu.Lock()
	defer provMu.Unlock()
	providers[p.Name()] = p
}

// GetProvider returns the provider registered under name, or nil.
func GetProvider(name string) Provider {
	provMu.RLock()
	defer provMu.RUnlock()
	return providers[name]
}
