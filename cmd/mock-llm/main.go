// Package main is a stand-in LLM endpoint for offline testing. It speaks
// the OpenAI chat-completions wire shape and answers from JSON fixture
// files keyed by model name, so doppel's enrichment path can run fast and
// deterministic with no real model behind it.
//
// Usage:
//
//	mock-llm -fixtures ./cmd/mock-llm/fixtures -port 11434
//
// A request for model "llama3.2" is answered with the content of
// llama3.2.json, returned verbatim as the assistant message (for name
// enrichment, a JSON array of name strings). default.json, when present,
// answers models that have no fixture of their own.
//
// Numbered fixtures drive multi-call sequences: with llama3.2@1.json and
// llama3.2@2.json present, the first call to llama3.2 gets @1, the second
// gets @2, and later calls repeat the base llama3.2.json (or the last
// numbered file when no base exists). Retry and fallback paths are tested
// this way.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// defaultModel is the fixture key consulted when the requested model has
// no fixture of its own.
const defaultModel = "default"

func main() {
	fixturesFlag := flag.String("fixtures", "", "fixture directory")
	port := flag.Int("port", 11434, "listen port")
	flag.Parse()

	dir := *fixturesFlag
	if dir == "" {
		dir = os.Getenv("MOCK_LLM_FIXTURES")
	}
	if dir == "" {
		dir = "/fixtures"
	}

	fixtures, err := readFixtures(dir)
	if err != nil {
		log.Fatalf("Failed to load fixtures from %s: %v", dir, err)
	}
	log.Printf("Loaded %d model(s) from %s", len(fixtures), dir)
	for name, replies := range fixtures {
		log.Printf("  model: %s (%d fixture(s))", name, len(replies))
	}

	m := newMock(fixtures)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", m.serveHealth)
	mux.HandleFunc("POST /v1/chat/completions", m.serveCompletions)
	mux.HandleFunc("GET /v1/models", m.serveModels)
	mux.HandleFunc("GET /stats", m.serveStats)
	mux.HandleFunc("GET /requests", m.serveCaptured)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock LLM serving on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("mock-llm: %v", err)
	}
}

// mock routes chat completions to fixture content and keeps enough call
// bookkeeping for the /stats and /requests inspection endpoints.
type mock struct {
	fixtures map[string][]string // model name to ordered fixture sequence

	mu       sync.Mutex
	total    int64                    // completions requests received
	perModel map[string]int64         // served calls, keyed by requested model
	captured map[string][]seenRequest // served requests, keyed by requested model
}

func newMock(fixtures map[string][]string) *mock {
	return &mock{
		fixtures: fixtures,
		perModel: map[string]int64{},
		captured: map[string][]seenRequest{},
	}
}

// seenRequest records what the client asked for, so tests can assert
// on prompts after the fact via /requests.
type seenRequest struct {
	Model     string              `json:"model"`
	Messages  []completionMessage `json:"messages"`
	CallIndex int                 `json:"call_index"` // 1-indexed per-model call number
	Timestamp int64               `json:"timestamp"`
}

// record counts a served call for the requested model, captures the
// request, and returns the 1-indexed call number.
func (m *mock) record(req completionRequest) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perModel[req.Model]++
	n := int(m.perModel[req.Model])
	m.captured[req.Model] = append(m.captured[req.Model], seenRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		CallIndex: n,
		Timestamp: time.Now().UnixMilli(),
	})
	return n
}

func (m *mock) serveHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, map[string]string{"status": "ok"})
}

func (m *mock) serveCompletions(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("bad request body: %v", err), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.total++
	callNum := m.total
	m.mu.Unlock()
	log.Printf("call %d: model=%s messages=%d", callNum, req.Model, len(req.Messages))

	replies, ok := m.fixtures[req.Model]
	if !ok {
		if replies, ok = m.fixtures[defaultModel]; ok {
			log.Printf("call %d: no fixture for model=%q, serving default", callNum, req.Model)
		}
	}
	if !ok {
		log.Printf("call %d: WARNING no fixture for model=%q, returning error", callNum, req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	// The Nth call to a model gets the Nth fixture; past the end, the
	// last entry repeats.
	n := m.record(req)
	content := replies[min(n-1, len(replies)-1)]
	log.Printf("call %d: model=%s call_index=%d/%d", callNum, req.Model, n, len(replies))

	sendJSON(w, completionResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []completionChoice{{
			Message:      completionMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: completionUsage{
			PromptTokens:     len(content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	})
}

// serveModels lists the fixture-backed models in the OpenAI list shape.
func (m *mock) serveModels(w http.ResponseWriter, _ *http.Request) {
	type listedModel struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	listed := []listedModel{}
	for _, name := range slices.Sorted(maps.Keys(m.fixtures)) {
		listed = append(listed, listedModel{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	sendJSON(w, map[string]any{"object": "list", "data": listed})
}

// serveStats reports total_calls and the per-model calls_by_model
// breakdown for test assertions. Requests that found no fixture count
// toward total_calls only.
func (m *mock) serveStats(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	byModel := maps.Clone(m.perModel)
	total := m.total
	m.mu.Unlock()

	sendJSON(w, map[string]any{
		"total_calls":    total,
		"calls_by_model": byModel,
	})
}

// serveCaptured returns captured requests grouped by model. The optional
// model query param narrows to one model; call narrows to one 1-indexed
// call number.
func (m *mock) serveCaptured(w http.ResponseWriter, r *http.Request) {
	wantModel := r.URL.Query().Get("model")
	wantCall, _ := strconv.Atoi(r.URL.Query().Get("call"))

	m.mu.Lock()
	out := map[string][]seenRequest{}
	for name, reqs := range m.captured {
		if wantModel != "" && name != wantModel {
			continue
		}
		if wantCall > 0 {
			for _, sr := range reqs {
				if sr.CallIndex == wantCall {
					out[name] = append(out[name], sr)
				}
			}
			continue
		}
		out[name] = reqs
	}
	m.mu.Unlock()

	sendJSON(w, map[string]any{"requests_by_model": out})
}

func sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Wire types for the OpenAI chat-completions shape. Request fields the
// mock does not use (temperature, max_tokens) decode away silently.

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   completionUsage    `json:"usage"`
}

type completionChoice struct {
	Index        int               `json:"index"`
	Message      completionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// seqFileRe matches sequence files like "llama3.2@1.json". Model names
// carry dots and tags ("llama3.1:latest", "qwen2.5:7b"), so the sequence
// marker is "@" rather than anything a model name could contain.
var seqFileRe = regexp.MustCompile(`^(.+)@(\d+)\.json$`)

// readFixtures reads the JSON files in dir and builds each model's
// ordered fixture sequence: numbered files first in numeric order, then
// the base file as the repeating fallback. Subdirectories are ignored.
func readFixtures(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	base := map[string]string{}
	numbered := map[string]map[int]string{}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in %s", path)
		}

		if sm := seqFileRe.FindStringSubmatch(e.Name()); sm != nil {
			idx, _ := strconv.Atoi(sm[2])
			if numbered[sm[1]] == nil {
				numbered[sm[1]] = map[int]string{}
			}
			numbered[sm[1]][idx] = string(data)
			continue
		}
		base[strings.TrimSuffix(e.Name(), ".json")] = string(data)
	}

	seqs := map[string][]string{}
	for name, byIndex := range numbered {
		for _, idx := range slices.Sorted(maps.Keys(byIndex)) {
			seqs[name] = append(seqs[name], byIndex[idx])
		}
	}
	for name, content := range base {
		seqs[name] = append(seqs[name], content)
	}

	if len(seqs) == 0 {
		return nil, fmt.Errorf("no fixtures in %s", dir)
	}
	return seqs, nil
}
