package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	variationapi "github.com/c360studio/doppel/processor/variation-api"
	"github.com/c360studio/doppel/rules"
)

// apiPrefix is where the service-manager mounts the variation-api
// component's handlers.
const apiPrefix = "/variation-api"

// HTTPClient exercises the doppel HTTP surface the way an external
// caller would.
type HTTPClient struct {
	base string
	hc   *http.Client
}

// NewHTTPClient returns a client for the service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{base: baseURL, hc: &http.Client{Timeout: 60 * time.Second}}
}

func (cli *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cli.base+apiPrefix+path, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	resp, err := cli.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}

func (cli *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	resp, err := cli.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// CreateVariations posts a variation request. The status code is returned
// alongside the decoded response so scenarios can assert rejection paths;
// err is reserved for transport and decoding failures.
func (cli *HTTPClient) CreateVariations(ctx context.Context, req variationapi.Request) (*variationapi.Response, int, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	post, err := http.NewRequestWithContext(ctx, http.MethodPost, cli.base+apiPrefix+"/variations", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("POST /variations: %w", err)
	}
	post.Header.Set("Content-Type", "application/json")

	resp, err := cli.hc.Do(post)
	if err != nil {
		return nil, 0, fmt.Errorf("POST /variations: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var out variationapi.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("unmarshal response: %w (body: %s)", err, raw)
	}
	return &out, resp.StatusCode, nil
}

// ListRules fetches the variation rule catalog.
func (cli *HTTPClient) ListRules(ctx context.Context) ([]rules.Info, error) {
	var catalog []rules.Info
	if err := cli.getJSON(ctx, "/rules", &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

// Health fetches the component health report.
func (cli *HTTPClient) Health(ctx context.Context) (map[string]any, error) {
	var report map[string]any
	if err := cli.getJSON(ctx, "/health", &report); err != nil {
		return nil, err
	}
	return report, nil
}

// HealthCheck returns nil when the health endpoint answers 200.
func (cli *HTTPClient) HealthCheck(ctx context.Context) error {
	_, err := cli.Health(ctx)
	return err
}

// WaitForHealthy polls the health endpoint until it answers or ctx ends.
func (cli *HTTPClient) WaitForHealthy(ctx context.Context) error {
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	for {
		if err := cli.HealthCheck(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("service never became healthy: %w", ctx.Err())
		case <-tick.C:
		}
	}
}

// Metrics fetches the Prometheus exposition text.
func (cli *HTTPClient) Metrics(ctx context.Context) (string, error) {
	resp, err := cli.get(ctx, "/metrics")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read metrics: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from metrics endpoint", resp.StatusCode)
	}
	return string(raw), nil
}
