package scenarios

import (
	"context"
	"fmt"
	"net/http"
	"time"

	variationapi "github.com/c360studio/doppel/processor/variation-api"
	"github.com/c360studio/doppel/rules"
	"github.com/c360studio/doppel/test/e2e/client"
	"github.com/c360studio/doppel/test/e2e/config"
)

// HTTPAPIScenario exercises the HTTP surface: health, the variations
// endpoint, and the rule catalog.
//
// The repeat stage asserts byte-equal names for a repeated request ID,
// which holds with the default configuration; a deployment with LLM
// enrichment enabled introduces nondeterministic free variations.
type HTTPAPIScenario struct {
	config *config.Config

	http *client.HTTPClient
}

// NewHTTPAPIScenario creates a new HTTP API scenario.
func NewHTTPAPIScenario(cfg *config.Config) *HTTPAPIScenario {
	return &HTTPAPIScenario{config: cfg}
}

func (sc *HTTPAPIScenario) Name() string { return "http-api" }

func (sc *HTTPAPIScenario) Description() string {
	return "Exercises health, variations, and rules endpoints over HTTP"
}

// Setup creates the HTTP client and waits for the service.
func (sc *HTTPAPIScenario) Setup(ctx context.Context) error {
	sc.http = client.NewHTTPClient(sc.config.HTTPBaseURL)

	if err := sc.http.WaitForHealthy(ctx); err != nil {
		return fmt.Errorf("service never became healthy: %w", err)
	}

	return nil
}

// Execute runs the HTTP API scenario.
func (sc *HTTPAPIScenario) Execute(ctx context.Context) (*Result, error) {
	res := NewResult(sc.Name())
	defer res.Complete()

	RunStages(ctx, res, sc.config.StageTimeout, []Stage{
		{"health", sc.stageHealth},
		{"create-variations", sc.stageCreateVariations},
		{"repeat-is-deterministic", sc.stageRepeatIsDeterministic},
		{"list-rules", sc.stageListRules},
	})
	return res, nil
}

// Teardown has nothing to clean up.
func (sc *HTTPAPIScenario) Teardown(_ context.Context) error {
	return nil
}

// stageHealth fetches the health report.
func (sc *HTTPAPIScenario) stageHealth(ctx context.Context, res *Result) error {
	health, err := sc.http.Health(ctx)
	if err != nil {
		return fmt.Errorf("fetch health: %w", err)
	}
	if len(health) == 0 {
		return fmt.Errorf("empty health report")
	}

	res.SetDetail("health_fields", len(health))
	return nil
}

// stageCreateVariations posts a request and verifies the response shape.
func (sc *HTTPAPIScenario) stageCreateVariations(ctx context.Context, res *Result) error {
	req := variationapi.Request{
		Requester:   config.AdmittedRequester,
		Instruction: "Generate 5 variations of the name",
		Identities: []variationapi.Identity{
			{ID: "http-1", Name: "Anna Schmidt", DOB: "1985-03-12"},
		},
	}

	resp, status, err := sc.http.CreateVariations(ctx, req)
	if err != nil {
		return fmt.Errorf("post variations: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("expected HTTP 200, got %d", status)
	}
	if resp.RequestID == "" {
		return fmt.Errorf("no request ID assigned")
	}
	if len(resp.Identities) != 1 {
		return fmt.Errorf("expected 1 identity result, got %d", len(resp.Identities))
	}

	ir := resp.Identities[0]
	if ir.Error != "" {
		return fmt.Errorf("identity failed: %s", ir.Error)
	}
	if len(ir.Variations) != 5 {
		return fmt.Errorf("expected 5 variations, got %d", len(ir.Variations))
	}
	for i, row := range ir.Variations {
		if row.Name == "" {
			return fmt.Errorf("row %d: empty name", i)
		}
		if row.DOB == "" {
			return fmt.Errorf("row %d: missing DOB variation", i)
		}
	}

	res.SetDetail("assigned_request_id", resp.RequestID)
	res.SetMetric("elapsed_ms", resp.ElapsedMS)
	return nil
}

// stageRepeatIsDeterministic posts the same request ID twice and expects
// identical variation names both times.
func (sc *HTTPAPIScenario) stageRepeatIsDeterministic(ctx context.Context, res *Result) error {
	req := variationapi.Request{
		RequestID: fmt.Sprintf("e2e-repeat-%d", time.Now().UnixNano()),
		Requester: config.AdmittedRequester,
		Identities: []variationapi.Identity{
			{ID: "repeat-1", Name: "Omar Hassan", DOB: "1979-11-02"},
		},
	}

	first, status, err := sc.http.CreateVariations(ctx, req)
	if err != nil {
		return fmt.Errorf("first post: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("first post: expected HTTP 200, got %d", status)
	}

	second, status, err := sc.http.CreateVariations(ctx, req)
	if err != nil {
		return fmt.Errorf("second post: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("second post: expected HTTP 200, got %d", status)
	}

	if len(first.Identities) != 1 || len(second.Identities) != 1 {
		return fmt.Errorf("expected 1 identity result in both responses")
	}

	a := first.Identities[0].Variations
	b := second.Identities[0].Variations
	if len(a) != len(b) {
		return fmt.Errorf("variation counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return fmt.Errorf("row %d differs: %q vs %q", i, a[i].Name, b[i].Name)
		}
		if a[i].DOB != b[i].DOB {
			return fmt.Errorf("row %d DOB differs: %q vs %q", i, a[i].DOB, b[i].DOB)
		}
	}

	res.SetDetail("rows_compared", len(a))
	return nil
}

// stageListRules fetches the rule catalog and spot-checks it.
func (sc *HTTPAPIScenario) stageListRules(ctx context.Context, res *Result) error {
	catalog, err := sc.http.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	if len(catalog) == 0 {
		return fmt.Errorf("empty rule catalog")
	}

	found := false
	for _, info := range catalog {
		if info.Description == "" {
			return fmt.Errorf("rule %q has no description", info.Rule)
		}
		if info.Rule == rules.ReplaceVowels {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("catalog missing replace_vowels")
	}

	res.SetDetail("rule_count", len(catalog))
	return nil
}
