package scenarios

import (
	"context"
	"fmt"
	"time"

	variationapi "github.com/c360studio/doppel/processor/variation-api"
	"github.com/c360studio/doppel/test/e2e/client"
	"github.com/c360studio/doppel/test/e2e/config"
)

// VariationRoundtripScenario publishes a variation request over JetStream
// and verifies the combined result that comes back on the result subject.
type VariationRoundtripScenario struct {
	config *config.Config

	nats      *client.NATSClient
	capture   *client.MessageCapture
	requestID string
	request   variationapi.Request
}

// NewVariationRoundtripScenario creates a new roundtrip scenario.
func NewVariationRoundtripScenario(cfg *config.Config) *VariationRoundtripScenario {
	return &VariationRoundtripScenario{config: cfg}
}

func (sc *VariationRoundtripScenario) Name() string { return "variation-roundtrip" }

func (sc *VariationRoundtripScenario) Description() string {
	return "Publishes a request on the DOPPEL stream and verifies the name/DOB/address result"
}

// Setup connects to NATS and builds the request under test.
func (sc *VariationRoundtripScenario) Setup(ctx context.Context) error {
	nc, err := client.NewNATSClient(ctx, sc.config.NATSURL)
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	sc.nats = nc

	sc.requestID = fmt.Sprintf("e2e-roundtrip-%d", time.Now().UnixNano())
	sc.request = variationapi.Request{
		RequestID:   sc.requestID,
		Requester:   config.AdmittedRequester,
		Instruction: "Generate 8 variations of the name",
		Identities: []variationapi.Identity{
			{ID: "e2e-full", Name: "Anna Schmidt", DOB: "1985-03-12", City: "Berlin", Country: "Germany"},
			{ID: "e2e-dob", Name: "Omar Hassan", DOB: "1979-11-02"},
			{ID: "e2e-name", Name: "Mei Lin"},
		},
	}

	return nil
}

// Execute runs the roundtrip scenario.
func (sc *VariationRoundtripScenario) Execute(ctx context.Context) (*Result, error) {
	res := NewResult(sc.Name())
	defer res.Complete()

	RunStages(ctx, res, sc.config.StageTimeout, []Stage{
		{"capture-results", sc.stageCaptureResults},
		{"publish-request", sc.stagePublishRequest},
		{"await-result", sc.stageAwaitResult},
		{"verify-response", sc.stageVerifyResponse},
	})
	return res, nil
}

// Teardown stops the capture and closes the NATS connection.
func (sc *VariationRoundtripScenario) Teardown(ctx context.Context) error {
	if sc.capture != nil {
		if err := sc.capture.Stop(); err != nil {
			return fmt.Errorf("stop capture: %w", err)
		}
	}
	if sc.nats != nil {
		return sc.nats.Close(ctx)
	}
	return nil
}

// stageCaptureResults subscribes to the result subject before publishing
// so the response cannot slip past.
func (sc *VariationRoundtripScenario) stageCaptureResults(_ context.Context, res *Result) error {
	capture, err := sc.nats.CaptureResults(sc.requestID)
	if err != nil {
		return fmt.Errorf("capture results: %w", err)
	}
	sc.capture = capture
	res.SetDetail("request_id", sc.requestID)
	return nil
}

// stagePublishRequest publishes the request onto the DOPPEL stream.
func (sc *VariationRoundtripScenario) stagePublishRequest(ctx context.Context, res *Result) error {
	if err := sc.nats.PublishVariationRequest(ctx, sc.request); err != nil {
		return fmt.Errorf("publish request: %w", err)
	}
	res.SetDetail("identities_sent", len(sc.request.Identities))
	return nil
}

// stageAwaitResult waits for the result message.
func (sc *VariationRoundtripScenario) stageAwaitResult(ctx context.Context, res *Result) error {
	if err := sc.capture.WaitForCount(ctx, 1); err != nil {
		return fmt.Errorf("no result within stage timeout: %w", err)
	}
	res.SetMetric("results_received", sc.capture.Count())
	return nil
}

// stageVerifyResponse decodes the result and checks its shape.
func (sc *VariationRoundtripScenario) stageVerifyResponse(_ context.Context, res *Result) error {
	resp, err := sc.capture.FirstResponse()
	if err != nil {
		return fmt.Errorf("decode result: %w", err)
	}

	if resp.RequestID != sc.requestID {
		return fmt.Errorf("request ID mismatch: sent %q, got %q", sc.requestID, resp.RequestID)
	}
	if resp.Requester != config.AdmittedRequester {
		return fmt.Errorf("requester mismatch: got %q", resp.Requester)
	}
	if len(resp.Identities) != len(sc.request.Identities) {
		return fmt.Errorf("expected %d identity results, got %d", len(sc.request.Identities), len(resp.Identities))
	}

	for i, ir := range resp.Identities {
		sent := sc.request.Identities[i]
		if ir.ID != sent.ID {
			return fmt.Errorf("identity %d: expected ID %q, got %q", i, sent.ID, ir.ID)
		}
		if ir.Error != "" {
			return fmt.Errorf("identity %q failed: %s", ir.ID, ir.Error)
		}
		if len(ir.Variations) != 8 {
			return fmt.Errorf("identity %q: expected 8 variations, got %d", ir.ID, len(ir.Variations))
		}
		for j, row := range ir.Variations {
			if row.Name == "" {
				return fmt.Errorf("identity %q row %d: empty name", ir.ID, j)
			}
			if sent.DOB != "" && row.DOB == "" {
				return fmt.Errorf("identity %q row %d: missing DOB variation", ir.ID, j)
			}
			if sent.City != "" && row.Address == "" {
				return fmt.Errorf("identity %q row %d: missing address variation", ir.ID, j)
			}
		}
	}

	res.SetDetail("scripts", fmt.Sprintf("%s/%s/%s",
		resp.Identities[0].Script, resp.Identities[1].Script, resp.Identities[2].Script))
	res.SetMetric("total_elapsed_ms", resp.ElapsedMS)
	return nil
}
