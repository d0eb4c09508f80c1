package scenarios

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	variationapi "github.com/c360studio/doppel/processor/variation-api"
	"github.com/c360studio/doppel/test/e2e/client"
	"github.com/c360studio/doppel/test/e2e/config"
)

// AdmissionScenario verifies that requesters outside the allowlist are
// turned away on both the HTTP and the JetStream surface.
type AdmissionScenario struct {
	config *config.Config

	nats    *client.NATSClient
	http    *client.HTTPClient
	capture *client.MessageCapture
}

// NewAdmissionScenario creates a new admission scenario.
func NewAdmissionScenario(cfg *config.Config) *AdmissionScenario {
	return &AdmissionScenario{config: cfg}
}

func (sc *AdmissionScenario) Name() string { return "admission" }

func (sc *AdmissionScenario) Description() string {
	return "Verifies unallowlisted requesters are rejected over HTTP and dropped over the stream"
}

// Setup connects the clients and waits for the service.
func (sc *AdmissionScenario) Setup(ctx context.Context) error {
	nc, err := client.NewNATSClient(ctx, sc.config.NATSURL)
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	sc.nats = nc

	// Without the stream, "no result arrived" would prove nothing.
	ok, err := nc.StreamExists(ctx, config.StreamName)
	if err != nil {
		return fmt.Errorf("check stream: %w", err)
	}
	if !ok {
		return fmt.Errorf("stream %q does not exist on this server", config.StreamName)
	}

	sc.http = client.NewHTTPClient(sc.config.HTTPBaseURL)
	if err := sc.http.WaitForHealthy(ctx); err != nil {
		return fmt.Errorf("service never became healthy: %w", err)
	}

	return nil
}

// Execute runs the admission scenario.
func (sc *AdmissionScenario) Execute(ctx context.Context) (*Result, error) {
	res := NewResult(sc.Name())
	defer res.Complete()

	RunStages(ctx, res, sc.config.StageTimeout, []Stage{
		{"http-rejects-stranger", sc.stageHTTPRejectsStranger},
		{"stream-drops-stranger", sc.stageStreamDropsStranger},
		{"metrics-count-rejections", sc.stageMetricsCountRejections},
	})
	return res, nil
}

// Teardown stops the capture and closes the NATS connection.
func (sc *AdmissionScenario) Teardown(ctx context.Context) error {
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

// stageHTTPRejectsStranger posts as an unallowlisted requester and
// expects a 403.
func (sc *AdmissionScenario) stageHTTPRejectsStranger(ctx context.Context, res *Result) error {
	req := variationapi.Request{
		Requester: config.StrangerRequester,
		Identities: []variationapi.Identity{
			{ID: "stranger-1", Name: "Anna Schmidt"},
		},
	}

	resp, status, err := sc.http.CreateVariations(ctx, req)
	if err != nil {
		return fmt.Errorf("post variations: %w", err)
	}
	if status != http.StatusForbidden {
		return fmt.Errorf("expected HTTP 403 for stranger, got %d", status)
	}
	if resp != nil {
		return fmt.Errorf("expected no response body for rejected requester")
	}

	res.SetDetail("http_status", status)
	return nil
}

// stageStreamDropsStranger publishes a stranger request on the stream and
// watches the result subject long enough to conclude nothing is coming.
func (sc *AdmissionScenario) stageStreamDropsStranger(ctx context.Context, res *Result) error {
	requestID := fmt.Sprintf("e2e-stranger-%d", time.Now().UnixNano())

	capture, err := sc.nats.CaptureResults(requestID)
	if err != nil {
		return fmt.Errorf("capture results: %w", err)
	}
	sc.capture = capture

	req := variationapi.Request{
		RequestID: requestID,
		Requester: config.StrangerRequester,
		Identities: []variationapi.Identity{
			{ID: "stranger-1", Name: "Anna Schmidt"},
		},
	}
	if err := sc.nats.PublishVariationRequest(ctx, req); err != nil {
		return fmt.Errorf("publish request: %w", err)
	}

	absenceCtx, cancel := context.WithTimeout(ctx, config.DefaultAbsenceWindow)
	defer cancel()

	err = capture.WaitForCount(absenceCtx, 1)
	if err == nil {
		return fmt.Errorf("a result was published for an unadmitted requester")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("wait for absence window: %w", err)
	}
	if capture.Count() != 0 {
		return fmt.Errorf("expected 0 results, captured %d", capture.Count())
	}

	res.SetDetail("absence_window_ms", config.DefaultAbsenceWindow.Milliseconds())
	return nil
}

// stageMetricsCountRejections checks that the rejection counter is exposed.
func (sc *AdmissionScenario) stageMetricsCountRejections(ctx context.Context, res *Result) error {
	metrics, err := sc.http.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("fetch metrics: %w", err)
	}

	if !strings.Contains(metrics, "doppel_requests_total") {
		return fmt.Errorf("metrics missing doppel_requests_total")
	}
	if !strings.Contains(metrics, `outcome="rejected"`) {
		return fmt.Errorf("metrics missing rejected outcome series")
	}

	res.SetDetail("rejection_series_present", true)
	return nil
}
