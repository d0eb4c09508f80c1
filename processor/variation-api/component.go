// Package variationapi implements the variation-api processor. It
// consumes identity variation requests from JetStream, fans each
// request's identities out across a bounded worker pool, and publishes
// a combined name/DOB/address result per request. The same pipeline
// backs the HTTP surface registered via RegisterHTTPHandlers.
package variationapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/doppel/addressgen"
	"github.com/c360studio/doppel/dobgen"
	"github.com/c360studio/doppel/geocode"
	"github.com/c360studio/doppel/llm"
	"github.com/c360studio/doppel/model"
	"github.com/c360studio/doppel/namegen"
	"github.com/c360studio/doppel/requirement"
	"github.com/c360studio/doppel/script"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

// requesterOther aggregates metric labels for callers outside the
// allowlist so arbitrary wire input cannot grow the label set.
const requesterOther = "other"

// Component serves identity variation requests.
type Component struct {
	config Config
	nats   *natsclient.Client
	logger *slog.Logger

	// enricher is nil when the LLM source is disabled.
	enricher *llm.Enricher
	geocoder *geocode.Client

	consumer jetstream.Consumer

	mu      sync.RWMutex
	running bool
	started time.Time
	cancel  context.CancelFunc

	messagesReceived  atomic.Int64
	requestsProcessed atomic.Int64
	requestsFailed    atomic.Int64
	lastActivityNano  atomic.Int64
}

// NewComponent parses the raw JSON config and assembles the processor
// with its geocoder and, when enabled, the LLM enricher.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg, err := parseConfig(rawConfig)
	if err != nil {
		return nil, err
	}

	logger := deps.GetLogger()

	c := &Component{
		config:   cfg,
		nats:     deps.NATSClient,
		logger:   logger,
		geocoder: geocode.NewClient(cfg.Geocode, logger),
	}
	if cfg.LLM.Enabled {
		c.enricher = buildEnricher(cfg, logger)
	}
	return c, nil
}

// parseConfig unmarshals the raw config, fills unset fields from
// DefaultConfig, and validates the result.
func parseConfig(raw json.RawMessage) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	def := DefaultConfig()
	if cfg.StreamName == "" {
		cfg.StreamName = def.StreamName
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = def.ConsumerName
	}
	if cfg.RequestSubject == "" {
		cfg.RequestSubject = def.RequestSubject
	}
	if cfg.ResultSubjectPrefix == "" {
		cfg.ResultSubjectPrefix = def.ResultSubjectPrefix
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.TargetCount == 0 {
		cfg.TargetCount = def.TargetCount
	}
	if cfg.MinWeight == 0 {
		cfg.MinWeight = def.MinWeight
	}
	if cfg.MaxIdentities == 0 {
		cfg.MaxIdentities = def.MaxIdentities
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = def.LLM.Temperature
	}
	if cfg.LLM.MaxNames == 0 {
		cfg.LLM.MaxNames = def.LLM.MaxNames
	}
	if cfg.LLM.Timeout == "" {
		cfg.LLM.Timeout = def.LLM.Timeout
	}
	if cfg.Ports == nil {
		cfg.Ports = def.Ports
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildEnricher wires the LLM candidate source: the model registry
// (overlaid from the configured models file when one is set), the HTTP
// client, and the enricher on top.
func buildEnricher(cfg Config, logger *slog.Logger) *llm.Enricher {
	registry := model.NewDefaultRegistry()
	if cfg.LLM.ModelsFile != "" {
		loaded, err := model.RegistryFromFile(cfg.LLM.ModelsFile)
		if err != nil {
			logger.Warn("Failed to load models file, keeping default registry",
				"path", cfg.LLM.ModelsFile, "error", err)
		} else {
			registry = loaded
		}
	}
	client := llm.NewClient(registry,
		llm.WithLogger(logger),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.GetLLMTimeout()}),
	)
	return llm.NewEnricher(client, llm.EnricherConfig{
		Capability:  cfg.LLM.Capability,
		Temperature: cfg.LLM.Temperature,
	}, logger)
}

// Initialize logs the consumer wiring at debug level.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized variation-api",
		"stream", c.config.StreamName, "consumer", c.config.ConsumerName,
		"request_subject", c.config.RequestSubject,
		"llm_enabled", c.enricher != nil)
	return nil
}

// Start binds the durable consumer and launches the pull loop.
func (c *Component) Start(ctx context.Context) error {
	runCtx, err := c.beginRun(ctx)
	if err != nil {
		return err
	}

	js, err := c.nats.JetStream()
	if err != nil {
		c.abortStart()
		return fmt.Errorf("jetstream: %w", err)
	}

	stream, err := js.Stream(runCtx, c.config.StreamName)
	if err != nil {
		c.abortStart()
		return fmt.Errorf("stream %s: %w", c.config.StreamName, err)
	}

	// AckWait must outlast the request timeout or in-flight work gets
	// redelivered mid-processing.
	cons, err := stream.CreateOrUpdateConsumer(runCtx, jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: c.config.RequestSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       120 * time.Second,
		MaxDeliver:    3,
	})
	if err != nil {
		c.abortStart()
		return fmt.Errorf("consumer %s: %w", c.config.ConsumerName, err)
	}
	c.consumer = cons

	go c.consumeLoop(runCtx)

	c.logger.Info("variation-api started",
		"stream", c.config.StreamName, "consumer", c.config.ConsumerName,
		"subject", c.config.RequestSubject)
	return nil
}

// beginRun flips the component into the running state and derives the
// context the pull loop lives on.
func (c *Component) beginRun(ctx context.Context) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil, errors.New("already running")
	}
	if c.nats == nil {
		return nil, errors.New("no NATS client")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.running, c.started, c.cancel = true, time.Now(), cancel
	return runCtx, nil
}

// endRun flips the component out of the running state and hands back the
// pull loop's cancel func. The bool reports whether it was running.
func (c *Component) endRun() (context.CancelFunc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, wasRunning := c.cancel, c.running
	c.running, c.cancel = false, nil
	return cancel, wasRunning
}

// abortStart unwinds the half-started state when Start fails partway.
func (c *Component) abortStart() {
	if cancel, _ := c.endRun(); cancel != nil {
		cancel()
	}
}

// consumeLoop pulls requests one at a time until its context ends.
func (c *Component) consumeLoop(ctx context.Context) {
	for ctx.Err() == nil {
		msgs, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch failed", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleMessage(ctx, msg)
		}

		if err := msgs.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Fetch batch error", "error", err)
		}
	}
}

// decodeRequest unwraps the platform envelope and parses the variation
// request payload.
func decodeRequest(data []byte) (Request, error) {
	var env message.BaseMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return Request{}, fmt.Errorf("parse envelope: %w", err)
	}

	payload, err := json.Marshal(env.Payload())
	if err != nil {
		return Request{}, fmt.Errorf("marshal payload: %w", err)
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}

// handleMessage runs one request end to end: decode, admit, process,
// publish. Malformed messages NAK for redelivery; invalid or
// unadmitted requests ACK, because redelivering them changes nothing.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	c.messagesReceived.Add(1)
	c.touchActivity()

	req, err := decodeRequest(msg.Data())
	if err != nil {
		c.logger.Error("Undecodable request message", "error", err)
		c.nak(msg)
		return
	}

	if err := req.Validate(); err != nil {
		requestsTotal.WithLabelValues(requesterOther, "invalid").Inc()
		c.logger.Warn("Dropping invalid request",
			"request_id", req.RequestID,
			"requester", req.Requester, "error", err)
		c.ack(msg)
		return
	}

	weight, known := c.config.Allowlist[req.Requester]
	if !known || weight < c.config.MinWeight {
		requestsTotal.WithLabelValues(requesterOther, "rejected").Inc()
		c.logger.Warn("Dropping request from unadmitted requester",
			"request_id", req.RequestID,
			"requester", req.Requester,
			"known", known)
		c.ack(msg)
		return
	}

	identities := req.Identities
	if budget := c.identityCap(weight); len(identities) > budget {
		c.logger.Warn("Truncating request to identity budget",
			"request_id", req.RequestID,
			"requester", req.Requester,
			"submitted", len(identities),
			"budget", budget)
		identities = identities[:budget]
	}

	c.logger.Info("Processing variation request",
		"request_id", req.RequestID,
		"requester", req.Requester,
		"identities", len(identities))

	reqCtx, cancel := context.WithTimeout(ctx, c.config.GetRequestTimeout())
	started := time.Now()
	resp := c.processRequest(reqCtx, &req, identities)
	cancel()
	requestDuration.Observe(time.Since(started).Seconds())

	// Publish on the outer context so a processing timeout cannot also
	// sink the (partial) result.
	if err := c.publishResult(ctx, resp); err != nil {
		c.requestsFailed.Add(1)
		requestsTotal.WithLabelValues(req.Requester, "failed").Inc()
		c.logger.Error("Failed to publish result",
			"request_id", req.RequestID, "error", err)
		c.nak(msg)
		return
	}

	c.requestsProcessed.Add(1)
	requestsTotal.WithLabelValues(req.Requester, "completed").Inc()
	c.ack(msg)

	c.logger.Info("Variation request completed",
		"request_id", req.RequestID,
		"requester", req.Requester,
		"identities", len(identities),
		"elapsed_ms", resp.ElapsedMS)
}

func (c *Component) ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		c.logger.Warn("ACK failed", "error", err)
	}
}

func (c *Component) nak(msg jetstream.Msg) {
	if err := msg.Nak(); err != nil {
		c.logger.Warn("NAK failed", "error", err)
	}
}

// identityCap returns the per-request identity budget for an admitted
// requester. Full-weight callers get the configured maximum; everyone
// else gets half.
func (c *Component) identityCap(weight float64) int {
	budget := c.config.MaxIdentities
	if weight < 1 {
		budget /= 2
	}
	if budget < 1 {
		budget = 1
	}
	return budget
}

// processRequest parses the instruction once and fans the identities
// out across the worker pool. Workers never return errors; a failed
// identity degrades into fallback rows so batch results keep their
// shape.
func (c *Component) processRequest(ctx context.Context, req *Request, identities []Identity) *Response {
	started := time.Now()

	want := requirement.Parse(req.Instruction)
	if want.TargetCount == requirement.DefaultTargetCount && c.config.TargetCount > 0 {
		// An instruction that names no count parses to the stock
		// default; the configured count replaces it.
		want.TargetCount = c.config.TargetCount
	}

	results := make([]IdentityResult, len(identities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i, ident := range identities {
		g.Go(func() error {
			results[i] = c.processIdentity(gctx, req.RequestID, ident, want)
			return nil
		})
	}
	_ = g.Wait()

	return &Response{
		RequestID:  req.RequestID,
		Requester:  req.Requester,
		Identities: results,
		ElapsedMS:  time.Since(started).Milliseconds(),
	}
}

// processIdentity runs the full pipeline for one identity: name
// variations, then DOB and address variations when the identity
// carries those fields, combined into rows.
func (c *Component) processIdentity(ctx context.Context, requestID string, ident Identity, want requirement.Requirement) IdentityResult {
	started := time.Now()
	identitiesProcessed.Inc()

	// Seed the RNG from the request and identity so a redelivered
	// request regenerates identical variations.
	rng := rngFor(requestID, ident.ID, ident.Name)

	// Engines are not safe for concurrent use, so each identity gets
	// its own.
	eng := namegen.NewEngine(rng, c.logger, c.config.Generator)
	if c.enricher != nil {
		eng.AttachSource(&enricherSource{enricher: c.enricher, maxNames: c.config.LLM.MaxNames})
	}

	res, err := eng.Generate(ctx, ident.Name, want)
	if err != nil {
		c.logger.Warn("Name generation failed, repeating the identity as given",
			"request_id", requestID,
			"identity", ident.ID, "error", err)
		return c.fallbackResult(ident, want.TargetCount, started, err)
	}

	var dobs []string
	if ident.DOB != "" {
		dobs = dobgen.NewGenerator(rng, c.logger).Variations(ident.DOB, len(res.Variations))
	}

	var addrs []string
	if ident.City != "" || ident.Country != "" {
		addrs, err = addressgen.NewGenerator(rng, c.geocoder, c.logger).
			Variations(ctx, ident.City, ident.Country, len(res.Variations))
		if err != nil {
			collaboratorFailures.WithLabelValues("geocode").Inc()
			c.logger.Warn("Address synthesis failed",
				"request_id", requestID,
				"identity", ident.ID, "error", err)
		}
	}

	variationsBySource.WithLabelValues(string(namegen.SourceRule)).Add(float64(res.RuleCount))
	variationsBySource.WithLabelValues(string(namegen.SourceFree)).Add(float64(res.FreeCount))
	variationsBySource.WithLabelValues(string(namegen.SourceFallback)).Add(float64(res.FallbackCount))

	return IdentityResult{
		ID:            ident.ID,
		Seed:          res.Seed,
		Script:        res.Script,
		Variations:    combineRows(res.Variations, dobs, addrs),
		RuleCount:     res.RuleCount,
		FreeCount:     res.FreeCount,
		FallbackCount: res.FallbackCount,
		Shortfall:     res.FallbackCount > 0,
		ElapsedMS:     time.Since(started).Milliseconds(),
	}
}

// fallbackResult repeats the identity as given. Screening consumers
// index into fixed-size variation blocks, so even a failed identity
// must fill its rows.
func (c *Component) fallbackResult(ident Identity, count int, started time.Time, genErr error) IdentityResult {
	if count <= 0 {
		count = c.config.TargetCount
	}
	addr := joinPlace(ident.City, ident.Country)
	rows := make([]Row, count)
	for i := range rows {
		rows[i] = Row{
			Name:    ident.Name,
			Source:  string(namegen.SourceFallback),
			DOB:     ident.DOB,
			Address: addr,
		}
	}
	variationsBySource.WithLabelValues(string(namegen.SourceFallback)).Add(float64(count))
	return IdentityResult{
		ID:            ident.ID,
		Seed:          ident.Name,
		Script:        script.Detect(ident.Name),
		Variations:    rows,
		FallbackCount: count,
		Shortfall:     true,
		ElapsedMS:     time.Since(started).Milliseconds(),
		Error:         genErr.Error(),
	}
}

// combineRows joins each name with a DOB and an address, cycling the
// shorter lists so every row carries the full triple.
func combineRows(names []namegen.Variation, dobs, addrs []string) []Row {
	rows := make([]Row, len(names))
	for i, v := range names {
		row := Row{
			Name:   v.Text,
			Source: string(v.Source),
			Rule:   string(v.Rule),
			Score:  v.Score,
		}
		if len(dobs) > 0 {
			row.DOB = dobs[i%len(dobs)]
		}
		if len(addrs) > 0 {
			row.Address = addrs[i%len(addrs)]
		}
		rows[i] = row
	}
	return rows
}

func joinPlace(city, country string) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(city); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(country); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

// rngFor derives a deterministic generator from the given parts.
func rngFor(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	sum := h.Sum64()
	return rand.New(rand.NewPCG(sum, sum))
}

// enricherSource adapts the LLM enricher to the name engine's
// candidate source, detecting the seed's script per call.
type enricherSource struct {
	enricher *llm.Enricher
	maxNames int
}

func (s *enricherSource) Names(ctx context.Context, seed string, count int) ([]string, error) {
	if s.maxNames > 0 && count > s.maxNames {
		count = s.maxNames
	}
	names, err := s.enricher.Names(ctx, seed, count, script.Detect(seed))
	if err != nil {
		collaboratorFailures.WithLabelValues("llm").Inc()
	}
	return names, err
}

// publishResult publishes the response to the per-request result
// subject.
func (c *Component) publishResult(ctx context.Context, resp *Response) error {
	baseMsg := message.NewBaseMessage(ResultType, resp, "variation-api")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", c.config.ResultSubjectPrefix, resp.RequestID)
	if err := c.nats.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Stop halts the pull loop and logs final counters.
func (c *Component) Stop(_ time.Duration) error {
	cancel, wasRunning := c.endRun()
	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	c.logger.Info("variation-api stopped",
		"messages_received", c.messagesReceived.Load(),
		"requests_processed", c.requestsProcessed.Load(),
		"requests_failed", c.requestsFailed.Load())
	return nil
}

// Meta identifies the component to the platform registry.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "variation-api",
		Type:        "processor",
		Description: "Serves identity variation requests over JetStream and HTTP",
		Version:     "0.1.0",
	}
}

// InputPorts lists the configured input ports.
func (c *Component) InputPorts() []component.Port { return c.ports(true) }

// OutputPorts lists the configured output ports.
func (c *Component) OutputPorts() []component.Port { return c.ports(false) }

func (c *Component) ports(input bool) []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}
	defs, dir := c.config.Ports.Outputs, component.DirectionOutput
	if input {
		defs, dir = c.config.Ports.Inputs, component.DirectionInput
	}
	out := make([]component.Port, len(defs))
	for i, def := range defs {
		out[i] = component.Port{
			Name:        def.Name,
			Direction:   dir,
			Required:    def.Required,
			Description: def.Description,
			Config:      component.NATSPort{Subject: def.Subject},
		}
	}
	return out
}

// ConfigSchema exposes the generated schema for the component config.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return variationSchema
}

// Health reports liveness from the running flag and the failure
// counter.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running, since := c.running, c.started
	c.mu.RUnlock()

	status := "running"
	if !running {
		status = "stopped"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.requestsFailed.Load()),
		Uptime:     time.Since(since),
		Status:     status,
	}
}

// DataFlow reports recent activity; per-second rates are not tracked.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.lastActivity(),
	}
}

func (c *Component) touchActivity() {
	c.lastActivityNano.Store(time.Now().UnixNano())
}

func (c *Component) lastActivity() time.Time {
	n := c.lastActivityNano.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
