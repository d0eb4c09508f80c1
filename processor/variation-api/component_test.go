package variationapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/c360studio/doppel/namegen"
	"github.com/c360studio/doppel/requirement"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	t.Run("empty config gets every default", func(t *testing.T) {
		t.Parallel()

		cfg, err := parseConfig(json.RawMessage(`{}`))
		if err != nil {
			t.Fatalf("parseConfig: %v", err)
		}
		if cfg.StreamName != "DOPPEL" || cfg.ConsumerName != "variation-api" {
			t.Errorf("stream/consumer = %q/%q, want DOPPEL/variation-api", cfg.StreamName, cfg.ConsumerName)
		}
		if cfg.TargetCount != 15 || cfg.Concurrency != 4 {
			t.Errorf("target/concurrency = %d/%d, want 15/4", cfg.TargetCount, cfg.Concurrency)
		}
		if cfg.Ports == nil {
			t.Error("defaults should fill the port definitions")
		}
	})

	t.Run("partial config keeps overrides and fills the rest", func(t *testing.T) {
		t.Parallel()

		cfg, err := parseConfig(json.RawMessage(`{"stream_name": "TEST_STREAM", "target_count": 3}`))
		if err != nil {
			t.Fatalf("parseConfig: %v", err)
		}
		if cfg.StreamName != "TEST_STREAM" {
			t.Errorf("StreamName = %q, want TEST_STREAM", cfg.StreamName)
		}
		if cfg.TargetCount != 3 {
			t.Errorf("TargetCount = %d, want 3", cfg.TargetCount)
		}
		if cfg.RequestSubject != "doppel.request.>" {
			t.Errorf("RequestSubject = %q, want the default", cfg.RequestSubject)
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		t.Parallel()

		if _, err := parseConfig(json.RawMessage(`{not json`)); err == nil {
			t.Error("expected an unmarshal error")
		}
	})

	t.Run("defaulted config that fails validation", func(t *testing.T) {
		t.Parallel()

		if _, err := parseConfig(json.RawMessage(`{"min_weight": 1.5}`)); err == nil {
			t.Error("expected a validation error for min_weight above one")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig should validate: %v", err)
	}

	valid := Config{
		StreamName:          "DOPPEL",
		ConsumerName:        "variation-api",
		RequestSubject:      "doppel.request.>",
		ResultSubjectPrefix: "doppel.result",
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"all required fields set", func(*Config) {}, false},
		{"missing stream name", func(c *Config) { c.StreamName = "" }, true},
		{"missing consumer name", func(c *Config) { c.ConsumerName = "" }, true},
		{"missing request subject", func(c *Config) { c.RequestSubject = "" }, true},
		{"missing result subject prefix", func(c *Config) { c.ResultSubjectPrefix = "" }, true},
		{"min weight above one", func(c *Config) { c.MinWeight = 1.5 }, true},
		{"min weight below zero", func(c *Config) { c.MinWeight = -0.1 }, true},
		{"zero allowlist weight", func(c *Config) { c.Allowlist = map[string]float64{"miner-7": 0} }, true},
		{"allowlist weight above one", func(c *Config) { c.Allowlist = map[string]float64{"miner-7": 1.5} }, true},
		{"well-formed allowlist", func(c *Config) { c.Allowlist = map[string]float64{"miner-7": 1.0, "miner-9": 0.6} }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tc.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.StreamName != "DOPPEL" || cfg.ConsumerName != "variation-api" {
		t.Errorf("stream/consumer = %q/%q, want DOPPEL/variation-api", cfg.StreamName, cfg.ConsumerName)
	}
	if cfg.RequestSubject != "doppel.request.>" {
		t.Errorf("RequestSubject = %q, want doppel.request.>", cfg.RequestSubject)
	}
	if cfg.ResultSubjectPrefix != "doppel.result" {
		t.Errorf("ResultSubjectPrefix = %q, want doppel.result", cfg.ResultSubjectPrefix)
	}
	if cfg.TargetCount != 15 {
		t.Errorf("TargetCount = %d, want 15", cfg.TargetCount)
	}
	if cfg.MinWeight != 0.5 {
		t.Errorf("MinWeight = %v, want 0.5", cfg.MinWeight)
	}
	if cfg.MaxIdentities != 50 {
		t.Errorf("MaxIdentities = %d, want 50", cfg.MaxIdentities)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.RequestTimeout != "2m" {
		t.Errorf("RequestTimeout = %q, want 2m", cfg.RequestTimeout)
	}
	if cfg.LLM.Enabled {
		t.Error("LLM enrichment should be off by default")
	}
	if cfg.Ports == nil {
		t.Fatal("default config should carry port definitions")
	}
	if got := len(cfg.Ports.Inputs); got != 1 {
		t.Errorf("input ports = %d, want 1", got)
	}
	if got := len(cfg.Ports.Outputs); got != 1 {
		t.Errorf("output ports = %d, want 1", got)
	}
}

func TestRequestTimeout(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Duration
	}{
		{"90s", 90 * time.Second},
		{"5m", 5 * time.Minute},
		{"", 2 * time.Minute},        // unset falls back
		{"invalid", 2 * time.Minute}, // unparseable falls back
		{"-10s", 2 * time.Minute},    // non-positive falls back
	}

	for _, tc := range cases {
		cfg := Config{RequestTimeout: tc.in}
		if got := cfg.GetRequestTimeout(); got != tc.want {
			t.Errorf("GetRequestTimeout(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLLMTimeout(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Duration
	}{
		{"45s", 45 * time.Second},
		{"", 3 * time.Minute},
		{"soon", 3 * time.Minute},
	}

	for _, tc := range cases {
		cfg := Config{LLM: LLMSettings{Timeout: tc.in}}
		if got := cfg.GetLLMTimeout(); got != tc.want {
			t.Errorf("GetLLMTimeout(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMessageTypes(t *testing.T) {
	t.Parallel()

	if RequestType.Domain != "doppel" || RequestType.Category != "request" || RequestType.Version != "v1" {
		t.Errorf("RequestType = %+v, want doppel/request/v1", RequestType)
	}
	if ResultType.Domain != "doppel" || ResultType.Category != "result" || ResultType.Version != "v1" {
		t.Errorf("ResultType = %+v, want doppel/result/v1", ResultType)
	}

	req := &Request{}
	if req.Schema() != RequestType {
		t.Error("Request.Schema() should return RequestType")
	}
	resp := &Response{}
	if resp.Schema() != ResultType {
		t.Error("Response.Schema() should return ResultType")
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	valid := Request{
		RequestID:  "req-1",
		Requester:  "miner-7",
		Identities: []Identity{{ID: "a", Name: "Anna Schmidt"}},
	}

	cases := []struct {
		name    string
		mutate  func(*Request)
		wantErr bool
	}{
		{"complete request", func(*Request) {}, false},
		{"missing request id", func(r *Request) { r.RequestID = "" }, true},
		{"missing requester", func(r *Request) { r.Requester = "" }, true},
		{"no identities", func(r *Request) { r.Identities = nil }, true},
		{"identity without name", func(r *Request) {
			r.Identities = []Identity{{ID: "a", Name: "Anna Schmidt"}, {ID: "b"}}
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := valid
			tc.mutate(&req)
			if err := req.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestIdentityCap(t *testing.T) {
	t.Parallel()

	cases := []struct {
		max    int
		weight float64
		want   int
	}{
		{50, 1.0, 50}, // full weight gets the configured maximum
		{50, 0.8, 25}, // anything less gets half
		{50, 0.5, 25},
		{1, 0.5, 1}, // the budget never drops below one
	}

	for _, tc := range cases {
		c := &Component{config: Config{MaxIdentities: tc.max}}
		if got := c.identityCap(tc.weight); got != tc.want {
			t.Errorf("identityCap(%v) with max %d = %d, want %d", tc.weight, tc.max, got, tc.want)
		}
	}
}

func TestCombineRows(t *testing.T) {
	t.Parallel()

	names := []namegen.Variation{
		{Text: "Anna Schmitt", Source: namegen.SourceRule},
		{Text: "Ana Schmidt", Source: namegen.SourceFree, Score: 0.8},
		{Text: "Annah Schmidt", Source: namegen.SourceFree},
		{Text: "Anna Schmid", Source: namegen.SourceFallback},
	}
	dobs := []string{"1980-01-02", "1980-02-01"}
	addrs := []string{"12 Oak Road, Oslo, Norway"}

	rows := combineRows(names, dobs, addrs)

	if len(rows) != len(names) {
		t.Fatalf("rows = %d, want %d", len(rows), len(names))
	}
	if rows[0].Name != "Anna Schmitt" || rows[0].Source != "rule" {
		t.Errorf("rows[0] = %+v, want name and source carried over", rows[0])
	}
	if rows[1].Score != 0.8 {
		t.Errorf("rows[1].Score = %v, want 0.8", rows[1].Score)
	}

	// The shorter lists cycle so every row is complete.
	wantDOBs := []string{"1980-01-02", "1980-02-01", "1980-01-02", "1980-02-01"}
	for i, row := range rows {
		if row.DOB != wantDOBs[i] {
			t.Errorf("rows[%d].DOB = %q, want %q", i, row.DOB, wantDOBs[i])
		}
		if row.Address != addrs[0] {
			t.Errorf("rows[%d].Address = %q, want %q", i, row.Address, addrs[0])
		}
	}

	bare := combineRows(names, nil, nil)
	for i, row := range bare {
		if row.DOB != "" || row.Address != "" {
			t.Errorf("bare rows[%d] should carry no DOB or address, got %+v", i, row)
		}
	}
}

func TestRngForDeterminism(t *testing.T) {
	t.Parallel()

	a := rngFor("req-1", "ident-1", "Anna Schmidt")
	b := rngFor("req-1", "ident-1", "Anna Schmidt")

	for i := 0; i < 8; i++ {
		got, want := a.IntN(1000000), b.IntN(1000000)
		if got != want {
			t.Fatalf("draw %d: %d != %d, same parts must yield the same sequence", i, got, want)
		}
	}
}

func TestProcessIdentityDeterministic(t *testing.T) {
	t.Parallel()

	c := &Component{
		config: Config{TargetCount: 9, Generator: namegen.Config{}},
		logger: slog.Default(),
	}

	want := requirement.Parse("")
	want.TargetCount = 9
	ident := Identity{ID: "ident-1", Name: "Anna Schmidt", DOB: "1985-03-12"}

	first := c.processIdentity(context.Background(), "req-42", ident, want)
	second := c.processIdentity(context.Background(), "req-42", ident, want)

	if len(first.Variations) != 9 {
		t.Fatalf("variations = %d, want 9", len(first.Variations))
	}
	if len(first.Variations) != len(second.Variations) {
		t.Fatalf("reruns disagree on count: %d vs %d", len(first.Variations), len(second.Variations))
	}
	for i := range first.Variations {
		if first.Variations[i].Name != second.Variations[i].Name {
			t.Errorf("row %d: name %q != %q, redelivery must regenerate identical variations",
				i, first.Variations[i].Name, second.Variations[i].Name)
		}
		if first.Variations[i].DOB != second.Variations[i].DOB {
			t.Errorf("row %d: dob %q != %q", i, first.Variations[i].DOB, second.Variations[i].DOB)
		}
	}
	if first.ID != "ident-1" {
		t.Errorf("ID = %q, want ident-1", first.ID)
	}
	if first.Seed != "Anna Schmidt" {
		t.Errorf("Seed = %q, want Anna Schmidt", first.Seed)
	}
	for i, row := range first.Variations {
		if row.DOB == "" {
			t.Errorf("row %d has no DOB, every row should carry one", i)
		}
	}
}

func TestProcessIdentityFillsRowsOnFailure(t *testing.T) {
	t.Parallel()

	c := &Component{
		config: Config{TargetCount: 15},
		logger: slog.Default(),
	}

	want := requirement.Parse("")
	want.TargetCount = 4
	ident := Identity{ID: "ident-2", Name: "   ", DOB: "1980-01-02", City: "Oslo", Country: "Norway"}

	res := c.processIdentity(context.Background(), "req-43", ident, want)

	if res.Error == "" {
		t.Error("expected Error to record the generation failure")
	}
	if !res.Shortfall {
		t.Error("expected Shortfall to be set")
	}
	if res.FallbackCount != 4 {
		t.Errorf("FallbackCount = %d, want 4", res.FallbackCount)
	}
	if len(res.Variations) != 4 {
		t.Fatalf("variations = %d, want 4, failed identities still fill their rows", len(res.Variations))
	}
	for i, row := range res.Variations {
		if row.Source != "fallback" {
			t.Errorf("rows[%d].Source = %q, want fallback", i, row.Source)
		}
		if row.DOB != "1980-01-02" {
			t.Errorf("rows[%d].DOB = %q, want the DOB as given", i, row.DOB)
		}
		if row.Address != "Oslo, Norway" {
			t.Errorf("rows[%d].Address = %q, want %q", i, row.Address, "Oslo, Norway")
		}
	}
}

func TestProcessRequest(t *testing.T) {
	t.Parallel()

	c := &Component{
		config: Config{TargetCount: 5, Concurrency: 2, Generator: namegen.Config{}},
		logger: slog.Default(),
	}

	req := &Request{
		RequestID: "req-7",
		Requester: "miner-7",
	}
	identities := []Identity{
		{ID: "a", Name: "Anna Schmidt"},
		{ID: "b", Name: "Mohammed al-Farsi"},
		{ID: "c", Name: "Ivan Petrov"},
	}

	resp := c.processRequest(context.Background(), req, identities)

	if resp.RequestID != "req-7" {
		t.Errorf("RequestID = %q, want req-7", resp.RequestID)
	}
	if resp.Requester != "miner-7" {
		t.Errorf("Requester = %q, want miner-7", resp.Requester)
	}
	if len(resp.Identities) != 3 {
		t.Fatalf("identities = %d, want 3", len(resp.Identities))
	}
	for i, wantID := range []string{"a", "b", "c"} {
		if resp.Identities[i].ID != wantID {
			t.Errorf("result %d ID = %q, want %q, submission order must hold", i, resp.Identities[i].ID, wantID)
		}
		if len(resp.Identities[i].Variations) != 5 {
			t.Errorf("result %d variations = %d, want 5", i, len(resp.Identities[i].Variations))
		}
	}
}

func TestProcessRequestCountOverride(t *testing.T) {
	t.Parallel()

	c := &Component{
		config: Config{TargetCount: 6, Concurrency: 1, Generator: namegen.Config{}},
		logger: slog.Default(),
	}

	identities := []Identity{{ID: "a", Name: "Anna Schmidt"}}

	// An explicit count in the instruction wins over the configured
	// default.
	req := &Request{RequestID: "req-8", Requester: "miner-7", Instruction: "Generate 3 variations of the name"}
	resp := c.processRequest(context.Background(), req, identities)
	if got := len(resp.Identities[0].Variations); got != 3 {
		t.Errorf("explicit count: variations = %d, want 3", got)
	}

	// Without a count the configured default applies.
	req = &Request{RequestID: "req-9", Requester: "miner-7"}
	resp = c.processRequest(context.Background(), req, identities)
	if got := len(resp.Identities[0].Variations); got != 6 {
		t.Errorf("configured default: variations = %d, want 6", got)
	}
}

func TestMeta(t *testing.T) {
	t.Parallel()

	c := &Component{}
	meta := c.Meta()

	if meta.Name != "variation-api" {
		t.Errorf("Name = %q, want %q", meta.Name, "variation-api")
	}
	if meta.Type != "processor" {
		t.Errorf("Type = %q, want %q", meta.Type, "processor")
	}
	if meta.Version != "0.1.0" {
		t.Errorf("Version = %q, want %q", meta.Version, "0.1.0")
	}
	if meta.Description == "" {
		t.Error("Description should not be empty")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		running     bool
		failed      int64
		wantHealthy bool
		wantStatus  string
	}{
		{"running and healthy", true, 0, true, "running"},
		{"running with errors", true, 5, true, "running"},
		{"stopped", false, 0, false, "stopped"},
	}

	for _, tc := range cases {
		c := &Component{running: tc.running, started: time.Now().Add(-time.Hour)}
		c.requestsFailed.Store(tc.failed)

		health := c.Health()
		if health.Healthy != tc.wantHealthy || health.Status != tc.wantStatus {
			t.Errorf("%s: Healthy/Status = %v/%q, want %v/%q",
				tc.name, health.Healthy, health.Status, tc.wantHealthy, tc.wantStatus)
		}
		if health.ErrorCount != int(tc.failed) {
			t.Errorf("%s: ErrorCount = %d, want %d", tc.name, health.ErrorCount, tc.failed)
		}
	}
}
