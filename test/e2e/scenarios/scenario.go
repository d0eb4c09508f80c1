// Package scenarios holds the e2e scenarios run against a live doppel
// instance, and the result bookkeeping the runner reports from.
package scenarios

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Scenario is one end-to-end test. The runner calls Setup, Execute,
// and Teardown in order; Teardown runs even when Execute fails.
type Scenario interface {
	// Name identifies the scenario in reports and on the command line.
	Name() string

	// Description is the one-line summary shown by the runner.
	Description() string

	// Setup prepares clients and test data.
	Setup(ctx context.Context) error

	// Execute runs the scenario stages and reports the outcome.
	Execute(ctx context.Context) (*Result, error)

	// Teardown releases connections and captures.
	Teardown(ctx context.Context) error
}

// Stage is one named step of a scenario, run through RunStages.
type Stage struct {
	Name string
	Fn   func(context.Context, *Result) error
}

// RunStages executes stages in order, each under its own timeout, and
// records per-stage durations as metrics. The first failing stage stops
// the run and marks the result failed; a clean pass sets Success.
func RunStages(ctx context.Context, result *Result, timeout time.Duration, stages []Stage) {
	for _, stage := range stages {
		start := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		err := stage.Fn(stageCtx, result)
		cancel()

		elapsed := time.Since(start)
		result.SetMetric(stage.Name+"_duration_ms", elapsed.Milliseconds())

		if err != nil {
			result.AddStage(stage.Name, false, elapsed, err.Error())
			result.AddError(fmt.Sprintf("%s: %v", stage.Name, err))
			result.Error = fmt.Sprintf("%s failed: %v", stage.Name, err)
			return
		}
		result.AddStage(stage.Name, true, elapsed, "")
	}
	result.Success = true
}

// Result is the reported outcome of one scenario. Methods are safe for
// concurrent use; stages that fan out may record from goroutines.
type Result struct {
	mu sync.Mutex

	ScenarioName string        `json:"scenario_name"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Metrics  map[string]any `json:"metrics,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Stages   []StageResult  `json:"stages,omitempty"`
}

// StageResult records one completed stage.
type StageResult struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// NewResult returns a Result with the clock started.
func NewResult(name string) *Result {
	return &Result{
		ScenarioName: name,
		StartTime:    time.Now(),
		Metrics:      map[string]any{},
		Details:      map[string]any{},
	}
}

// Complete stamps the end time and duration.
func (res *Result) Complete() {
	res.mu.Lock()
	defer res.mu.Unlock()
	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
}

// AddError appends to the error list.
func (res *Result) AddError(err string) {
	res.mu.Lock()
	defer res.mu.Unlock()
	res.Errors = append(res.Errors, err)
}

// AddWarning appends a non-fatal issue.
func (res *Result) AddWarning(warning string) {
	res.mu.Lock()
	defer res.mu.Unlock()
	res.Warnings = append(res.Warnings, warning)
}

// AddStage records a completed stage.
func (res *Result) AddStage(name string, success bool, duration time.Duration, err string) {
	res.mu.Lock()
	defer res.mu.Unlock()
	res.Stages = append(res.Stages, StageResult{Name: name, Success: success, Duration: duration, Error: err})
}

// SetMetric stores a timing or count metric.
func (res *Result) SetMetric(key string, value any) {
	res.mu.Lock()
	defer res.mu.Unlock()
	res.Metrics[key] = value
}

// SetDetail stores scenario-specific output data.
func (res *Result) SetDetail(key string, value any) {
	res.mu.Lock()
	defer res.mu.Unlock()
	res.Details[key] = value
}
