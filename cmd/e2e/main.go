// Package main runs the end-to-end scenarios against a live doppel
// instance.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/doppel/test/e2e/config"
	"github.com/c360studio/doppel/test/e2e/scenarios"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		nats         string
		httpBase     string
		asJSON       bool
		stageTimeout time.Duration
		runTimeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "e2e [scenario]",
		Short: "Run doppel e2e tests",
		Long: `Run end-to-end tests against a live doppel instance.

The instance under test must allowlist "e2e-runner" at weight 1.0 and run
with the default generator configuration (LLM enrichment disabled).

Available scenarios:
  http-api             - Tests health, variations, and rules over HTTP
  variation-roundtrip  - Tests the JetStream request/result round trip
  admission            - Tests rejection of unallowlisted requesters
  all                  - Run all scenarios (default)

Examples:
  e2e                            # every scenario
  e2e variation-roundtrip        # one scenario by name
  e2e --json                     # machine-readable results
  e2e --nats nats://host:4222    # point at another NATS server
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "all"
			if len(args) > 0 {
				name = args[0]
			}
			cfg := &config.Config{
				NATSURL:      nats,
				HTTPBaseURL:  httpBase,
				SetupTimeout: stageTimeout * 2,
				StageTimeout: stageTimeout,
			}
			r := &runner{cfg: cfg, quiet: asJSON}
			return r.run(name, runTimeout)
		},
	}

	cmd.Flags().StringVar(&nats, "nats", config.DefaultNATSURL, "NATS URL of the instance under test")
	cmd.Flags().StringVar(&httpBase, "http", config.DefaultHTTPBaseURL, "Doppel HTTP base URL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as a JSON document")
	cmd.Flags().DurationVar(&stageTimeout, "timeout", config.DefaultStageTimeout, "Per-stage timeout")
	cmd.Flags().DurationVar(&runTimeout, "global-timeout", 10*time.Minute, "Budget for the whole run")

	cmd.AddCommand(newListCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(`Available scenarios:

  http-api             Tests health, variations, and rules over HTTP
  variation-roundtrip  Tests the JetStream request/result round trip
  admission            Tests rejection of unallowlisted requesters

Use 'e2e all' to run all scenarios.
`)
		},
	}
}

// runner executes scenarios and reports progress. With quiet set (JSON
// output), nothing prints until the final document.
type runner struct {
	cfg   *config.Config
	quiet bool
}

func (r *runner) printf(format string, args ...any) {
	if !r.quiet {
		fmt.Printf(format, args...)
	}
}

const heavyRule = "═══════════════════════════════════════════════════════════════"

var lightRule = strings.Repeat("─", 63)

// pick returns the scenarios selected by name; "all" keeps the whole
// list, an unknown name returns nil.
func pick(all []scenarios.Scenario, name string) []scenarios.Scenario {
	if name == "all" {
		return all
	}
	for _, s := range all {
		if s.Name() == name {
			return []scenarios.Scenario{s}
		}
	}
	return nil
}

func (r *runner) run(name string, runTimeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	all := []scenarios.Scenario{
		scenarios.NewHTTPAPIScenario(r.cfg),
		scenarios.NewVariationRoundtripScenario(r.cfg),
		scenarios.NewAdmissionScenario(r.cfg),
	}

	selected := pick(all, name)
	if selected == nil {
		return fmt.Errorf("unknown scenario: %s", name)
	}

	results := make([]*scenarios.Result, 0, len(selected))
	passedAll := true
	for _, s := range selected {
		if ctx.Err() != nil {
			r.printf("\nRun interrupted\n")
			break
		}
		res := r.runOne(ctx, s)
		results = append(results, res)
		if !res.Success {
			passedAll = false
		}
	}

	if r.quiet {
		printJSON(results)
	} else {
		r.printSummary(results)
	}

	if !passedAll {
		return fmt.Errorf("one or more scenarios failed")
	}
	return nil
}

// failedResult builds a Result for a scenario that never produced one.
func failedResult(name, format string, args ...any) *scenarios.Result {
	res := scenarios.NewResult(name)
	res.Error = fmt.Sprintf(format, args...)
	res.AddError(res.Error)
	res.Complete()
	return res
}

func (r *runner) runOne(ctx context.Context, s scenarios.Scenario) *scenarios.Result {
	r.printf("\n%s\n", heavyRule)
	r.printf("Running: %s\n", s.Name())
	r.printf("Description: %s\n", s.Description())
	r.printf("%s\n\n", heavyRule)

	r.printf("Setup... ")
	if err := s.Setup(ctx); err != nil {
		r.printf("FAILED: %v\n", err)
		return failedResult(s.Name(), "setup failed: %v", err)
	}
	r.printf("OK\n")

	r.printf("Execute... ")
	res, err := s.Execute(ctx)
	switch {
	case err != nil:
		r.printf("ERROR: %v\n", err)
		res = failedResult(s.Name(), "execution error: %v", err)
	case res.Success:
		r.printf("PASSED\n")
	default:
		r.printf("FAILED: %s\n", res.Error)
	}

	r.printf("Teardown... ")
	if err := s.Teardown(ctx); err != nil {
		res.AddWarning(fmt.Sprintf("teardown failed: %v", err))
		r.printf("WARNING: %v\n", err)
	} else {
		r.printf("OK\n")
	}

	if !r.quiet && len(res.Stages) > 0 {
		fmt.Println("\nStages:")
		for _, stage := range res.Stages {
			mark := "✓"
			if !stage.Success {
				mark = "✗"
			}
			fmt.Printf("  %s %s (%dms)\n", mark, stage.Name, stage.Duration.Milliseconds())
			if stage.Error != "" {
				fmt.Printf("      Error: %s\n", stage.Error)
			}
		}
	}

	return res
}

// report is the --json output document.
type report struct {
	Timestamp time.Time           `json:"timestamp"`
	Results   []*scenarios.Result `json:"results"`
	Summary   reportSummary       `json:"summary"`
}

type reportSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

func printJSON(results []*scenarios.Result) {
	doc := report{
		Timestamp: time.Now(),
		Results:   results,
	}
	doc.Summary.Total = len(results)
	for _, res := range results {
		if res.Success {
			doc.Summary.Passed++
		} else {
			doc.Summary.Failed++
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling results: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func (r *runner) printSummary(results []*scenarios.Result) {
	fmt.Println("\n" + heavyRule)
	fmt.Println("  SUMMARY")
	fmt.Println(heavyRule)

	passed, failed := 0, 0
	for _, res := range results {
		verdict := "✓ passed"
		if res.Success {
			passed++
		} else {
			verdict = "✗ failed"
			failed++
		}
		fmt.Printf("  %s  %s (%dms)\n", verdict, res.ScenarioName, res.Duration.Milliseconds())
		if !res.Success && res.Error != "" {
			msg := res.Error
			if len(msg) > 80 {
				msg = msg[:77] + "..."
			}
			fmt.Printf("           %s\n", msg)
		}
	}

	fmt.Println(lightRule)
	fmt.Printf("  %d run, %d passed, %d failed\n", len(results), passed, failed)
	fmt.Println(heavyRule)

	if failed > 0 {
		fmt.Println("\nSome scenarios failed. Rerun with --json for full detail.")
	}
}
