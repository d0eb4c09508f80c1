package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/c360studio/doppel/addressgen"
	"github.com/c360studio/doppel/config"
	"github.com/c360studio/doppel/dobgen"
	"github.com/c360studio/doppel/geocode"
	"github.com/c360studio/doppel/namegen"
	"github.com/c360studio/doppel/requirement"
	"github.com/c360studio/doppel/script"
	"github.com/spf13/cobra"
)

// generateOptions collects the generate command flags.
type generateOptions struct {
	instruction string
	dob         string
	city        string
	country     string
	count       int
	seed        uint64
	asJSON      bool
}

// generateResult is the per-seed output of the generate command.
type generateResult struct {
	Seed          string              `json:"seed"`
	Script        script.Script       `json:"script"`
	Names         []namegen.Variation `json:"names"`
	DOBs          []string            `json:"dobs,omitempty"`
	Addresses     []string            `json:"addresses,omitempty"`
	RuleCount     int                 `json:"rule_count"`
	FreeCount     int                 `json:"free_count"`
	FallbackCount int                 `json:"fallback_count"`
}

// NewGenerateCommand returns the offline generate command. It runs the
// variation pipeline locally for one or more seed names, without a
// NATS connection.
func NewGenerateCommand() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate [name ...]",
		Short: "Generate identity variations offline",
		Long: `Generate runs the variation pipeline locally for one or more seed
names. DOB and address variations are included when the matching flags
are set. No NATS connection is required; address synthesis queries
Nominatim when a city or country is given and degrades to synthetic
roads when the lookup fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.instruction, "instruction", "i", "", "Instruction steering count, rules, and similarity mix")
	cmd.Flags().StringVar(&opts.dob, "dob", "", "Seed date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.city, "city", "", "Seed city for address variations")
	cmd.Flags().StringVar(&opts.country, "country", "", "Seed country for address variations")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Variation count, overriding the instruction")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "RNG seed for reproducible output (0 = time-based)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Emit JSON instead of text")

	return cmd
}

func runGenerate(cmd *cobra.Command, names []string, opts generateOptions) error {
	// Pipeline warnings go to stderr so piped JSON stays clean.
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	want := requirement.Parse(opts.instruction)
	if opts.count > 0 {
		want.TargetCount = opts.count
	} else if want.TargetCount == requirement.DefaultTargetCount && cfg.Generator.TargetCount > 0 {
		want.TargetCount = cfg.Generator.TargetCount
	}

	seed := opts.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	eng := namegen.NewEngine(rng, logger, namegen.Config{
		Overgeneration:    cfg.Generator.Overgeneration,
		RuleAttempts:      cfg.Generator.RuleAttempts,
		ReconcileAttempts: cfg.Generator.ReconcileAttempts,
	})

	var geo *geocode.Client
	if opts.city != "" || opts.country != "" {
		geo = geocode.NewClient(geocode.Config{
			BaseURL:       cfg.Geocode.BaseURL,
			UserAgent:     cfg.Geocode.UserAgent,
			Timeout:       cfg.Geocode.Timeout,
			CacheTTL:      cfg.Geocode.CacheTTL,
			RatePerSecond: cfg.Geocode.RatePerSecond,
		}, logger)
	}

	results := make([]generateResult, 0, len(names))
	for _, name := range names {
		res, err := eng.Generate(cmd.Context(), name, want)
		if err != nil {
			return fmt.Errorf("generate variations for %q: %w", name, err)
		}

		out := generateResult{
			Seed:          res.Seed,
			Script:        res.Script,
			Names:         res.Variations,
			RuleCount:     res.RuleCount,
			FreeCount:     res.FreeCount,
			FallbackCount: res.FallbackCount,
		}
		if opts.dob != "" {
			out.DOBs = dobgen.NewGenerator(rng, logger).Variations(opts.dob, len(res.Variations))
		}
		if geo != nil {
			addrs, err := addressgen.NewGenerator(rng, geo, logger).
				Variations(cmd.Context(), opts.city, opts.country, len(res.Variations))
			if err != nil {
				return fmt.Errorf("generate addresses for %q: %w", name, err)
			}
			out.Addresses = addrs
		}
		results = append(results, out)
	}

	if opts.asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	writeGenerateText(cmd.OutOrStdout(), results)
	return nil
}

func writeGenerateText(w io.Writer, results []generateResult) {
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s): %d variations (%d rule, %d free, %d fallback)\n",
			res.Seed, res.Script, len(res.Names), res.RuleCount, res.FreeCount, res.FallbackCount)
		for j, v := range res.Names {
			line := fmt.Sprintf("%3d. %-32s %s", j+1, v.Text, v.Source)
			if v.Rule != "" {
				line += "  " + string(v.Rule)
			}
			if len(res.DOBs) > 0 {
				line += "  " + res.DOBs[j%len(res.DOBs)]
			}
			if len(res.Addresses) > 0 {
				line += "  " + res.Addresses[j%len(res.Addresses)]
			}
			fmt.Fprintln(w, line)
		}
	}
}
