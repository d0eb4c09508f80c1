// Package main is the doppel service binary. Doppel generates identity
// variations: plausible alternative renderings of names, dates of birth,
// and addresses used to evaluate screening systems.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/doppel/commands"
	doppelconfig "github.com/c360studio/doppel/config"
	"github.com/c360studio/doppel/geocode"
	_ "github.com/c360studio/doppel/llm/providers" // register LLM providers
	"github.com/c360studio/doppel/namegen"
	variationapi "github.com/c360studio/doppel/processor/variation-api"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/componentregistry"
	"github.com/c360studio/semstreams/config"
	"github.com/c360studio/semstreams/metric"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semstreams/service"
	"github.com/c360studio/semstreams/types"
	"github.com/spf13/cobra"
)

const appName = "doppel"

// Overridden at release time via -ldflags "-X main.version=... -X main.buildTime=...".
var (
	version   = "0.1.0"
	buildTime = "dev"
)

func main() {
	defer crashReport()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// crashReport prints the panic value and stack before exiting.
func crashReport() {
	r := recover()
	if r == nil {
		return
	}
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, buf[:n])
	os.Exit(2)
}

func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	cmd := &cobra.Command{
		Use:   "doppel",
		Short: "Identity variation service",
		Long: `Doppel generates identity variations: plausible alternative
renderings of a name, date of birth, and address used to evaluate
screening systems.

Capabilities:
- Rule-based and free name variation with per-script handling
- Date of birth and address variation around a seed identity
- A JetStream request/result surface plus an HTTP API

Stages exchange work over NATS JetStream via semstreams components.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel, cmd.Flags().Changed("log-level"))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, or error")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(commands.NewGenerateCommand())
	cmd.AddCommand(commands.NewRulesCommand())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, version, buildTime)
		},
	}
}

func run(configPath, logLevel string, logLevelSet bool) error {
	banner()
	setLogger(parseLogLevel(logLevel))

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The config file can set a log level too; an explicit flag wins.
	if !logLevelSet && cfg.Log.Level != "" && cfg.Log.Level != logLevel {
		setLogger(parseLogLevel(cfg.Log.Level))
	}
	logger := slog.Default()

	if len(cfg.Service.Allowlist) == 0 {
		slog.Warn("Allowlist is empty; every variation request will be rejected")
	}

	sysCfg := buildPlatformConfig(cfg)
	if err := sysCfg.Validate(); err != nil {
		return fmt.Errorf("validate platform config: %w", err)
	}

	ctx := context.Background()
	nc, err := connectNATS(ctx, sysCfg, logger)
	if err != nil {
		return err
	}
	defer nc.Close(ctx)

	if err := config.NewStreamsManager(nc, logger).EnsureStreams(ctx, sysCfg); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	slog.Info("Doppel ready",
		"version", version,
		"llm_enrichment", cfg.LLM.Enabled,
		"allowlisted_requesters", len(cfg.Service.Allowlist))

	// The config manager hands component configs to the service manager.
	cfgManager, err := config.NewConfigManager(sysCfg, nc, logger)
	if err != nil {
		return fmt.Errorf("create config manager: %w", err)
	}
	if err := cfgManager.Start(ctx); err != nil {
		return fmt.Errorf("start config manager: %w", err)
	}
	defer cfgManager.Stop(5 * time.Second)

	compReg := component.NewRegistry()
	if err := componentregistry.Register(compReg); err != nil {
		return fmt.Errorf("register builtin components: %w", err)
	}
	if err := variationapi.Register(compReg); err != nil {
		return fmt.Errorf("register variation-api: %w", err)
	}
	slog.Info("Component factories registered", "count", len(compReg.ListFactories()))

	svcReg := service.NewServiceRegistry()
	if err := service.RegisterAll(svcReg); err != nil {
		return fmt.Errorf("register service constructors: %w", err)
	}
	mgr := service.NewServiceManager(svcReg)
	ensureServiceManager(sysCfg)

	platform := platformMeta(sysCfg)
	slog.Info("Platform identity", "org", platform.Org, "platform", platform.Platform)

	deps := &service.Dependencies{
		NATSClient:        nc,
		MetricsRegistry:   metric.NewMetricsRegistry(),
		Logger:            logger,
		Platform:          platform,
		Manager:           cfgManager,
		ComponentRegistry: compReg,
	}
	if err := createServices(sysCfg, mgr, deps); err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting services")
	if err := mgr.StartAll(signalCtx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	slog.Info("Services running")

	<-signalCtx.Done()
	slog.Info("Shutdown signal received")

	if err := mgr.StopAll(30 * time.Second); err != nil {
		slog.Error("Service shutdown failed", "error", err)
	}
	slog.Info("Doppel shutdown complete")
	return nil
}

func banner() {
	fmt.Printf("doppel %s (build %s)\n", version, buildTime)
	fmt.Println("identity variation service")
}

func setLogger(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func parseLogLevel(s string) slog.Level {
	if lvl, ok := logLevels[strings.ToLower(s)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

func loadConfig(configPath string) (*doppelconfig.Config, error) {
	if configPath != "" {
		cfg, err := doppelconfig.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	// Layered lookup: defaults, then the user config, then the nearest
	// doppel.yaml up the directory tree. Load validates the result.
	return doppelconfig.NewLoader(slog.Default()).Load()
}

// buildPlatformConfig maps the doppel config onto the semstreams
// platform config: one DOPPEL stream and one variation-api component.
func buildPlatformConfig(cfg *doppelconfig.Config) *config.Config {
	variationConfig := variationapi.DefaultConfig()
	variationConfig.TargetCount = cfg.Generator.TargetCount
	variationConfig.Generator = namegen.Config{
		Overgeneration:    cfg.Generator.Overgeneration,
		RuleAttempts:      cfg.Generator.RuleAttempts,
		ReconcileAttempts: cfg.Generator.ReconcileAttempts,
	}
	variationConfig.Allowlist = cfg.Service.Allowlist
	variationConfig.MinWeight = cfg.Service.MinWeight
	variationConfig.MaxIdentities = cfg.Service.MaxIdentities
	variationConfig.Concurrency = cfg.Service.Concurrency
	if cfg.Service.RequestTimeout > 0 {
		variationConfig.RequestTimeout = cfg.Service.RequestTimeout.String()
	}
	variationConfig.LLM = variationapi.LLMSettings{
		Enabled:     cfg.LLM.Enabled,
		Capability:  cfg.LLM.Capability,
		Temperature: cfg.LLM.Temperature,
		MaxNames:    cfg.LLM.MaxNames,
		Timeout:     cfg.LLM.Timeout.String(),
		ModelsFile:  cfg.LLM.ModelsFile,
	}
	variationConfig.Geocode = geocode.Config{
		BaseURL:       cfg.Geocode.BaseURL,
		UserAgent:     cfg.Geocode.UserAgent,
		Timeout:       cfg.Geocode.Timeout,
		CacheTTL:      cfg.Geocode.CacheTTL,
		RatePerSecond: cfg.Geocode.RatePerSecond,
	}
	variationJSON, _ := json.Marshal(variationConfig)

	return &config.Config{
		Version: "1.0.0",
		Platform: config.PlatformConfig{
			Org:         "doppel",
			ID:          "doppel-local",
			Environment: "dev",
		},
		NATS: config.NATSConfig{
			URLs:          cfg.NATS.URLs,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			JetStream: config.JetStreamConfig{Enabled: true},
		},
		Services: types.ServiceConfigs{},
		Components: config.ComponentConfigs{
			"variation-api": types.ComponentConfig{
				Name:    "variation-api",
				Type:    types.ComponentTypeProcessor,
				Enabled: true,
				Config:  variationJSON,
			},
		},
		Streams: config.StreamConfigs{
			"DOPPEL": config.StreamConfig{
				Subjects: []string{
					"doppel.>",
				},
				MaxAge:   cfg.NATS.StreamMaxAge.String(),
				Storage:  cfg.NATS.StreamStorage,
				Replicas: cfg.NATS.StreamReplicas,
			},
		},
	}
}

// connectNATS dials the resolved NATS URL and blocks until the
// connection comes up or the wait times out.
func connectNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	url := natsURL(cfg)
	logger.Info("Connecting to NATS", "url", url)

	cl, err := natsclient.NewClient(url,
		natsclient.WithName("doppel"),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20), // startup bursts trip lower thresholds
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("new NATS client: %w", err)
	}
	if err := cl.Connect(ctx); err != nil {
		return nil, natsHint(err, url)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cl.WaitForConnection(waitCtx); err != nil {
		return nil, natsHint(err, url)
	}

	logger.Info("Connected to NATS", "url", url)
	return cl, nil
}

// natsURL resolves the server address: NATS_URL, then DOPPEL_NATS_URL,
// then the config list, then the local default.
func natsURL(cfg *config.Config) string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	if v := os.Getenv("DOPPEL_NATS_URL"); v != "" {
		return v
	}
	if len(cfg.NATS.URLs) > 0 {
		return strings.Join(cfg.NATS.URLs, ",")
	}
	return "nats://localhost:4222"
}

// natsHint decorates common first-run connection failures with a
// how-to-start hint.
func natsHint(err error, url string) error {
	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no servers available") ||
		strings.Contains(msg, "timeout") {
		return fmt.Errorf(`could not reach NATS: %w

No NATS server answered at %s.

Start one with:
    docker compose up -d nats

or export NATS_URL before starting doppel.`, err, url)
	}
	return fmt.Errorf("could not reach NATS: %w", err)
}

func platformMeta(cfg *config.Config) types.PlatformMeta {
	id := cfg.Platform.InstanceID
	if id == "" {
		id = cfg.Platform.ID
	}
	return types.PlatformMeta{Org: cfg.Platform.Org, Platform: id}
}

// ensureServiceManager injects a default service-manager entry when
// the config does not carry one, so the HTTP surface always comes up.
func ensureServiceManager(cfg *config.Config) {
	if cfg.Services == nil {
		cfg.Services = types.ServiceConfigs{}
	}
	if _, ok := cfg.Services["service-manager"]; ok {
		return
	}

	raw, _ := json.Marshal(map[string]any{
		"http_port":  8080,
		"swagger_ui": false,
		"server_info": map[string]string{
			"title":       "Doppel API",
			"description": "identity variation service - name, date of birth, and address synthesis",
			"version":     version,
		},
	})
	cfg.Services["service-manager"] = types.ServiceConfig{Name: "service-manager", Enabled: true, Config: raw}
}

// createServices instantiates every enabled service from config. The
// service-manager itself is configured through ConfigureFromServices
// and skipped in the loop.
func createServices(cfg *config.Config, manager *service.Manager, deps *service.Dependencies) error {
	if err := manager.ConfigureFromServices(cfg.Services, deps); err != nil {
		return fmt.Errorf("configure service manager: %w", err)
	}

	for name, sc := range cfg.Services {
		if name == "service-manager" {
			continue
		}
		if !sc.Enabled {
			slog.Info("Service disabled in config", "name", name)
			continue
		}
		if !manager.HasConstructor(name) {
			slog.Warn("Service configured but not registered", "name", name, "available", manager.ListConstructors())
			continue
		}
		if _, err := manager.CreateService(name, sc.Config, deps); err != nil {
			return fmt.Errorf("create service %s: %w", name, err)
		}
		slog.Info("Created service", "name", name)
	}
	return nil
}
