package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gatekeep/internal/gatehttp"
	"gatekeep/pkg/admission"
	"gatekeep/pkg/clock"
	"gatekeep/pkg/config"
	"gatekeep/pkg/identity"
	"gatekeep/pkg/logger"
	"gatekeep/pkg/policy"
	"gatekeep/pkg/window"
)

var (
	// Serve command flags
	servePort      string
	serveAlgorithm string
	serveMaxCalls  int
	serveWindow    time.Duration
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rate-limited HTTP server",
	Long: `Start the HTTP server with admission control applied to every route.

Clients over their budget receive 429 with a Retry-After header; requests
with a missing or unknown API key receive 400 or 403 when the credential
identity strategy is active.`,
	Example: `  # Serve with defaults (5 requests per 60s, per client address)
  gatekeep serve

  # Fixed-window counting, 100 requests per minute, on port 9090
  gatekeep serve --algorithm fixed_window --max-calls 100 --window 1m --port 9090

  # Credential identities from a config file
  gatekeep serve --config gatekeep.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port")
	serveCmd.Flags().StringVar(&serveAlgorithm, "algorithm", "", "window algorithm (sliding_log, fixed_window)")
	serveCmd.Flags().IntVar(&serveMaxCalls, "max-calls", 0, "default budget: calls per window")
	serveCmd.Flags().DurationVar(&serveWindow, "window", 0, "default budget: window length")
}

func runServe() error {
	cfg, err := config.Load(configFile, serveFlags())
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	decider, janitor, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	limited := gatehttp.Middleware(gatehttp.Options{
		Decider:           decider,
		CredentialHeader:  cfg.Identity.Header,
		TrustForwardedFor: cfg.Identity.TrustForwardedFor,
		Logger:            log,
	})

	mux := http.NewServeMux()
	mux.Handle("/", limited(http.HandlerFunc(gatehttp.HelloHandler)))
	mux.HandleFunc("/healthz", gatehttp.HealthHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.InfoWithFields("Server listening", map[string]interface{}{
			"port":      cfg.Server.Port,
			"algorithm": cfg.Limiter.Algorithm,
			"strategy":  cfg.Identity.Strategy,
		})
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	return nil
}

// serveFlags collects explicitly set command line flags for config merging.
func serveFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if servePort != "" {
		flags["port"] = servePort
	}
	if serveAlgorithm != "" {
		flags["algorithm"] = serveAlgorithm
	}
	if serveMaxCalls > 0 {
		flags["max-calls"] = serveMaxCalls
	}
	if serveWindow > 0 {
		flags["window"] = serveWindow
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

// buildEngine wires the resolver, policy table, window store and janitor
// described by cfg into a Decider.
func buildEngine(cfg *config.Config, log logger.Logger) (*admission.Decider, *window.Janitor, error) {
	var resolver identity.Resolver
	switch cfg.Identity.Strategy {
	case config.StrategyCredential:
		resolver = identity.NewCredentialResolver(cfg.Credentials.Keys)
	default:
		resolver = identity.NewAddressResolver()
	}

	overrides := make(map[string]policy.Budget, len(cfg.Limiter.Overrides))
	for key, b := range cfg.Limiter.Overrides {
		overrides[key] = policy.Budget{MaxCalls: b.MaxCalls, Window: b.Window.Std()}
	}
	table, err := policy.NewTable(policy.Budget{
		MaxCalls: cfg.Limiter.MaxCalls,
		Window:   cfg.Limiter.Window.Std(),
	}, overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid budget configuration: %w", err)
	}

	storeOpts := window.Options{
		Shards:    cfg.Limiter.Shards,
		Retention: cfg.RetentionHorizon(),
	}
	var store window.Store
	if cfg.Limiter.Algorithm == config.AlgorithmFixedWindow {
		store = window.NewFixedWindow(storeOpts)
	} else {
		store = window.NewSlidingLog(storeOpts)
	}

	clk := clock.System()
	janitor := window.NewJanitor(store, cfg.Limiter.SweepInterval.Std(), clk, log)

	decider, err := admission.New(resolver, table, store, clk, log)
	if err != nil {
		return nil, nil, err
	}
	return decider, janitor, nil
}
