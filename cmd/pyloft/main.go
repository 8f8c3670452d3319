package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pyloft/console/pkg/config"
	"github.com/pyloft/console/pkg/log"
	"github.com/pyloft/console/pkg/metrics"
	"github.com/pyloft/console/pkg/storage"
	"github.com/pyloft/console/pkg/transport"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagConfig      string
	flagAPI         string
	flagLogLevel    string
	flagMetricsAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pyloft",
	Short: "Pyloft - deploy and observe Python web apps",
	Long: `Pyloft is the console for the Pyloft platform: author, validate,
deploy, observe, and roll back small Python web applications running
on the platform's cluster.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Pyloft console %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagAPI, "api", "", "platform API origin (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9321)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(deleteCmd)
}

// stack bundles the shared wiring every command needs.
type stack struct {
	cfg    *config.Config
	store  *storage.BoltStore
	client *transport.Client
}

func (s *stack) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func newStack() (*stack, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagAPI != "" {
		cfg.APIOrigin = flagAPI
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	client, err := transport.NewClient(cfg.APIOrigin, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	if flagMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(flagMetricsAddr, mux); err != nil {
				log.Errorf("metrics server stopped", err)
			}
		}()
	}

	return &stack{cfg: cfg, store: store, client: client}, nil
}

// confirm asks for interactive confirmation unless --yes was given.
func confirm(prompt string, assumeYes bool) bool {
	if assumeYes {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	_, _ = fmt.Scanln(&answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}
