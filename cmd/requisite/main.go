package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	osignal "os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"requisite/internal/authority"
	"requisite/internal/config"
	"requisite/internal/coordinator"
	"requisite/internal/logging"
	"requisite/internal/signal"
	"requisite/internal/store"
)

const version = "0.3.0"

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "requisite",
	Short: "requisite - variety-aware intelligence layer",
	Long: `requisite is the intelligence layer of a hierarchical control system.

It scans environmental signals, detects emergent patterns, monitors
behavioral variety against internal regulatory capacity (Ashby's Law of
Requisite Variety), and proposes adaptations when the environment outruns
the system. Structural decisions are escalated to the policy authority,
never taken unilaterally.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd runs the continuous intelligence loops until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the intelligence loops",
	Long: `Starts the continuous loops: signal scanning and pattern detection at
the scan interval, variety self-assessment at the tick interval, and the
viability check once a minute. Runs until SIGINT/SIGTERM.`,
	RunE: runLoops,
}

// scanCmd performs a single scan-and-detect pass and prints the result.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and detection pass",
	RunE:  runScan,
}

// statusCmd prints the aggregate status from the archive-backed state.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archived intelligence state",
	RunE:  runStatus,
}

// versionCmd prints the version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("requisite %s\n", version)
	},
}

var scanScope string

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: cwd)")

	scanCmd.Flags().StringVar(&scanScope, "scope", "full", "scan scope: full, partial, targeted")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveStorePath anchors a relative database path in the workspace so the
// archive lives next to the config and logs regardless of the process cwd.
func resolveStorePath(workspace, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workspace, path)
}

// buildIntelligence assembles the full stack from config.
func buildIntelligence(cfg *config.Config, withArchive bool) (*coordinator.Intelligence, *store.Archive, error) {
	var archive *store.Archive
	if withArchive {
		var err error
		archive, err = store.Open(resolveStorePath(workspace, cfg.Store.DatabasePath))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open archive: %w", err)
		}
	}

	source := signal.NewSyntheticSource(cfg.Scanner.SourceSeed)
	policy := authority.NewLoggingPolicy()
	resources := authority.NewStaticResources(10.0)

	intel := coordinator.New(cfg, source, policy, resources, archive)
	return intel, archive, nil
}

func runLoops(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	intel, _, err := buildIntelligence(cfg, true)
	if err != nil {
		return err
	}

	// Config hot reload: only the logging block takes effect live.
	watcher := config.NewWatcher(workspace, func(updated *config.Config) {
		if err := logging.ReloadConfig(); err != nil {
			logger.Warn("logging config reload failed", zap.Error(err))
		}
		logger.Info("configuration reloaded")
	})
	if err := watcher.Start(); err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	ctx, stop := osignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := intel.Start(ctx); err != nil {
		return err
	}
	logger.Info("intelligence running",
		zap.Duration("scan_interval", cfg.ScanInterval()),
		zap.Duration("variety_tick", cfg.VarietyTickInterval()))

	<-ctx.Done()
	logger.Info("shutting down")
	return intel.Stop()
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	intel, archive, err := buildIntelligence(cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if archive != nil {
			_ = archive.Close()
		}
	}()

	scope := signal.ParseScope(scanScope)
	snap := intel.Scan(scope)
	result, err := intel.DetectPatterns(snap)
	if err != nil {
		return err
	}

	out := map[string]any{
		"scope":            snap.Scope,
		"coverage":         snap.Coverage,
		"patterns":         len(result.Patterns),
		"meta_patterns":    len(result.MetaPatterns),
		"emergence_score":  result.EmergenceScore,
		"graph_complexity": result.GraphComplexity,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	archive, err := store.Open(resolveStorePath(workspace, cfg.Store.DatabasePath))
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	st, ok, err := archive.LastState()
	if err != nil {
		return err
	}
	explosions, err := archive.ExplosionCount()
	if err != nil {
		return err
	}
	counts, err := archive.CountByStatus()
	if err != nil {
		return err
	}

	out := map[string]any{
		"archived_explosions": explosions,
		"adaptations":         counts,
	}
	if ok {
		out["variety"] = map[string]float64{
			"level":           st.CurrentVarietyLevel,
			"capacity":        st.InternalVarietyCapacity,
			"ratio":           st.VarietyRatio,
			"absorption_rate": st.AbsorptionRate,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
