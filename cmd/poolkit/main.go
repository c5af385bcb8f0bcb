package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/poolkit/internal/workload"
	"github.com/ajitpratap0/poolkit/pkg/config"
	"github.com/ajitpratap0/poolkit/pkg/health"
	"github.com/ajitpratap0/poolkit/pkg/logger"
	"github.com/ajitpratap0/poolkit/pkg/maintenance"
	"github.com/ajitpratap0/poolkit/pkg/metrics"
	"github.com/ajitpratap0/poolkit/pkg/registry"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "poolkit",
		Short: "Poolkit - bounded object pool toolkit",
		Long: `Poolkit is a demo and benchmark harness around the poolkit library.
It registers pools from a YAML settings file (or defaults), drives synthetic
get/return traffic against them, and reports statistics and health.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Poolkit v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var (
		configFile  string
		poolName    string
		workers     int
		cycles      int
		hold        time.Duration
		payloadSize int
		withMaint   bool
		logLevel    string
	)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic get/return workload",
		Long: `Run a concurrent get/return workload against a pool and print the result
as JSON. Without --config a single dynamic pool named "bench" is used.

Example:
  poolkit bench --workers 8 --cycles 10000 --hold 100us`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(configFile, poolName, logLevel, workload.Options{
				Workers: workers,
				Cycles:  cycles,
				Hold:    hold,
				Touch:   true,
			}, payloadSize, withMaint)
		},
	}
	benchCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML settings file (optional)")
	benchCmd.Flags().StringVar(&poolName, "pool", "", "Pool to bench (defaults to the first configured pool)")
	benchCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Concurrent workers")
	benchCmd.Flags().IntVar(&cycles, "cycles", 10000, "Get/return cycles per worker")
	benchCmd.Flags().DurationVar(&hold, "hold", 0, "How long each worker holds its lease (e.g. 100us, 1ms)")
	benchCmd.Flags().IntVar(&payloadSize, "payload-size", 4096, "Capacity in bytes of each pooled payload")
	benchCmd.Flags().BoolVar(&withMaint, "maintenance", false, "Run the maintenance scheduler during the bench")
	benchCmd.Flags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	root.AddCommand(benchCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Register configured pools and dump global statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpStats(configFile, logLevel, payloadSize)
		},
	}
	statsCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML settings file (optional)")
	statsCmd.Flags().IntVar(&payloadSize, "payload-size", 4096, "Capacity in bytes of each pooled payload")
	statsCmd.Flags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	root.AddCommand(statsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings reads the settings file, or returns defaults with a single
// bench pool when no file is given.
func loadSettings(configFile string) (config.Settings, error) {
	if configFile == "" {
		s := config.DefaultSettings()
		s.Pools = []config.PoolSettings{{
			Name:            "bench",
			InitialCapacity: runtime.NumCPU(),
			MaxCapacity:     runtime.NumCPU() * 4,
			Prewarm:         true,
		}}
		return s, nil
	}

	s, err := config.Load(configFile)
	if err != nil {
		return config.Settings{}, err
	}
	if len(s.Pools) == 0 {
		return config.Settings{}, fmt.Errorf("settings file %s declares no pools", configFile)
	}
	return s, nil
}

// buildRegistry registers every configured pool with a payload factory.
func buildRegistry(settings config.Settings, payloadSize int, log *zap.Logger) (*registry.Registry, error) {
	reg := registry.New(log)
	for _, ps := range settings.Pools {
		cfg := config.PoolConfig(ps, workload.NewPayloadFactory(payloadSize))
		cfg.Reset = workload.ResetPayload
		if _, err := registry.Register(reg, cfg); err != nil {
			reg.Shutdown()
			return nil, err
		}
	}
	return reg, nil
}

func initLogger(settings config.Settings, flagLevel string) *zap.Logger {
	level := settings.LogLevel
	if flagLevel != "" {
		level = flagLevel
	}
	if err := logger.Init(logger.Config{Level: level}); err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
	}
	return logger.Get().With(zap.String("component", "poolkit-cli"))
}

// benchReport is the JSON document the bench command prints.
type benchReport struct {
	Pool    string               `json:"pool"`
	Result  workload.Result      `json:"result"`
	Health  health.Status        `json:"health"`
	Global  registry.GlobalStats `json:"global"`
	Elapsed time.Duration        `json:"elapsed"`
}

func runBench(configFile, poolName, logLevel string, opts workload.Options, payloadSize int, withMaint bool) error {
	settings, err := loadSettings(configFile)
	if err != nil {
		return err
	}
	log := initLogger(settings, logLevel)

	reg, err := buildRegistry(settings, payloadSize, log)
	if err != nil {
		return err
	}
	defer reg.Shutdown()

	// Export scrape-ready metrics even in the harness, so a bench run can
	// be pointed at a local Prometheus.
	promReg := prometheus.NewRegistry()
	if err := promReg.Register(metrics.NewExporter(reg)); err != nil {
		log.Warn("failed to register metrics exporter", zap.Error(err))
	}

	if poolName == "" {
		poolName = settings.Pools[0].Name
	}
	p, err := registry.Lookup[*workload.Payload](reg, poolName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if withMaint {
		sched := maintenance.NewScheduler(reg, maintenance.Config{
			Interval:        settings.Maintenance.Interval,
			MemoryWatermark: settings.Maintenance.MemoryWatermark,
		}, log)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	log.Info("starting bench",
		zap.String("pool", poolName),
		zap.Int("workers", opts.Workers),
		zap.Int("cycles", opts.Cycles))

	start := time.Now()
	res, err := workload.Run(ctx, p, opts, log)
	if err != nil {
		return err
	}

	reporter := health.NewReporter(reg, health.Thresholds{}, log)
	report := benchReport{
		Pool:    poolName,
		Result:  res,
		Health:  reporter.Report().Status,
		Global:  reg.GlobalStatistics(),
		Elapsed: time.Since(start),
	}
	return printJSON(report)
}

func dumpStats(configFile, logLevel string, payloadSize int) error {
	settings, err := loadSettings(configFile)
	if err != nil {
		return err
	}
	log := initLogger(settings, logLevel)

	reg, err := buildRegistry(settings, payloadSize, log)
	if err != nil {
		return err
	}
	defer reg.Shutdown()

	return printJSON(reg.GlobalStatistics())
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
