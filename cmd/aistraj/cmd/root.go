package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ais-trajectory/internal/ais"
	"ais-trajectory/internal/config"
	"ais-trajectory/internal/db"
	"ais-trajectory/internal/loader"
	"ais-trajectory/internal/logging"
	"ais-trajectory/internal/metrics"
	"ais-trajectory/internal/pipeline"
	"ais-trajectory/internal/publisher"
	"ais-trajectory/internal/report"
)

var (
	dataPath     string
	outputPath   string
	settingsPath string
	sourceName   string
	categories   []string
	showTable    bool
)

var rootCmd = &cobra.Command{
	Use:   "aistraj",
	Short: "AIS trajectory statistics",
	Long: `aistraj reads the cargo and tanker AIS position reports, drops fixes with an
invalid latitude, measures every vessel trajectory with the haversine formula and
writes the unique MMSI and trajectory length reports of each category.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return run(ctx)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&dataPath, "data", "", "directory containing the position files")
	rootCmd.Flags().StringVar(&outputPath, "output", ".", "directory for the report files")
	rootCmd.Flags().StringVar(&settingsPath, "settings", config.DefaultSettingsPath, "path to settings.yaml")
	rootCmd.Flags().StringVar(&sourceName, "source", "", "position source: file or postgres (default from SOURCE)")
	rootCmd.Flags().StringSliceVar(&categories, "category", nil, "restrict the run to these categories (default all)")
	rootCmd.Flags().BoolVar(&showTable, "table", false, "print a summary table to stdout")
	_ = rootCmd.MarkFlagRequired("data")
}

func run(ctx context.Context) error {
	cats, err := selectedCategories()
	if err != nil {
		return err
	}
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if sourceName != "" {
		if err := cfg.SetSource(sourceName); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	mcol := metrics.NewCollector(cfg.Thresholds.ShortKm, cfg.Thresholds.LongKm)
	if cfg.MetricsAddr != "" {
		srv := mcol.Serve(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	source, closeSource, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	var pub pipeline.Publisher
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger, wrapPublisherMetrics(mcol))
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer np.Close()
		pub = np
	}

	runner := pipeline.NewRunner(source, report.NewWriter(outputPath), pub, cfg.Thresholds, mcol, logger)
	results, runErr := runner.Run(ctx, cats)

	if cfg.MetricsFile != "" {
		if err := mcol.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("write metrics textfile", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Info("run cancelled")
		}
		return runErr
	}
	if showTable {
		report.RenderTable(os.Stdout, pipeline.Entries(results))
	}
	logger.Debug("run complete", zap.Int("categories", len(results)))
	return nil
}

func selectedCategories() ([]ais.Category, error) {
	if len(categories) == 0 {
		return ais.Categories(), nil
	}
	var cats []ais.Category
	for _, name := range categories {
		c, err := ais.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(cats, c) {
			cats = append(cats, c)
		}
	}
	return cats, nil
}

func openSource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (pipeline.Source, func(), error) {
	if cfg.Source != config.SourcePostgres {
		logger.Debug("reading data from csv files", zap.String("dir", dataPath))
		return loader.NewFileSource(dataPath, cfg.Files, logger), func() {}, nil
	}

	dsn := cfg.DatabaseURL
	if cfg.DatabaseName != "" {
		var err error
		dsn, err = db.WithDBName(dsn, cfg.DatabaseName)
		if err != nil {
			return nil, nil, fmt.Errorf("compose DSN: %w", err)
		}
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	logger.Debug("reading data from postgres", zap.String("dsn", db.Redact(dsn)), zap.String("batch", cfg.Batch))
	return db.NewSource(sqlDB, cfg.Batch), func() { sqlDB.Close() }, nil
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()  { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc() { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
