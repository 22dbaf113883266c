package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mdm-linkage/internal/checkpoint"
	"github.com/mdm-linkage/internal/config"
	"github.com/mdm-linkage/internal/logging"
	"github.com/mdm-linkage/internal/metrics"
	"github.com/mdm-linkage/internal/pipeline"
	"github.com/mdm-linkage/internal/web"
)

var (
	configFile string
	v          = config.New()
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:           "mdm",
		Short:         "Provider record linkage",
		Long:          `Batch entity resolution over provider records: name normalization, blocked name and address comparison, score fusion and cluster filtering`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file (.properties or .yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "log every matched pair")
	rootCmd.PersistentFlags().String("metrics-listen", "", "serve /metrics, /healthz and /api/status on this address")
	_ = v.BindPFlag(config.KeyDebug, rootCmd.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag(config.KeyMetricsListen, rootCmd.PersistentFlags().Lookup("metrics-listen"))

	// Add subcommands
	rootCmd.AddCommand(createNERCmd())
	rootCmd.AddCommand(createNamesCmd())
	rootCmd.AddCommand(createAddressesCmd())
	rootCmd.AddCommand(createFullCmd())
	rootCmd.AddCommand(createRunCmd())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createNERCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ner",
		Short: "Normalize record names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), false, func(ctx context.Context, p *pipeline.Pipeline) error {
				return p.Normalize(ctx)
			})
		},
	}
}

func createNamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "names",
		Short: "Compare record names and checkpoint the candidate matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), true, func(ctx context.Context, p *pipeline.Pipeline) error {
				return p.CompareNames(ctx)
			})
		},
	}
}

func createAddressesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "addresses",
		Short: "Compare record addresses and checkpoint the candidate matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), true, func(ctx context.Context, p *pipeline.Pipeline) error {
				return p.CompareAddresses(ctx)
			})
		},
	}
}

func createFullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "full",
		Short: "Fuse checkpointed candidates and write the filtered matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), true, func(ctx context.Context, p *pipeline.Pipeline) error {
				results, err := p.Full(ctx)
				if err == nil {
					fmt.Printf("%d matches written\n", len(results))
				}
				return err
			})
		},
	}
}

func createRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every stage in memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), false, func(ctx context.Context, p *pipeline.Pipeline) error {
				results, err := p.Run(ctx)
				if err == nil {
					fmt.Printf("%d matches written\n", len(results))
				}
				return err
			})
		},
	}
}

// execute loads the configuration, installs the logger, starts the optional
// metrics listener and runs stage. needStore opens the checkpoint store.
func execute(parent context.Context, needStore bool, stage func(context.Context, *pipeline.Pipeline) error) (err error) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Outputs: cfg.Log.Outputs}
	if cfg.Debug {
		logCfg.Level = "debug"
	}
	logger, flush, err := logging.Install(logCfg)
	if err != nil {
		return err
	}
	defer flush()

	m := metrics.New(metrics.DefaultNamespace)
	defer func() {
		m.Finish(err)
		if cfg.Metrics.Textfile != "" {
			if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
				logger.Warn("failed to write metrics textfile", zap.Error(werr))
			}
		}
	}()

	if cfg.Metrics.Listen != "" {
		serveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		srv := web.NewServer(web.Config{Listen: cfg.Metrics.Listen, ShutdownTimeout: cfg.Metrics.ShutdownTimeout}, m, logger)
		if _, _, err := srv.Start(serveCtx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	var store checkpoint.Store
	if needStore {
		var closeStore func() error
		store, closeStore, err = checkpoint.Open(ctx, cfg.Checkpoint)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := closeStore(); cerr != nil {
				logger.Warn("failed to close checkpoint store", zap.Error(cerr))
			}
		}()
	}

	p := pipeline.New(cfg, store, pipeline.WithLogger(logger), pipeline.WithMetrics(m))
	return stage(ctx, p)
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	if err := config.ReadFile(v, configFile); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}
