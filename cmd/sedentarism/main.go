package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sedentarism/adapters/postgres"
	"sedentarism/adapters/report"
	"sedentarism/adapters/tabular"
	"sedentarism/app"
	"sedentarism/domain/core"
	"sedentarism/domain/fuzzy"
	"sedentarism/domain/run"
	"sedentarism/internal"
	"sedentarism/internal/config"
	"sedentarism/internal/errors"
	"sedentarism/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:   "sedentarism",
		Short: "Fuzzy sedentarism scoring, validation and traffic-light forecasting",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newMarkovCmd(),
		newRulesCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment, applies flag overrides and validates
// the result again.
func loadConfig(override func(*config.Config)) (*config.Config, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, errors.Wrap(err, "configuration validation failed")
		}
	}
	return cfg, internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)), nil
}

func runConfig(cfg *config.Config) (app.RunConfig, error) {
	fold, err := cfg.FoldConfig()
	if err != nil {
		return app.RunConfig{}, err
	}
	mc, err := cfg.MarkovConfig()
	if err != nil {
		return app.RunConfig{}, err
	}
	return app.RunConfig{
		Fold:            fold,
		Workers:         cfg.Validation.Workers,
		Sensitivity:     cfg.Sensitivity,
		Markov:          mc,
		DiscordanceTopN: cfg.Report.DiscordanceTopN,
	}, nil
}

// openArchive connects the run archive when DATABASE_URL is set. The
// returned close func is always safe to call.
func openArchive(ctx context.Context, cfg *config.Config, logger *internal.Logger) (ports.RunArchive, func(), error) {
	if !cfg.Database.Enabled() {
		logger.Info("DATABASE_URL not set, runs will not be archived")
		return nil, func() {}, nil
	}
	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, func() {}, err
	}
	return postgres.NewRunArchive(db), func() { closeDB(db, logger) }, nil
}

func closeDB(db *sqlx.DB, logger *internal.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	var featuresFile, labelsFile, outputDir, rulesFile string
	var workers, horizon int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score every week, calibrate, validate and forecast",
		Long: `Fit the fuzzy classifier on the weekly feature file, calibrate the
threshold against the labels, run leave-one-group-out validation and the
sensitivity analysis, then fit the traffic-light model and forecast.

Example: sedentarism run --features weekly_features.csv --labels weekly_labels.csv --output ./output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(func(c *config.Config) {
				if cmd.Flags().Changed("features") {
					c.Paths.FeaturesFile = featuresFile
				}
				if cmd.Flags().Changed("labels") {
					c.Paths.LabelsFile = labelsFile
				}
				if cmd.Flags().Changed("output") {
					c.Paths.OutputDir = outputDir
				}
				if cmd.Flags().Changed("rules") {
					c.Paths.RulesFile = rulesFile
				}
				if cmd.Flags().Changed("workers") {
					c.Validation.Workers = workers
				}
				if cmd.Flags().Changed("horizon") {
					c.Markov.Horizon = horizon
				}
			})
			if err != nil {
				return err
			}
			if cfg.Paths.FeaturesFile == "" {
				return errors.ConfigInvalid("a features file is required (--features or FEATURES_FILE)")
			}

			rc, err := runConfig(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			archive, closeArchive, err := openArchive(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeArchive()

			svc, err := app.NewRunService(rc, archive, logger)
			if err != nil {
				return err
			}
			feed := tabular.NewFileFeed(cfg.Paths.FeaturesFile, cfg.Paths.LabelsFile, logger.With("feed"))
			result, err := svc.RunFromFeeds(ctx, feed)
			if err != nil {
				return err
			}

			writer, err := tabular.NewWriter(cfg.Paths.OutputDir, logger.With("writer"))
			if err != nil {
				return err
			}
			paths, err := writer.WriteRunReport(result)
			if err != nil {
				return err
			}
			summaries, err := report.Write(writer.Dir(), result)
			if err != nil {
				return err
			}
			paths = append(paths, summaries...)

			fmt.Printf("Run %s: threshold %.3f, F1 %.3f (%s), %d weeks scored\n",
				result.Manifest.RunID, result.Threshold(), result.Global.F1, result.Grade, result.Join.Features)
			if len(result.Flags) > 0 {
				fmt.Printf("Flags: %v\n", result.Flags.Sorted().Strings())
			}
			for _, p := range paths {
				fmt.Printf("  wrote %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&featuresFile, "features", "", "Weekly feature file (.csv or .xlsx)")
	cmd.Flags().StringVar(&labelsFile, "labels", "", "Weekly label file (.csv or .xlsx)")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "Rule base YAML file (defaults to the built-in rules)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Cross-validation workers (0 = one per CPU)")
	cmd.Flags().IntVar(&horizon, "horizon", 1, "Forecast horizon in weeks")

	return cmd
}

func newMarkovCmd() *cobra.Command {
	var outputDir string
	var horizon int

	cmd := &cobra.Command{
		Use:   "markov [scores-file]",
		Short: "Fit the traffic-light model on an existing score file",
		Long: `Discretize a weekly score stream into green/yellow/red, fit the
transition matrices, backtest one step ahead and forecast each group.

Example: sedentarism markov weekly_scores.csv --horizon 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(func(c *config.Config) {
				if cmd.Flags().Changed("output") {
					c.Paths.OutputDir = outputDir
				}
				if cmd.Flags().Changed("horizon") {
					c.Markov.Horizon = horizon
				}
			})
			if err != nil {
				return err
			}
			rc, err := runConfig(cfg)
			if err != nil {
				return err
			}

			weeks, err := tabular.ReadScores(args[0], logger.With("feed"))
			if err != nil {
				return err
			}
			svc, err := app.NewRunService(rc, nil, logger)
			if err != nil {
				return err
			}
			result, err := svc.Forecast(weeks)
			if err != nil {
				return err
			}

			writer, err := tabular.NewWriter(cfg.Paths.OutputDir, logger.With("writer"))
			if err != nil {
				return err
			}
			paths, err := writer.WriteMarkovReport(result)
			if err != nil {
				return err
			}

			bt := result.Backtest
			fmt.Printf("Backtest: %d/%d correct (accuracy %.3f), %d groups forecast\n",
				bt.Hits, bt.Pairs, bt.Accuracy, len(result.Forecasts))
			for _, p := range paths {
				fmt.Printf("  wrote %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory")
	cmd.Flags().IntVar(&horizon, "horizon", 1, "Forecast horizon in weeks")

	return cmd
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Export or check fuzzy rule bases",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print the built-in rule base as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.MarshalRules(fuzzy.DefaultRuleBase())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [rules-file]",
		Short: "Parse and validate a rule base file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rb, err := config.LoadRuleFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules OK\n", args[0], rb.Len())
			return nil
		},
	}

	cmd.AddCommand(exportCmd, validateCmd)
	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int
	var fingerprint string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived runs",
		Long: `List runs stored in the run archive, newest first. Requires DATABASE_URL.

Example: sedentarism runs --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(nil)
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.ConfigInvalid("DATABASE_URL is required to list runs")
			}

			ctx, stop := signalContext()
			defer stop()

			archive, closeArchive, err := openArchive(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeArchive()

			var manifests []run.Manifest
			if fingerprint != "" {
				manifests, err = archive.FindByFingerprint(ctx, core.Hash(fingerprint))
			} else {
				manifests, err = archive.ListRuns(ctx, limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range manifests {
				fmt.Fprintf(out, "%s  %s  %s  features=%d joined=%d groups=%d\n",
					m.RunID, m.CreatedAt.Format("2006-01-02 15:04:05"), m.Fingerprint.Fingerprint.Short(),
					m.Features, m.Joined, m.Groups)
			}
			if len(manifests) == 0 {
				fmt.Fprintln(out, "no runs archived")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Only runs with this fingerprint")

	cmd.AddCommand(newRunsShowCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one archived run with its folds and forecasts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := core.ParseRunID(args[0])
			if err != nil {
				return errors.InvalidInput(err.Error())
			}
			cfg, logger, err := loadConfig(nil)
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.ConfigInvalid("DATABASE_URL is required to show a run")
			}

			ctx, stop := signalContext()
			defer stop()

			archive, closeArchive, err := openArchive(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeArchive()

			rec, err := archive.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			writeRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func writeRecord(out io.Writer, rec *run.Record) {
	m := rec.Manifest
	fmt.Fprintf(out, "Run %s (%s)\n", m.RunID, m.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Fingerprint %s, code %s\n", m.Fingerprint.Fingerprint, m.Fingerprint.CodeVersion)
	fmt.Fprintf(out, "Weeks: %d features, %d labels, %d joined, %d groups\n", m.Features, m.Labels, m.Joined, m.Groups)
	g := rec.Global
	fmt.Fprintf(out, "Threshold %.3f: F1 %.3f, accuracy %.3f, MCC %.3f (%s), sensitivity %s\n",
		rec.Threshold, g.F1, g.Accuracy, g.MCC, rec.Grade, rec.Verdict)
	fmt.Fprintf(out, "Backtest accuracy %.3f\n", rec.BacktestAccuracy)
	if len(rec.Flags) > 0 {
		fmt.Fprintf(out, "Flags: %s\n", strings.Join(rec.Flags, ", "))
	}
	for _, f := range rec.Folds {
		fmt.Fprintf(out, "  fold %s: train %d, held out %d, threshold %.3f, F1 %.3f\n",
			f.Group, f.TrainSize, f.HeldOutSize, f.Threshold, f.Metrics.F1)
	}
	for _, f := range rec.Forecasts {
		fmt.Fprintf(out, "  forecast %s: %s on %s -> %s on %s (%.2f/%.2f/%.2f)\n",
			f.Group, f.Current, f.LastWeek.Format("2006-01-02"), f.Predicted, f.TargetWeek.Format("2006-01-02"),
			f.PGreen, f.PYellow, f.PRed)
	}
}
