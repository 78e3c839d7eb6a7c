package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rawblock/coref-scorer/internal/batch"
	"github.com/rawblock/coref-scorer/internal/config"
	"github.com/rawblock/coref-scorer/internal/evaluation"
	"github.com/rawblock/coref-scorer/internal/input"
	"github.com/rawblock/coref-scorer/internal/logger"
	"github.com/rawblock/coref-scorer/pkg/models"
)

const stdio = "-"

var errBothStdin = errors.New("gold and sys cannot both be read from standard input")

type scoreOptions struct {
	configPath    string
	noSysMentions bool
	parallel      bool
	metrics       []string
	workers       int
	format        string
	logLevel      string
}

func newRootCmd() *cobra.Command {
	opts := &scoreOptions{}

	cmd := &cobra.Command{
		Use:   "scorch <gold> <sys> [<out-file>]",
		Short: "Compute CoNLL scores for coreference clusterings",
		Long: `Compute CoNLL scores for coreference clusterings as recommended by
Pradhan et al. (2014), Scoring Coreference Partitions of Predicted Mentions.

<gold> and <sys> are JSON documents, or directories of them, and may be "-"
for standard input. Each file of a sys directory is scored against the gold
file whose name starts with its stem. <out-file> defaults to standard output.`,
		Example: "  scorch gold.json sys.json out.txt\n  scorch gold/ sys/ out.txt",
		Args:    cobra.RangeArgs(2, 3),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetDefault(logger.New(cmd.ErrOrStderr(), opts.logLevel))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := stdio
			if len(args) == 3 {
				out = args[2]
			}
			return runScore(cmd, opts, args[0], args[1], out)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML file with scoring defaults")
	cmd.Flags().BoolVar(&opts.noSysMentions, "no-sys-mentions", false, "Do not add system-only mentions to the gold clusters")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "Compute the metrics concurrently")
	cmd.Flags().StringSliceVar(&opts.metrics, "metrics", nil, "Metrics to report, in order (default: all)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Documents scored concurrently in directory mode")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format (text, json)")

	cmd.AddCommand(newConllCmd())
	return cmd
}

// scoringConfig merges the config file with the flags the user actually set.
func scoringConfig(cmd *cobra.Command, opts *scoreOptions) (config.Scoring, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Scoring{}, err
	}
	s := cfg.Scoring

	flags := cmd.Flags()
	if flags.Changed("no-sys-mentions") {
		s.Reconcile = !opts.noSysMentions
	}
	if flags.Changed("parallel") {
		s.Parallel = opts.parallel
	}
	if flags.Changed("metrics") {
		s.Metrics = opts.metrics
	}
	if flags.Changed("workers") {
		s.Workers = opts.workers
	}
	return s, nil
}

func runScore(cmd *cobra.Command, opts *scoreOptions, gold, sys, out string) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q (want text or json)", opts.format)
	}

	scoring, err := scoringConfig(cmd, opts)
	if err != nil {
		return err
	}
	evaluator, err := evaluation.New(
		evaluation.WithReconcile(scoring.Reconcile),
		evaluation.WithParallel(scoring.Parallel),
		evaluation.WithMetrics(scoring.Metrics...),
	)
	if err != nil {
		return err
	}

	if gold != stdio && sys != stdio && isDir(gold) && isDir(sys) {
		scanner := batch.NewScanner(evaluator, nil, func(alert batch.DocumentScored) {
			if alert.Error != "" {
				logger.Warn("[Scorch] Document failed", "name", alert.Name, "err", alert.Error)
				return
			}
			logger.Info("[Scorch] Scored", "name", alert.Name, "progress", fmt.Sprintf("%d/%d", alert.Scanned, alert.Total))
		})
		scanner.SetWorkers(scoring.Workers)

		aggregate, err := scanner.Run(cmd.Context(), gold, sys)
		if err != nil {
			return err
		}
		if progress := scanner.GetProgress(); progress.Failed > 0 {
			return fmt.Errorf("%d of %d documents could not be scored", progress.Failed, progress.Total)
		}
		return withOutput(cmd, out, func(w io.Writer) error {
			if opts.format == "json" {
				return input.EncodeReport(w, aggregate)
			}
			return writeText(w, aggregate.Metrics, aggregate.CoNLL)
		})
	}

	if gold == stdio && sys == stdio {
		return errBothStdin
	}
	key, err := readClustering(cmd, gold)
	if err != nil {
		return fmt.Errorf("gold %s: %w", gold, err)
	}
	response, err := readClustering(cmd, sys)
	if err != nil {
		return fmt.Errorf("sys %s: %w", sys, err)
	}

	report, err := evaluator.Evaluate(cmd.Context(), sys, key, response)
	if err != nil {
		return err
	}
	return withOutput(cmd, out, func(w io.Writer) error {
		if opts.format == "json" {
			return input.EncodeReport(w, report)
		}
		return writeText(w, report.Metrics, report.CoNLL)
	})
}

func readClustering(cmd *cobra.Command, path string) (models.Clustering, error) {
	if path == stdio {
		return input.ReadClustering(cmd.InOrStdin())
	}
	return input.LoadFile(path)
}

// withOutput calls write with standard output or a created file.
func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == stdio {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
