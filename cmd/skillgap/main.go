// Command skillgap ranks in-demand skills from job postings and lists the ones a
// candidate is missing.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dan-solli/skillgap/internal/config"
	"github.com/dan-solli/skillgap/pkg/metrics"
	"github.com/dan-solli/skillgap/pkg/skillgap"
	"github.com/dan-solli/skillgap/pkg/trace"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the flags shared by every subcommand.
type app struct {
	configPath  string
	logLevel    string
	metricsFile string
	topN        int
	jsonOutput  bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "skillgap",
		Short: "Rank in-demand skills and find skill gaps",
		Long: `Rank the skills job postings ask for, merging near-duplicate spellings
with embeddings, and compare a job description against your own skills.

Configuration is read from skillgap.yaml (or --config), then .env, then
environment variables such as OPENAI_API_KEY and SKILLGAP_EMBEDDING_PROVIDER.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to the YAML config (default ./skillgap.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file on exit")
	flags.IntVar(&a.topN, "top", 0, "Number of skills to return (default from config, 30)")
	flags.BoolVar(&a.jsonOutput, "json", false, "Print results as JSON")

	root.AddCommand(newTopCmd(a), newRankCmd(a), newGapsCmd(a))
	return root
}

// open builds a SkillGap from configuration and flags. The returned closer
// releases it and writes the metrics file when requested.
func (a *app) open(cmd *cobra.Command) (*skillgap.SkillGap, func() error, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	libCfg := cfg.SkillGap()
	if a.topN != 0 {
		libCfg.TopN = a.topN
	}

	g, err := skillgap.New(libCfg)
	if err != nil {
		return nil, nil, err
	}

	collector := metrics.NewCollector()
	g.WithLogger(logger).WithMetrics(collector)

	if cfg.TracePath != "" {
		exporter, err := trace.NewFileExporter(cfg.TracePath)
		if err != nil {
			g.Close()
			return nil, nil, err
		}
		g.WithTraceExporter(exporter)
	}

	closer := func() error {
		closeErr := g.Close()
		if a.metricsFile != "" {
			if err := prometheus.WriteToTextfile(a.metricsFile, collector.Registry()); err != nil && closeErr == nil {
				closeErr = fmt.Errorf("failed to write metrics: %w", err)
			}
		}
		return closeErr
	}

	return g, closer, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
