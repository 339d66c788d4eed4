package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	deps := &lazyApp{}
	var stats bool

	rootCmd := &cobra.Command{
		Use:           "stk",
		Short:         "Stampkit CLI (stk): stamp and send custody API requests",
		Long:          "stk manages local API key pairs and sessions, stamps request bodies with the active credential, and submits or resumes custody API activities.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			deps.opts.logOutput = cmd.ErrOrStderr()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			defer deps.close()
			if !stats || deps.app == nil {
				return nil
			}
			return writeStats(cmd.ErrOrStderr(), deps.app.registry)
		},
	}

	rootCmd.PersistentFlags().StringVar(&deps.opts.configPath, "config", "", "Config file (default ~/.stampkit/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&deps.opts.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&stats, "stats", false, "Print stamp and activity counters to stderr")

	rootCmd.AddCommand(
		newVersionCmd(),
		newKeysCmd(deps),
		newSessionCmd(deps),
		newStampCmd(deps),
		newActivityCmd(deps),
		newQueryCmd(deps),
		newWhoamiCmd(deps),
	)

	return rootCmd
}

func writeStats(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", label.GetName(), label.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", family.GetName(), strings.Join(labels, ","), metric.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}
