// Command moodsense classifies facial expressions from a blendshape stream
// into a stable mood label.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/moodsense/internal/config"
	"github.com/ayusman/moodsense/internal/emotion"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile  string
		logLevel string
		cfg      = new(config.Config)
	)

	root := &cobra.Command{
		Use:           "moodsense",
		Short:         "Blendshape emotion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			if err := config.SetupLogging(loaded.Log); err != nil {
				return err
			}
			*cfg = *loaded
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./moodsense.yaml or ~/.moodsense/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newServeCmd(cfg),
		newClassifyCmd(cfg),
		newRulesCmd(cfg),
		newVersionCmd(),
	)
	return root
}

// loadScorer builds a scorer from a rules file, or the built-in rules when
// path is empty.
func loadScorer(path string) (*emotion.Scorer, error) {
	if path == "" {
		return emotion.DefaultScorer(), nil
	}
	rules, err := emotion.LoadRules(path)
	if err != nil {
		return nil, err
	}
	log.WithField("file", path).Info("Loaded scoring rules")
	return emotion.NewScorer(rules)
}

func newRulesCmd(cfg *config.Config) *cobra.Command {
	var defaults bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the active scoring rules as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.Scoring.RulesFile
			if defaults {
				path = ""
			}
			scorer, err := loadScorer(path)
			if err != nil {
				return err
			}
			data, err := emotion.MarshalRules(scorer.Rules())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&defaults, "defaults", false, "print the built-in rules even if a rules file is configured")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "moodsense %s\n", version)
		},
	}
}
