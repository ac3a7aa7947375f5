package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ayusman/moodsense/internal/app"
	"github.com/ayusman/moodsense/internal/config"
	"github.com/ayusman/moodsense/internal/detector"
)

func newClassifyCmd(cfg *config.Config) *cobra.Command {
	var (
		asJSON    bool
		rulesFile string
	)

	cmd := &cobra.Command{
		Use:   "classify [file]",
		Short: "Replay recorded frames and print raw and smoothed moods",
		Long: `Replay a recording of newline-delimited JSON frames through a fresh
session and print one line per frame. Reads stdin when no file is given
or the file is "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				in = f
			}

			if rulesFile == "" {
				rulesFile = cfg.Scoring.RulesFile
			}
			scorer, err := loadScorer(rulesFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return classify(ctx, cmd.OutOrStdout(), in, app.Config{
				Scorer:    scorer,
				Smoothing: cfg.SmootherConfig(),
			}, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print each result as a JSON line")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "rules file (overrides scoring.rules_file)")
	return cmd
}

// classify runs every frame in the recording through a new session and
// writes one line per result followed by a summary.
func classify(ctx context.Context, out io.Writer, in io.Reader, appCfg app.Config, asJSON bool) error {
	var frames, changes int
	enc := json.NewEncoder(out)

	appCfg.Detector = detector.NewReplayDetector(in)
	appCfg.Sinks = []app.Sink{app.SinkFunc(func(r app.Result) error {
		frames++
		if r.Changed {
			changes++
		}
		if asJSON {
			return enc.Encode(r)
		}

		marker := ""
		switch {
		case !r.FaceDetected:
			marker = "  (no face)"
		case r.Changed:
			marker = "  *"
		}
		_, err := fmt.Fprintf(out, "%8d  raw=%-9s smoothed=%-9s%s\n", r.TimestampMs, r.Raw, r.Smoothed, marker)
		return err
	})}

	a := app.New(appCfg)
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		return err
	}
	if !asJSON {
		fmt.Fprintf(out, "%d frames, %d changes\n", frames, changes)
	}
	return nil
}
