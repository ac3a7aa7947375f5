package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/moodsense/internal/app"
	"github.com/ayusman/moodsense/internal/config"
	"github.com/ayusman/moodsense/internal/detector"
	"github.com/ayusman/moodsense/internal/emitter"
	"github.com/ayusman/moodsense/internal/hook"
	"github.com/ayusman/moodsense/internal/ingest"
	"github.com/ayusman/moodsense/internal/server"
	"github.com/ayusman/moodsense/internal/server/api"
	"github.com/ayusman/moodsense/internal/store"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var addr, source string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mood pipeline and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if source != "" {
				cfg.Source.Kind = source
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&source, "source", "", "frame source: mediapipe, zmq or replay (overrides source.kind)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	scorer, err := loadScorer(cfg.Scoring.RulesFile)
	if err != nil {
		return err
	}

	hub := server.NewMoodHub()
	sinks := []app.Sink{store.NewRecorder(st), hub}

	if cfg.MQTT.Enabled {
		em := emitter.NewMQTTEmitter(cfg.EmitterConfig())
		if err := em.Connect(ctx); err != nil {
			return err
		}
		defer em.Disconnect()
		sinks = append(sinks, em)
	}

	if cfg.Hooks.Enabled {
		manager := hook.NewManager(cfg.Hooks.Dir)
		if err := manager.Discover(); err != nil {
			log.WithError(err).Warn("Plugin discovery failed")
		}
		log.WithFields(log.Fields{
			"dir":     manager.PluginDir(),
			"plugins": len(manager.List()),
		}).Info("Hooks enabled")

		runner := hook.NewRunner(manager, hook.NewExecutor(cfg.Hooks.Timeout), st.Actions())
		defer runner.Close()
		sinks = append(sinks, runner)
	}

	det, err := openSource(cfg)
	if err != nil {
		return err
	}

	a := app.New(app.Config{
		Scorer:    scorer,
		Smoothing: cfg.SmootherConfig(),
		Detector:  det,
		Sinks:     sinks,
	})
	defer a.Close()
	a.SetEnabled(st.Settings().Bool(api.EnabledSetting, true))

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.Printf("Serving static files from: %s", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		App:       a,
		Hub:       hub,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pipeErr := make(chan error, 1)
	go func() {
		err := a.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Mood pipeline failed")
			cancel()
		}
		pipeErr <- err
	}()

	log.Printf("Starting server on %s", cfg.Server.Addr)
	srvErr := srv.ListenAndServe(ctx, cfg.Server.Addr)
	cancel()

	if err := <-pipeErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return srvErr
}

// openSource creates the frame source named by source.kind.
func openSource(cfg *config.Config) (detector.Detector, error) {
	switch cfg.Source.Kind {
	case config.SourceMediaPipe:
		return detector.NewMediaPipeDetector(cfg.DetectorConfig())
	case config.SourceZMQ:
		return ingest.NewZMQDetector(cfg.IngestConfig())
	case config.SourceReplay:
		if cfg.Source.File == "" {
			return nil, errors.New("source.file is required for the replay source")
		}
		f, err := os.Open(cfg.Source.File)
		if err != nil {
			return nil, err
		}
		return detector.NewReplayDetector(f), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source.Kind)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.moodsense/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DataDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
