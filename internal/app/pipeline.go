package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/moodsense/internal/detector"
)

// Run is the main loop. It pulls frames from the detector and processes
// them one at a time until ctx is cancelled or the detector reports io.EOF.
//
// Pipeline logic:
// 1. Read the next frame (blocks until the source has one)
// 2. Drop it if processing is disabled
// 3. Start a new session if the stream changed
// 4. Skip duplicate timestamps
// 5. Extract features, score, smooth
// 6. Emit the result to every sink
//
// Malformed frames are logged and skipped; any other detector error stops the loop.
func (a *App) Run(ctx context.Context) error {
	d := a.Detector()
	if d == nil {
		return errors.New("run: no detector")
	}

	var processed, skipped, rejected int
	defer func() {
		log.WithFields(log.Fields{
			"processed": processed,
			"skipped":   skipped,
			"rejected":  rejected,
		}).Info("Mood pipeline stopped")
	}()

	log.Info("Mood pipeline started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := d.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, detector.ErrInvalidFeatureInput):
				rejected++
				log.WithError(err).Warn("Dropping malformed frame")
				continue
			default:
				return fmt.Errorf("read frame: %w", err)
			}
		}

		if !a.IsEnabled() {
			continue
		}

		_, ok, err := a.ProcessFrame(frame)
		switch {
		case err != nil:
			rejected++
			log.WithError(err).Warn("Frame rejected")
		case !ok:
			skipped++
		default:
			processed++
		}
	}
}
