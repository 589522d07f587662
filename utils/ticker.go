package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/fiducial-nav/markerpose/logging"
)

// SlowLogger logs a warning after the first interval and then at every following interval until the returned
// function is called or ctx is done.
func SlowLogger(ctx context.Context, clk clock.Clock, interval time.Duration, msg, fieldName, fieldVal string, logger logging.Logger) func() {
	ticker := clk.Ticker(interval)
	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := clk.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				elapsed := clk.Since(startTime).Round(time.Millisecond).String()
				logger.Warnw(msg, fieldName, fieldVal, "time_elapsed", elapsed)
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		cancel()
		<-done
	}
}
