package processor

import (
	"context"
	"errors"
	"strings"
	"time"

	"image-ingest/internal/apperror"
	"image-ingest/internal/domain"
	"image-ingest/internal/resource"

	"github.com/wb-go/wbf/zlog"
)

// Cascade attempts the selected strategies strictly one at a time, in
// ascending priority order. Sequential attempts are intentional: running
// two decoders on a large upload at once compounds memory pressure.
type Cascade struct {
	selector       *Selector
	monitor        resourceMonitor
	logger         *zlog.Zerolog
	attemptTimeout time.Duration
}

const pressurePause = 500 * time.Millisecond

func NewCascade(selector *Selector, monitor resourceMonitor, logger *zlog.Zerolog, attemptTimeout time.Duration) *Cascade {
	return &Cascade{
		selector:       selector,
		monitor:        monitor,
		logger:         logger,
		attemptTimeout: attemptTimeout,
	}
}

// Process runs the cascade over data. It fails only when every candidate
// has been exhausted, and that error is terminal: retrying the same bytes
// would walk the same path.
func (c *Cascade) Process(ctx context.Context, data []byte, filename string, format domain.ImageFormat) (*domain.ProcessingResult, error) {
	stats := c.monitor.Sample()
	if resource.Classify(stats) >= resource.PressureHigh {
		c.logger.Warn().
			Str("pressure", resource.Classify(stats).String()).
			Msg("High memory pressure before processing, running cleanup")
		c.monitor.Cleanup(ctx)
		if err := sleepCtx(ctx, pressurePause); err != nil {
			return nil, apperror.Timeout("processing cancelled", err)
		}
		stats = c.monitor.Sample()
		if resource.Classify(stats) >= resource.PressureCritical {
			return nil, apperror.Memory("memory pressure critical after cleanup, retry shortly", 10*time.Second)
		}
	}

	candidates := c.selector.Select(int64(len(data)), format, stats)

	var lastErr error
	for i, st := range candidates {
		// Pressure may have shifted since selection; skip candidates
		// that are no longer viable unless this is the only one left.
		current := c.monitor.Sample()
		if !eligible(st, int64(len(data)), format, current) && i < len(candidates)-1 {
			c.logger.Warn().
				Str("strategy", st.Name).
				Uint64("available_mb", current.SystemAvailableMB).
				Msg("Strategy no longer eligible, skipping")
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		result, err := st.Process(attemptCtx, data, filename)
		cancel()

		if err == nil {
			result.Strategy = st.Name
			c.logger.Info().
				Str("strategy", st.Name).
				Str("filename", filename).
				Int64("original_size", result.OriginalSize).
				Int64("processed_size", result.ProcessedSize).
				Dur("duration", result.Duration).
				Msg("Strategy succeeded")
			return result, nil
		}

		lastErr = err
		c.logger.Warn().
			Err(err).
			Str("strategy", st.Name).
			Str("filename", filename).
			Msg("Strategy failed, trying next candidate")

		if looksMemoryRelated(err) || resource.Classify(c.monitor.Sample()) >= resource.PressureHigh {
			c.monitor.Cleanup(ctx)
		}
	}

	message := "all processing strategies exhausted"
	if lastErr != nil {
		message += ": " + lastErr.Error()
	}
	return nil, apperror.Processing(
		message,
		lastErr,
		"re-save the image in an editor",
		"convert the image to JPEG or PNG",
		"reduce the image dimensions below 2048px",
	)
}

func looksMemoryRelated(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "memory") ||
		strings.Contains(msg, "alloc") ||
		strings.Contains(msg, "too large")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
