package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"go.uber.org/zap"
)

type slowReporter struct {
	threshold time.Duration
	paths     []string
	logger    *zap.Logger
}

func newSlowReporter(c configurationtypes.SlowRequests, logger *zap.Logger) *slowReporter {
	return &slowReporter{
		threshold: c.Threshold.Duration,
		paths:     c.Paths,
		logger:    logger,
	}
}

// report warns about the watched requests that took longer than the threshold
func (s *slowReporter) report(target *url.URL, elapsed time.Duration) {
	if s.threshold <= 0 || elapsed <= s.threshold {
		return
	}

	for _, p := range s.paths {
		if strings.Contains(target.Path, p) {
			s.logger.Warn(
				"Slow request detected",
				zap.String("url", target.String()),
				zap.Int64("elapsed_ms", elapsed.Milliseconds()),
			)
			return
		}
	}
}
