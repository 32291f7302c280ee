package memutils

import (
	"sync/atomic"

	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"
)

type assertionLogger struct {
	logger  *slog.Logger
	limiter *rate.Limiter
}

var assertions atomic.Pointer[assertionLogger]

// SetAssertionLogger sets the logger that receives failed assertions in builds without the
// debug_mem_utils tag. At most perSecond failures are logged each second, with bursts of up to burst
// entries. Failures beyond that are counted and dropped. Passing a nil logger discards failures.
func SetAssertionLogger(logger *slog.Logger, perSecond float64, burst int) {
	if logger == nil {
		assertions.Store(nil)
		return
	}

	assertions.Store(&assertionLogger{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	})
}

var failedAssertions atomic.Uint64

// FailedAssertions returns the number of assertion failures observed since startup
func FailedAssertions() uint64 {
	return failedAssertions.Load()
}

func logAssertion(message string) {
	count := failedAssertions.Add(1)

	target := assertions.Load()
	if target == nil || !target.limiter.Allow() {
		return
	}

	target.logger.Error("assertion failed", slog.String("message", message), slog.Uint64("failures", count))
}
