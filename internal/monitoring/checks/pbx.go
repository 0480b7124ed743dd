package checks

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/charlesng35/veloigp/internal/monitoring"
)

// PBXObserver exposes the reporting client's configuration and breaker state.
type PBXObserver interface {
	Configured() bool
	BreakerState() gobreaker.State
}

// PBX reports degraded while the vendor breaker is open. An unconfigured client
// counts as up since the dashboard serves generated data instead.
func PBX(observer PBXObserver) monitoring.Check {
	return monitoring.NewCheck("pbx", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if observer == nil || !observer.Configured() {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "not configured, serving fallback data",
				Duration: time.Since(start),
			}
		}

		switch state := observer.BreakerState(); state {
		case gobreaker.StateOpen:
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "circuit breaker open",
				Duration: time.Since(start),
			}
		case gobreaker.StateHalfOpen:
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "circuit breaker half-open",
				Duration: time.Since(start),
			}
		default:
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
		}
	})
}
