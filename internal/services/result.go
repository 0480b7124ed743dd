package services

// Source tells callers whether data came from the real backend or was generated locally.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// FallbackReason explains why generated data was served.
type FallbackReason string

const (
	// ReasonSimulated marks entities that have no live backend at all.
	ReasonSimulated     FallbackReason = "simulated"
	ReasonConfiguration FallbackReason = "configuration"
	ReasonNetwork       FallbackReason = "network"
	ReasonTimeout       FallbackReason = "timeout"
)

// Result wraps dashboard data with its provenance.
type Result[T any] struct {
	Data   T              `json:"data"`
	Source Source         `json:"source"`
	Reason FallbackReason `json:"reason,omitempty"`
}

// Live wraps data fetched from the real backend.
func Live[T any](data T) Result[T] {
	return Result[T]{Data: data, Source: SourceLive}
}

// Fallback wraps generated data and the reason it replaced live data.
func Fallback[T any](data T, reason FallbackReason) Result[T] {
	return Result[T]{Data: data, Source: SourceFallback, Reason: reason}
}

// IsFallback reports whether the data was generated locally.
func (r Result[T]) IsFallback() bool {
	return r.Source == SourceFallback
}
