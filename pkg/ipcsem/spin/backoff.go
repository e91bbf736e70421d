package spin

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// Strategy - what a waiter does between two polls of an empty semaphore.
type Strategy uint8

const (
	// StrategySpin re-polls immediately.
	StrategySpin Strategy = iota
	// StrategyYield polls YieldAfter times, then yields to the Go scheduler between polls.
	StrategyYield
	// StrategyExponential pauses for a doubling number of relax iterations up to MaxPause, then yields.
	StrategyExponential
)

const (
	defaultYieldAfter = 128
	defaultMaxPause   = 64
)

// String - returns strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategySpin:
		return "spin"
	case StrategyYield:
		return "yield"
	case StrategyExponential:
		return "exponential"
	}

	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// ParseStrategy - parses strategy name, empty string selects yield.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "spin":
		return StrategySpin, nil
	case "yield", "":
		return StrategyYield, nil
	case "exponential":
		return StrategyExponential, nil
	}

	return 0, fmt.Errorf("unknown spin strategy %q", s)
}

// Backoff - tuning of the wait loop. The calling thread keeps running in every
// strategy; a yield only hands the goroutine back to the Go scheduler.
type Backoff struct {
	Strategy   Strategy
	YieldAfter int
	MaxPause   int
}

// DefaultBackoff - spin briefly, then yield between polls.
func DefaultBackoff() Backoff {
	return Backoff{
		Strategy:   StrategyYield,
		YieldAfter: defaultYieldAfter,
		MaxPause:   defaultMaxPause,
	}
}

// waiter is the per-call backoff state, kept on the caller's stack.
type waiter struct {
	cfg     Backoff
	attempt int
	pause   int
}

func (b Backoff) waiter() waiter {
	return waiter{cfg: b, pause: 1}
}

func (w *waiter) wait() {
	w.attempt++

	switch w.cfg.Strategy {
	case StrategySpin:
	case StrategyYield:
		if w.attempt > w.cfg.YieldAfter {
			runtime.Gosched()
		}
	case StrategyExponential:
		if w.pause > w.cfg.MaxPause {
			runtime.Gosched()
			return
		}
		relax(w.pause)
		w.pause <<= 1
	}
}

// relaxSink keeps the relax loop from being optimized away.
var relaxSink atomic.Uint32

func relax(n int) {
	for i := 0; i < n; i++ {
		relaxSink.Load()
	}
}
