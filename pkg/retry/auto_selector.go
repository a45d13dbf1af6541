package retry

import (
	"time"
)

// autoDetectionAttempts is the number of recorded attempts required
// before AutoSelector starts trusting its pattern analysis.
const autoDetectionAttempts = 3

// connectionDropThreshold is the connection lifetime under which a
// successful connection is still counted as "connection-limited"
// rather than genuinely stable.
const connectionDropThreshold = 30 * time.Second

// highFailureThreshold is the failure rate above which a server is
// classified as suffering high packet loss.
const highFailureThreshold = 0.5

// stableSuccessThreshold is the success rate above which a server is
// classified as stable.
const stableSuccessThreshold = 0.8

// historySize bounds the number of attempts AutoSelector remembers.
const historySize = 10

// RacingStrategy tells a connection racer how to treat concurrent
// dial attempts, chosen from the pattern AutoSelector has detected for
// the current server.
type RacingStrategy int

const (
	// RacingNone disables racing; only one dial is attempted at a time.
	RacingNone RacingStrategy = iota

	// RacingFirstWins keeps whichever racing connection completes its
	// handshake first and aborts the rest.
	RacingFirstWins

	// RacingLastWins keeps whichever racing connection is still alive
	// when the racing window closes, favoring transports that survive
	// past an initial connection-limited cutoff.
	RacingLastWins
)

// NetworkPattern is AutoSelector's classification of recent connection
// behavior against a server.
type NetworkPattern int

const (
	// PatternUnknown means too little history has been gathered yet.
	PatternUnknown NetworkPattern = iota

	// PatternConnectionLimited means connections repeatedly succeed but
	// get dropped well before any natural session end, suggesting a
	// server or middlebox enforcing a connection lifetime.
	PatternConnectionLimited

	// PatternHighPacketLoss means more than half of recent attempts
	// failed outright.
	PatternHighPacketLoss

	// PatternStable means recent attempts mostly succeeded and lasted.
	PatternStable
)

// fallbackStrategies is the rotation AutoSelector cycles through when
// connections are failing outright and no clearer pattern has emerged.
var fallbackStrategies = []Strategy{
	StrategyExponentialJitter,
	StrategyLinear,
	StrategyExponential,
	StrategyImmediate,
}

// AttemptResult records the outcome of one connection attempt, fed to
// AutoSelector after every dial.
type AttemptResult struct {
	Success            bool
	ConnectionDuration time.Duration
	HasDuration        bool
	Timestamp          time.Time
	RetryCount         uint32
}

// AutoSelector watches a bounded window of recent connection attempts
// against one server and picks the retry strategy and connection
// racing strategy that best fit the pattern it observes. It backs
// StrategyAuto.
type AutoSelector struct {
	history       []AttemptResult
	pattern       NetworkPattern
	strategy      Strategy
	fallbackIndex int
}

// NewAutoSelector returns an AutoSelector in its initial, unknown-pattern
// state.
func NewAutoSelector() *AutoSelector {
	return &AutoSelector{
		strategy: fallbackStrategies[0],
	}
}

// RecordAttempt appends result to the history window, evicting the
// oldest entry past historySize, then re-runs pattern analysis.
func (a *AutoSelector) RecordAttempt(result AttemptResult) {
	a.history = append(a.history, result)
	if len(a.history) > historySize {
		a.history = a.history[len(a.history)-historySize:]
	}

	if len(a.history) >= autoDetectionAttempts {
		a.analyzePattern()
	}
}

// recentWindow returns up to n of the most recent recorded attempts.
func (a *AutoSelector) recentWindow(n int) []AttemptResult {
	if len(a.history) < n {
		return a.history
	}
	return a.history[len(a.history)-n:]
}

func (a *AutoSelector) analyzePattern() {
	recent := a.recentWindow(3)

	var successes, failures int
	var shortSuccesses int

	for _, r := range recent {
		if r.Success {
			successes++
			if r.HasDuration && r.ConnectionDuration < connectionDropThreshold {
				shortSuccesses++
			}
		} else {
			failures++
		}
	}

	total := len(recent)
	failureRate := float64(failures) / float64(total)
	successRate := float64(successes) / float64(total)
	shortSuccessFraction := float64(shortSuccesses) / float64(total)

	switch {
	case successes >= 2 && shortSuccessFraction > 0.6:
		a.pattern = PatternConnectionLimited
		a.strategy = StrategyLinear

	case failureRate > highFailureThreshold:
		a.pattern = PatternHighPacketLoss
		a.strategy = StrategyImmediate

	case successRate > stableSuccessThreshold:
		a.pattern = PatternStable
		// strategy is left unchanged: a working strategy is not touched.

	default:
		anyWorking := successes > 0
		if !anyWorking {
			a.tryNextFallback()
		}
	}
}

// tryNextFallback advances the fallback rotation and resets the
// detected pattern, since the new strategy hasn't been observed yet.
func (a *AutoSelector) tryNextFallback() {
	a.fallbackIndex = (a.fallbackIndex + 1) % len(fallbackStrategies)
	a.strategy = fallbackStrategies[a.fallbackIndex]
	a.pattern = PatternUnknown
}

// Strategy returns the retry strategy AutoSelector currently
// recommends.
func (a *AutoSelector) Strategy() Strategy {
	return a.strategy
}

// Pattern returns the network pattern AutoSelector currently believes
// describes this server.
func (a *AutoSelector) Pattern() NetworkPattern {
	return a.pattern
}

// RacingStrategy maps the detected pattern to how a connection racer
// should treat concurrent dial attempts.
func (a *AutoSelector) RacingStrategy() RacingStrategy {
	switch a.pattern {
	case PatternConnectionLimited:
		return RacingLastWins
	case PatternHighPacketLoss:
		return RacingFirstWins
	default:
		return RacingNone
	}
}

// Reset restores AutoSelector to its initial state, as when switching
// to a different server URL.
func (a *AutoSelector) Reset() {
	a.history = nil
	a.pattern = PatternUnknown
	a.strategy = fallbackStrategies[0]
	a.fallbackIndex = 0
}
