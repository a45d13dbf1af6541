package rtspclientsrc

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediabridge/rtspclientsrc/pkg/liberrors"
	"github.com/mediabridge/rtspclientsrc/pkg/racer"
	"github.com/mediabridge/rtspclientsrc/pkg/retry"
)

// dialer bundles strategy selection (auto/adaptive) with the
// deterministic retry calculators and the connection racer behind one
// entry point: connect blocks until a connection succeeds or the
// retry budget named by settings is exhausted.
type dialer struct {
	settings Settings
	log      zerolog.Logger
	racer    *racer.Racer
	auto     *retry.AutoSelector
	adaptive *retry.AdaptiveLearner
}

// newDialer constructs a dialer for one server. urlStr identifies the
// server for the adaptive learner's persisted-metrics cache key.
func newDialer(settings Settings, log zerolog.Logger, urlStr string) *dialer {
	d := &dialer{
		settings: settings,
		log:      log,
		racer:    racer.New(racer.NewTCPDialer(), log),
	}
	switch {
	case settings.Retry.Strategy == retry.StrategyAdaptive && settings.Adaptive.Enabled:
		d.adaptive = retry.NewAdaptiveLearner(urlStr, settings.Adaptive, log)
	case settings.Retry.Strategy == retry.StrategyAuto:
		d.auto = retry.NewAutoSelector()
	}
	return d
}

// connect resolves the effective retry strategy for this attempt cycle,
// then races TCP dials to addr, retrying per the resulting calculator
// until one dial succeeds or the budget is spent.
func (d *dialer) connect(ctx context.Context, addr, urlStr string) (net.Conn, error) {
	// settings.Timeout bounds the whole attempt cycle, retries included
	if d.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.settings.Timeout)
		defer cancel()
	}

	cfg := d.settings.Retry
	strategy := cfg.Strategy

	switch {
	case d.adaptive != nil:
		strategy = d.adaptive.SelectStrategy()
	case d.auto != nil:
		strategy = d.auto.Strategy()
	}
	cfg.Strategy = strategy
	calc := retry.NewCalculator(cfg)

	raceCfg := d.settings.Racing
	if d.auto != nil {
		raceCfg.Strategy = racer.FromRacingStrategy(d.auto.RacingStrategy())
	}

	var lastErr error
	for {
		start := time.Now()
		c, err := d.racer.Race(ctx, "tcp", addr, raceCfg)
		elapsed := time.Since(start)

		if d.auto != nil {
			d.auto.RecordAttempt(retry.AttemptResult{
				Success:            err == nil,
				ConnectionDuration: elapsed,
				HasDuration:        err == nil,
				Timestamp:          start,
				RetryCount:         calc.CurrentAttempt(),
			})
		}
		if d.adaptive != nil {
			d.adaptive.RecordAttempt(strategy, err == nil, elapsed)
		}

		if err == nil {
			return c, nil
		}
		lastErr = err

		if !calc.ShouldRetry() {
			return nil, d.fatal(urlStr, calc, lastErr)
		}

		delay, ok := calc.NextDelay()
		if !ok {
			return nil, d.fatal(urlStr, calc, lastErr)
		}

		d.log.Warn().Err(err).Dur("delay", delay).Uint32("attempt", calc.CurrentAttempt()).
			Msg("connect attempt failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (d *dialer) fatal(urlStr string, calc *retry.Calculator, cause error) error {
	return &liberrors.FatalError{
		Kind:       liberrors.KindNetworkRetryableWithBackoff,
		URL:        urlStr,
		Operation:  "connect",
		RetryCount: int(calc.CurrentAttempt()),
		Transport:  "tcp",
		Err:        cause,
	}
}
