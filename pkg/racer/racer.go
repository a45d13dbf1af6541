// Package racer dials a host:port over several concurrent TCP
// connections and picks a winner according to a racing strategy,
// recovering from servers that accept a TCP handshake and then go
// silent.
package racer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mediabridge/rtspclientsrc/pkg/retry"
)

// Dialer opens one network connection to addr. The default dialer is
// a plain TCP dial; WebSocketDialer wraps an HTTP-tunneled variant
// behind the same interface.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// netDialer adapts *net.Dialer to Dialer.
type netDialer struct {
	d net.Dialer
}

func (n *netDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return n.d.DialContext(ctx, network, addr)
}

// NewTCPDialer returns the default Dialer: a plain TCP dial with
// TCP_NODELAY applied to the winning connection by the racer, not the
// dialer itself.
func NewTCPDialer() Dialer {
	return &netDialer{}
}

// Strategy selects how a Racer treats concurrent dial attempts. It is
// a superset of retry.RacingStrategy: AutoSelector only ever derives
// None, FirstWins or LastWins from observed connection patterns, but a
// user can additionally opt into Hybrid directly.
type Strategy int

const (
	// StrategyNone disables racing; a single dial is attempted.
	StrategyNone Strategy = iota

	// StrategyFirstWins keeps whichever connection completes its
	// handshake first and aborts the rest.
	StrategyFirstWins

	// StrategyLastWins keeps every attempt open until the race settles
	// and picks the most recently successful one.
	StrategyLastWins

	// StrategyHybrid behaves like FirstWins, except a second success
	// arriving within InterStartDelay of the first replaces it — useful
	// when the fastest handshake is sometimes a stale connection a
	// server is about to reset.
	StrategyHybrid
)

// FromRacingStrategy converts the retry subsystem's racing
// recommendation (derived from AutoSelector's detected pattern) into a
// racer Strategy.
func FromRacingStrategy(s retry.RacingStrategy) Strategy {
	switch s {
	case retry.RacingFirstWins:
		return StrategyFirstWins
	case retry.RacingLastWins:
		return StrategyLastWins
	default:
		return StrategyNone
	}
}

// Config configures one race.
type Config struct {
	Strategy Strategy

	// MaxParallel bounds how many simultaneous dial attempts are
	// in flight at once.
	MaxParallel int

	// InterStartDelay is how far apart successive dial attempts are
	// started, and also Hybrid's grace window for a later success to
	// replace an earlier one.
	InterStartDelay time.Duration

	// RaceTimeout bounds the entire race, regardless of strategy.
	RaceTimeout time.Duration
}

// DefaultConfig returns the racing configuration an rtspsrc element
// starts with: racing disabled, a single dial.
func DefaultConfig() Config {
	return Config{
		Strategy:        StrategyNone,
		MaxParallel:     1,
		InterStartDelay: 200 * time.Millisecond,
		RaceTimeout:     10 * time.Second,
	}
}

type attemptOutcome struct {
	id      string
	conn    net.Conn
	err     error
	started time.Time
	done    time.Time
}

// Racer races dial attempts against one address.
type Racer struct {
	dialer Dialer
	log    zerolog.Logger

	// startLimiter paces dial starts at InterStartDelay regardless of
	// strategy, replacing a hand-rolled ticker.
	startLimiter *rate.Limiter
}

// New builds a Racer using dialer to open each attempt.
func New(dialer Dialer, log zerolog.Logger) *Racer {
	return &Racer{dialer: dialer, log: log}
}

// Race opens up to cfg.MaxParallel connections to addr, staggered by
// cfg.InterStartDelay, and returns the winner chosen according to
// cfg.Strategy. All losing connections are closed before Race returns.
func (r *Racer) Race(ctx context.Context, network, addr string, cfg Config) (net.Conn, error) {
	if cfg.Strategy == StrategyNone || cfg.MaxParallel <= 1 {
		return r.dialer.DialContext(ctx, network, addr)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RaceTimeout)
	defer cancel()

	r.startLimiter = rate.NewLimiter(rate.Every(cfg.InterStartDelay), 1)
	r.startLimiter.Allow() // consume the initial burst token so dial 2 actually waits a full InterStartDelay

	outcomes := make(chan attemptOutcome, cfg.MaxParallel)
	var wg sync.WaitGroup

	for i := 0; i < cfg.MaxParallel; i++ {
		if i > 0 {
			if err := r.startLimiter.Wait(ctx); err != nil {
				break
			}
		}

		wg.Add(1)
		attemptID := uuid.New().String()
		go func(id string) {
			defer wg.Done()
			started := time.Now()
			conn, err := r.dialer.DialContext(ctx, network, addr)
			select {
			case outcomes <- attemptOutcome{id: id, conn: conn, err: err, started: started, done: time.Now()}:
			case <-ctx.Done():
				if conn != nil {
					_ = conn.Close()
				}
			}
		}(attemptID)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	switch cfg.Strategy {
	case StrategyFirstWins:
		return r.raceFirstWins(ctx, outcomes)
	case StrategyLastWins:
		return r.raceLastWins(ctx, outcomes)
	case StrategyHybrid:
		return r.raceHybrid(ctx, outcomes, cfg.InterStartDelay)
	default:
		return r.raceFirstWins(ctx, outcomes)
	}
}

func setNoDelay(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
}

func (r *Racer) raceFirstWins(ctx context.Context, outcomes <-chan attemptOutcome) (net.Conn, error) {
	var errs []error

	for {
		select {
		case o, open := <-outcomes:
			if !open {
				return nil, aggregateError(errs)
			}
			if o.err != nil {
				errs = append(errs, o.err)
				continue
			}

			r.log.Debug().Str("attempt", o.id).Dur("rtt", o.done.Sub(o.started)).Msg("racer: first-wins dial completed")
			setNoDelay(o.conn)
			go drainLosers(outcomes)
			return o.conn, nil

		case <-ctx.Done():
			return nil, fmt.Errorf("racer: race timed out: %w", ctx.Err())
		}
	}
}

// raceLastWins keeps every successful connection open until the race
// timeout or all attempts settle, then keeps whichever success arrived
// most recently, closing the rest — for servers that reset
// connections opened earlier in the same race.
func (r *Racer) raceLastWins(ctx context.Context, outcomes <-chan attemptOutcome) (net.Conn, error) {
	var successes []attemptOutcome
	var errs []error

collect:
	for {
		select {
		case o, open := <-outcomes:
			if !open {
				break collect
			}
			if o.err != nil {
				errs = append(errs, o.err)
				continue
			}
			successes = append(successes, o)

		case <-ctx.Done():
			break collect
		}
	}

	if len(successes) == 0 {
		return nil, aggregateError(errs)
	}

	winner := successes[len(successes)-1]
	for _, s := range successes[:len(successes)-1] {
		_ = s.conn.Close()
	}

	r.log.Debug().Str("attempt", winner.id).Int("candidates", len(successes)).Msg("racer: last-wins dial selected")
	setNoDelay(winner.conn)
	return winner.conn, nil
}

// raceHybrid takes the first success as a provisional winner, but
// waits out one more InterStartDelay grace window in case a second
// success arrives and replaces it — a first handshake can belong to a
// connection the server is already about to reset.
func (r *Racer) raceHybrid(ctx context.Context, outcomes <-chan attemptOutcome, grace time.Duration) (net.Conn, error) {
	var errs []error
	var provisional *attemptOutcome

	for provisional == nil {
		select {
		case o, open := <-outcomes:
			if !open {
				return nil, aggregateError(errs)
			}
			if o.err != nil {
				errs = append(errs, o.err)
				continue
			}
			provisional = &o

		case <-ctx.Done():
			return nil, fmt.Errorf("racer: race timed out: %w", ctx.Err())
		}
	}

	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()

	for {
		select {
		case o, open := <-outcomes:
			if !open {
				setNoDelay(provisional.conn)
				return provisional.conn, nil
			}
			if o.err != nil {
				errs = append(errs, o.err)
				continue
			}

			r.log.Debug().Str("replaced", provisional.id).Str("with", o.id).Msg("racer: hybrid grace-window replacement")
			_ = provisional.conn.Close()
			provisional = &o

		case <-graceTimer.C:
			setNoDelay(provisional.conn)
			go drainLosers(outcomes)
			return provisional.conn, nil

		case <-ctx.Done():
			setNoDelay(provisional.conn)
			go drainLosers(outcomes)
			return provisional.conn, nil
		}
	}
}

// drainLosers closes every connection that arrives after a winner has
// already been chosen.
func drainLosers(outcomes <-chan attemptOutcome) {
	for o := range outcomes {
		if o.conn != nil {
			_ = o.conn.Close()
		}
	}
}

func aggregateError(errs []error) error {
	if len(errs) == 0 {
		return fmt.Errorf("racer: all dial attempts failed with no recorded error")
	}
	return fmt.Errorf("racer: all %d dial attempts failed: %w", len(errs), errs[len(errs)-1])
}
