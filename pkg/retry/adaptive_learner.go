package retry

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// persistRateLimit bounds how often a learner will write its cache
// file to disk; RecordAttempt can fire on every keep-alive failure,
// far faster than the on-disk state needs to track.
const persistRateLimit = 1.0 // writes per second

const (
	cacheTTL                = 7 * 24 * time.Hour
	defaultDiscoveryTime    = 30 * time.Second
	defaultExplorationRate  = 0.1
	changedExplorationRate  = 0.3
	confidenceThreshold     = 0.8
	recentHistorySize       = 20
	changeDetectionVariance = 0.3
	miniDiscoveryDuration   = 10 * time.Second
)

// learnedStrategies is the set of concrete strategies the adaptive
// learner chooses among. Auto and Adaptive themselves are never a
// learner's own output.
var learnedStrategies = []Strategy{
	StrategyImmediate,
	StrategyLinear,
	StrategyExponential,
	StrategyExponentialJitter,
}

// Phase is the adaptive learner's current operating mode.
type Phase int

const (
	// PhaseDiscovery tries every strategy once before forming an
	// opinion.
	PhaseDiscovery Phase = iota

	// PhaseExploitation always plays the Thompson-sampling winner.
	PhaseExploitation

	// PhaseExploration plays the winner most of the time but
	// occasionally tries a random strategy, so the learner keeps
	// adapting instead of locking onto a stale belief.
	PhaseExploration

	// PhaseMiniDiscovery is a short re-run of discovery entered after
	// change detection trips.
	PhaseMiniDiscovery
)

// stats accumulates per-strategy outcome history for one server.
type stats struct {
	Attempts           uint64          `json:"attempts"`
	Successes          uint64          `json:"successes"`
	AvgRecoverySeconds float64         `json:"avg_recovery_seconds"`
	RecentPerformance  []bool          `json:"recent_performance"`
	Score              float64         `json:"score"`
	recoveryTimes      []time.Duration `json:"-"`
}

func (s *stats) recordAttempt(success bool, recovery time.Duration) {
	s.Attempts++
	if success {
		s.Successes++
	}

	s.RecentPerformance = append(s.RecentPerformance, success)
	if len(s.RecentPerformance) > recentHistorySize {
		s.RecentPerformance = s.RecentPerformance[len(s.RecentPerformance)-recentHistorySize:]
	}

	s.recoveryTimes = append(s.recoveryTimes, recovery)
	var sum float64
	for _, d := range s.recoveryTimes {
		sum += d.Seconds()
	}
	s.AvgRecoverySeconds = sum / float64(len(s.recoveryTimes))

	s.Score = s.calculateScore()
}

func (s *stats) calculateScore() float64 {
	if s.Attempts == 0 {
		return 0
	}

	successRate := float64(s.Successes) / float64(s.Attempts)

	speedScore := 1.0
	if s.AvgRecoverySeconds > 0 {
		speedScore = math.Min(1.0/s.AvgRecoverySeconds, 1.0)
	}

	recencyWeight := successRate
	if len(s.RecentPerformance) > 0 {
		var recentSuccesses int
		for _, ok := range s.RecentPerformance {
			if ok {
				recentSuccesses++
			}
		}
		recencyWeight = float64(recentSuccesses) / float64(len(s.RecentPerformance))
	}

	return successRate*0.5 + speedScore*0.3 + recencyWeight*0.2
}

func (s *stats) successRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

// ServerMetrics is the per-server bandit state the adaptive learner
// persists between runs.
type ServerMetrics struct {
	Strategies      map[Strategy]*stats `json:"strategies"`
	TotalAttempts   uint64              `json:"total_attempts"`
	LastUpdatedUnix int64               `json:"last_updated_unix"`
	ConfidenceScore float64             `json:"confidence_score"`
	ServerHash      string              `json:"server_hash"`
}

func newServerMetrics(serverURL string) *ServerMetrics {
	m := &ServerMetrics{
		Strategies: make(map[Strategy]*stats, len(learnedStrategies)),
		ServerHash: hashServerURL(serverURL),
	}
	for _, s := range learnedStrategies {
		m.Strategies[s] = &stats{}
	}
	return m
}

func hashServerURL(url string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(url))
	return fmt.Sprintf("%x", h.Sum64())
}

func (m *ServerMetrics) updateConfidence() {
	dataPoints := float64(m.TotalAttempts)
	baseConfidence := math.Min(dataPoints/(dataPoints+10.0), 0.9)
	m.ConfidenceScore = baseConfidence * m.calculateConsistency()
}

func (m *ServerMetrics) calculateConsistency() float64 {
	if len(m.Strategies) == 0 {
		return 0
	}

	var sum float64
	for _, s := range m.Strategies {
		sum += s.Score
	}
	mean := sum / float64(len(m.Strategies))

	var variance float64
	for _, s := range m.Strategies {
		d := s.Score - mean
		variance += d * d
	}
	variance /= float64(len(m.Strategies))

	return 1.0 / (1.0 + variance)
}

// detectNetworkChange reports whether any strategy's recent success
// rate has drifted far enough from its lifetime rate to suggest the
// network conditions underlying the learned model have changed.
func (m *ServerMetrics) detectNetworkChange() bool {
	for _, s := range m.Strategies {
		if len(s.RecentPerformance) < 10 {
			continue
		}

		last10 := s.RecentPerformance[len(s.RecentPerformance)-10:]
		var recentSuccesses int
		for _, ok := range last10 {
			if ok {
				recentSuccesses++
			}
		}
		recentRate := float64(recentSuccesses) / 10.0

		if math.Abs(recentRate-s.successRate()) > changeDetectionVariance {
			return true
		}
	}

	return false
}

// LearnerConfig configures an AdaptiveLearner.
type LearnerConfig struct {
	Enabled          bool
	Persistence      bool
	CacheTTL         time.Duration
	DiscoveryTime    time.Duration
	ExplorationRate  float64
	ConfidenceThresh float64
	ChangeDetection  bool
	CacheDir         string
}

// DefaultLearnerConfig returns the configuration an rtspsrc element
// starts an adaptive learner with.
func DefaultLearnerConfig() LearnerConfig {
	return LearnerConfig{
		Enabled:          true,
		Persistence:      true,
		CacheTTL:         cacheTTL,
		DiscoveryTime:    defaultDiscoveryTime,
		ExplorationRate:  defaultExplorationRate,
		ConfidenceThresh: confidenceThreshold,
		ChangeDetection:  true,
		CacheDir:         defaultCacheDir(),
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "gstreamer", "rtspclientsrc")
}

// AdaptiveLearner is a per-server multi-armed bandit over retry
// strategies, backing StrategyAdaptive.
type AdaptiveLearner struct {
	config LearnerConfig
	log    zerolog.Logger

	metrics      *ServerMetrics
	persistLimit *rate.Limiter

	phase              Phase
	discoveryStarted   time.Time
	miniDiscoveryFor   time.Duration
	currentStrategy    Strategy
	untestedStrategies []Strategy
	explorationRate    float64
}

// NewAdaptiveLearner builds a learner for serverURL, loading persisted
// state from disk when cfg.Persistence is set and a fresh-enough cache
// file exists.
func NewAdaptiveLearner(serverURL string, cfg LearnerConfig, log zerolog.Logger) *AdaptiveLearner {
	var metrics *ServerMetrics
	if cfg.Persistence {
		if loaded, err := loadMetrics(cfg.CacheDir, serverURL, cfg.CacheTTL); err == nil {
			metrics = loaded
		} else {
			log.Debug().Err(err).Str("server", serverURL).Msg("no usable adaptive retry cache")
		}
	}
	if metrics == nil {
		metrics = newServerMetrics(serverURL)
	}

	untested := make([]Strategy, len(learnedStrategies))
	copy(untested, learnedStrategies)

	return &AdaptiveLearner{
		config:             cfg,
		log:                log,
		metrics:            metrics,
		persistLimit:       rate.NewLimiter(rate.Limit(persistRateLimit), 1),
		phase:              PhaseDiscovery,
		untestedStrategies: untested,
		explorationRate:    cfg.ExplorationRate,
	}
}

// SelectStrategy updates the learner's phase if needed and returns the
// strategy it recommends for the next attempt.
func (a *AdaptiveLearner) SelectStrategy() Strategy {
	a.updatePhase()

	var strategy Strategy
	switch a.phase {
	case PhaseDiscovery, PhaseMiniDiscovery:
		strategy = a.selectDiscoveryStrategy()
	case PhaseExploitation:
		strategy = a.selectBestStrategy()
	case PhaseExploration:
		strategy = a.selectExplorationStrategy()
	}

	a.currentStrategy = strategy
	return strategy
}

func (a *AdaptiveLearner) updatePhase() {
	switch a.phase {
	case PhaseDiscovery:
		if a.discoveryStarted.IsZero() {
			a.discoveryStarted = now()
		}
		if now().Sub(a.discoveryStarted) > a.config.DiscoveryTime {
			a.phase = PhaseExploitation
		}

	case PhaseMiniDiscovery:
		if now().Sub(a.discoveryStarted) > a.miniDiscoveryFor {
			a.phase = PhaseExploitation
			a.explorationRate = a.config.ExplorationRate
		}

	case PhaseExploitation, PhaseExploration:
		if a.config.ChangeDetection && a.metrics.detectNetworkChange() {
			a.adaptToChange()
		}
	}
}

func (a *AdaptiveLearner) selectDiscoveryStrategy() Strategy {
	if len(a.untestedStrategies) > 0 {
		last := len(a.untestedStrategies) - 1
		strategy := a.untestedStrategies[last]
		a.untestedStrategies = a.untestedStrategies[:last]
		return strategy
	}

	a.phase = PhaseExploitation
	return a.selectBestStrategy()
}

func (a *AdaptiveLearner) selectBestStrategy() Strategy {
	best := StrategyExponentialJitter
	bestSample := -math.MaxFloat64

	for _, strategy := range learnedStrategies {
		s := a.metrics.Strategies[strategy]
		sample := sampleBeta(s.Successes+1, s.Attempts-s.Successes+1)
		if sample > bestSample {
			bestSample = sample
			best = strategy
		}
	}

	return best
}

func (a *AdaptiveLearner) selectExplorationStrategy() Strategy {
	if rand.Float64() < a.explorationRate { // nolint:gosec // strategy exploration, not a security decision
		return learnedStrategies[rand.Intn(len(learnedStrategies))] // nolint:gosec
	}
	return a.selectBestStrategy()
}

// sampleBeta approximates a draw from Beta(alpha, beta) with a cheap
// uniform-weighted blend, trading statistical rigor for avoiding a
// full special-function distribution dependency.
func sampleBeta(alpha, beta uint64) float64 {
	alphaF, betaF := float64(alpha), float64(beta)
	u := rand.Float64() // nolint:gosec
	return u*(alphaF/(alphaF+betaF)) + (1.0-u)*0.5
}

func (a *AdaptiveLearner) adaptToChange() {
	a.metrics.ConfidenceScore *= 0.5
	a.explorationRate = changedExplorationRate

	a.phase = PhaseMiniDiscovery
	a.miniDiscoveryFor = miniDiscoveryDuration
	a.discoveryStarted = now()

	untested := make([]Strategy, len(learnedStrategies))
	copy(untested, learnedStrategies)
	a.untestedStrategies = untested
}

// RecordAttempt feeds back the outcome of playing strategy, updating
// per-strategy stats, overall confidence, and (if persistence is
// enabled) the on-disk cache.
func (a *AdaptiveLearner) RecordAttempt(strategy Strategy, success bool, recovery time.Duration) {
	if s, ok := a.metrics.Strategies[strategy]; ok {
		s.recordAttempt(success, recovery)
	}

	a.metrics.TotalAttempts++
	a.metrics.LastUpdatedUnix = now().Unix()
	a.metrics.updateConfidence()

	if a.config.Persistence && a.persistLimit.Allow() {
		if err := persistMetrics(a.config.CacheDir, a.metrics); err != nil {
			a.log.Warn().Err(err).Msg("failed to persist adaptive retry cache")
		}
	}
}

// CurrentConfidence returns the learner's current confidence score.
func (a *AdaptiveLearner) CurrentConfidence() float64 {
	return a.metrics.ConfidenceScore
}

// BestStrategy returns the highest-scoring strategy observed so far,
// independent of phase.
func (a *AdaptiveLearner) BestStrategy() Strategy {
	best := StrategyExponentialJitter
	bestScore := -math.MaxFloat64

	for _, strategy := range learnedStrategies {
		s := a.metrics.Strategies[strategy]
		if s.Score > bestScore {
			bestScore = s.Score
			best = strategy
		}
	}

	return best
}

func loadMetrics(cacheDir, serverURL string, ttl time.Duration) (*ServerMetrics, error) {
	hash := hashServerURL(serverURL)
	path := filepath.Join(cacheDir, hash+".json")

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if now().Sub(info.ModTime()) > ttl {
		return nil, fmt.Errorf("adaptive retry cache for %s is stale", hash)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m ServerMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}

func persistMetrics(cacheDir string, m *ServerMetrics) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(cacheDir, m.ServerHash+".json")
	return os.WriteFile(path, data, 0o644)
}

// now is indirected so phase-timing logic can be exercised without
// relying on wall-clock sleeps in tests.
var now = time.Now
