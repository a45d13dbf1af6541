// Package rtspclientsrc is a RTSP 1.0 client core: it owns the control
// connection, the session state machine, transport negotiation and
// per-medium receive tasks behind a small public facade (Client).
package rtspclientsrc

import (
	"time"

	"github.com/mediabridge/rtspclientsrc/pkg/racer"
	"github.com/mediabridge/rtspclientsrc/pkg/retry"
	"github.com/mediabridge/rtspclientsrc/pkg/transport"
)

// SeekFormat selects the Range-header unit Client.Seek encodes into.
type SeekFormat int

const (
	// SeekFormatNpt is normal play time, seconds since the start of the
	// stream.
	SeekFormatNpt SeekFormat = iota

	// SeekFormatSmpte is a SMPTE timecode, 30fps assumed.
	SeekFormatSmpte

	// SeekFormatClock is an absolute UTC timestamp.
	SeekFormatClock
)

// String returns the wire-level unit name.
func (f SeekFormat) String() string {
	switch f {
	case SeekFormatSmpte:
		return "smpte"
	case SeekFormatClock:
		return "clock"
	default:
		return "npt"
	}
}

// Settings configures a Client before Start. Every field documents the
// observable effect changing it has; defaults come from DefaultSettings.
type Settings struct {
	// Location is the RTSP URL to play. Its scheme constrains Protocols:
	// rtspu limits negotiation to ProtocolUDP/ProtocolMulticast, rtspt to
	// ProtocolTCP, rtsp leaves the configured set untouched.
	Location string

	// Protocols lists the lower transports Configure will offer, in
	// preference order. Empty means all three.
	Protocols []transport.Protocol

	// PortStart is the first local UDP port a unicast offer tries to
	// bind. Zero means an ephemeral port.
	PortStart int

	// ReceiveMTU sizes the initial UDP receive-buffer pool. It grows
	// adaptively up to 65527 bytes.
	ReceiveMTU int

	// Timeout bounds connect, operation and UDP-liveness waits.
	Timeout time.Duration

	// Retry tunes the reconnection subsystem: strategy, backoff and
	// budget for a dropped connection or a failed dial attempt.
	Retry retry.Config

	// Adaptive additionally tunes the optional per-server learner; only
	// consulted when Retry.Strategy is StrategyAdaptive.
	Adaptive retry.LearnerConfig

	// Racing tunes the connection racer: how many concurrent dials it
	// opens to the server and how it picks the winner.
	Racing racer.Config

	// SeekFormatPref is the Range-header unit Seek encodes into.
	SeekFormatPref SeekFormat

	// Latency, DropOnLatency, Probation and BufferMode are held in
	// Settings only: neither the control task nor pkg/rtpreceiver
	// reads them.
	Latency       time.Duration
	DropOnLatency bool
	Probation     int
	BufferMode    string

	// DoRTCP enables the per-medium RTCP receive/send task, including
	// the jitter-buffer receiver that needs its sender reports.
	DoRTCP bool

	// DoRetransmission is held in Settings only; nothing reads it and
	// no retransmission recovery is performed.
	DoRetransmission bool

	// MaxRTCPRTPTimeDiff is held in Settings only; nothing reads it and
	// sender reports are not checked for drift against it.
	MaxRTCPRTPTimeDiff time.Duration
}

// DefaultSettings returns the configuration a freshly constructed
// Client starts with.
func DefaultSettings() Settings {
	return Settings{
		Protocols:          []transport.Protocol{transport.ProtocolUDP, transport.ProtocolTCP},
		ReceiveMTU:         1500,
		Timeout:            10 * time.Second,
		Retry:              retry.DefaultConfig(),
		Adaptive:           retry.DefaultLearnerConfig(),
		Racing:             racer.DefaultConfig(),
		SeekFormatPref:     SeekFormatNpt,
		Latency:            200 * time.Millisecond,
		Probation:          2,
		BufferMode:         "auto",
		DoRTCP:             true,
		MaxRTCPRTPTimeDiff: time.Second,
	}
}
