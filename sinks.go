package rtspclientsrc

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// RTPSink receives RTP packets for one negotiated medium, each tagged
// with the running time the control task derived for it.
type RTPSink interface {
	WriteRTP(pkt *rtp.Packet, runningTime time.Duration)
}

// RTCPSink receives RTCP packets for one negotiated medium, inbound
// sender reports as well as locally generated receiver reports.
type RTCPSink interface {
	WriteRTCP(pkt rtcp.Packet, runningTime time.Duration)
}

// EventKind names a control-plane notification delivered alongside a
// stream's RTP/RTCP data.
type EventKind int

const (
	// EventFlushStart asks downstream to drop buffered data and block
	// until EventFlushStop.
	EventFlushStart EventKind = iota

	// EventFlushStop ends a flush. ResetTime reports whether the
	// running-time base was reset as part of it.
	EventFlushStop

	// EventSegment announces a new playback segment, as issued after a
	// seek's PLAY response is backfilled with RTP-Info.
	EventSegment

	// EventEndOfStream marks the orderly end of a stream, issued once
	// per medium during Teardown.
	EventEndOfStream
)

// Event is one control-plane notification.
type Event struct {
	Kind EventKind

	// ResetTime is set on EventFlushStop following a flushing seek.
	ResetTime bool

	// Start and Position carry EventSegment's time-based fields: Start
	// is the new segment's base time, Position the point playback
	// resumes from within it.
	Start    time.Duration
	Position time.Duration
}

// EventSink receives Event notifications for one negotiated medium.
type EventSink interface {
	WriteEvent(ev Event)
}

// StreamSinks bundles the three collaborators a negotiated medium
// delivers its data to. Any of the three may be left nil; a nil sink
// silently discards what it would have received.
type StreamSinks struct {
	RTP   RTPSink
	RTCP  RTCPSink
	Event EventSink
}
