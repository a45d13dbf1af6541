package rtspclientsrc

import (
	"fmt"
	"net"

	"github.com/mediabridge/rtspclientsrc/internal/asyncprocessor"
	"github.com/mediabridge/rtspclientsrc/pkg/description"
	"github.com/mediabridge/rtspclientsrc/pkg/multicast"
	"github.com/mediabridge/rtspclientsrc/pkg/rtpreceiver"
	"github.com/mediabridge/rtspclientsrc/pkg/rtptime"
	"github.com/mediabridge/rtspclientsrc/pkg/transport"
)

// stream is the control task's per-medium bookkeeping: one exists for
// every medium the control task has SETUP'd, from the SETUP response
// until Teardown.
type stream struct {
	index  int
	name   string // "stream_<index>", the downstream pad name.
	medium *description.Media

	// setupURL is the medium's resolved control URL, kept to match
	// RTP-Info entries (keyed by URL) back to this stream.
	setupURL string

	clockRate int

	transport transport.Result

	// rtpConn and rtcpConn are the locally bound UDP sockets for this
	// medium, non-nil whenever transport.Protocol chose UDP unicast or
	// multicast. A unicast *net.UDPConn satisfies multicast.Conn
	// directly; a multicast group join wraps it in multicast.NewSingleConn.
	rtpConn  multicast.Conn
	rtcpConn multicast.Conn

	rtpSink   RTPSink
	rtcpSink  RTCPSink
	eventSink EventSink

	// sinkProc, when non-nil, decouples delivery to rtpSink/rtcpSink
	// from whichever goroutine received the packet. It matters most for
	// TCP-interleaved media, where that goroutine is the control task's
	// own run loop: a slow sink must not stall every other stream's
	// delivery or the keepalive timer behind it.
	sinkProc *asyncprocessor.Processor

	receiver *rtpreceiver.Receiver

	// rtpDecoder backs TCP-interleaved dispatch. UDP dispatch keeps its
	// own decoder instance inside udpRX.
	rtpDecoder *rtptime.Decoder

	udpRX   *udpRXTask
	udpRTCP *udpRTCPTask

	// seqnumBase and clockBase are backfilled from the PLAY response's
	// RTP-Info entry for this medium, when present.
	seqnumBase *uint16
	clockBase  *uint32

	peerAddr *net.UDPAddr
}

func streamName(index int) string {
	return fmt.Sprintf("stream_%d", index)
}
