package rtspclientsrc

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/rs/zerolog"

	"github.com/mediabridge/rtspclientsrc/pkg/multicast"
	"github.com/mediabridge/rtspclientsrc/pkg/rtpreceiver"
)

// udpRTCPTask is one medium's UDP RTCP task: it owns one socket
// and a select loop multiplexing outbound receiver reports (produced by
// rtpreceiver.Receiver's own ticker) against inbound sender reports,
// following the same socket-ownership and cancellation shape as
// udpRXTask.
type udpRTCPTask struct {
	pc             multicast.Conn
	peer           *net.UDPAddr
	filterBySender bool

	sink     RTCPSink
	receiver *rtpreceiver.Receiver
	log      zerolog.Logger

	outbound chan rtcp.Packet

	running    int32
	readerDone chan struct{}
	writerDone chan struct{}
}

func newUDPRTCPTask(pc multicast.Conn, peer *net.UDPAddr, filterBySender bool,
	sink RTCPSink, receiver *rtpreceiver.Receiver, log zerolog.Logger,
) *udpRTCPTask {
	t := &udpRTCPTask{
		pc:             pc,
		peer:           peer,
		filterBySender: filterBySender,
		sink:           sink,
		receiver:       receiver,
		log:            log,
		outbound:       make(chan rtcp.Packet, 8),
		readerDone:     make(chan struct{}),
		writerDone:     make(chan struct{}),
	}
	if receiver != nil {
		receiver.WritePacketRTCP = t.enqueue
	}
	return t
}

// enqueue is handed to rtpreceiver.Receiver as its WritePacketRTCP
// callback; a full outbound channel drops the report rather than
// blocking the receiver's own ticker goroutine.
func (t *udpRTCPTask) enqueue(pkt rtcp.Packet) {
	select {
	case t.outbound <- pkt:
	default:
		t.log.Warn().Msg("outbound RTCP channel full, dropping receiver report")
	}
}

func (t *udpRTCPTask) start() {
	atomic.StoreInt32(&t.running, 1)
	_ = t.pc.SetReadDeadline(time.Time{})
	go t.readLoop()
	go t.writeLoop()
}

func (t *udpRTCPTask) stop() {
	if atomic.SwapInt32(&t.running, 0) == 0 {
		return
	}
	close(t.outbound)
	_ = t.pc.SetReadDeadline(time.Now())
	<-t.readerDone
	<-t.writerDone
}

func (t *udpRTCPTask) readLoop() {
	defer close(t.readerDone)

	buf := make([]byte, 1500)
	for {
		n, addr, err := t.pc.ReadFrom(buf)
		if err != nil {
			if atomic.LoadInt32(&t.running) == 0 {
				return
			}
			if isTimeoutErr(err) {
				continue
			}
			return
		}

		if t.filterBySender && t.peer != nil {
			if udpAddr, ok := addr.(*net.UDPAddr); ok && !udpAddr.IP.Equal(t.peer.IP) {
				continue
			}
		}

		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			t.log.Debug().Err(err).Msg("dropping malformed RTCP packet")
			continue
		}

		for _, pkt := range pkts {
			if sr, ok := pkt.(*rtcp.SenderReport); ok && t.receiver != nil {
				t.receiver.ProcessSenderReport(sr, time.Now())
			}
			if t.sink != nil {
				t.sink.WriteRTCP(pkt, 0)
			}
		}
	}
}

func (t *udpRTCPTask) writeLoop() {
	defer close(t.writerDone)

	for pkt := range t.outbound {
		if t.peer == nil {
			t.log.Warn().Msg("dropping outbound RTCP packet, peer address not yet known")
			continue
		}

		byts, err := rtcp.Marshal([]rtcp.Packet{pkt})
		if err != nil {
			t.log.Debug().Err(err).Msg("failed to marshal outbound RTCP packet")
			continue
		}

		if _, err := t.pc.WriteTo(byts, t.peer); err != nil {
			if atomic.LoadInt32(&t.running) == 0 {
				return
			}
			t.log.Warn().Err(err).Msg("failed to send RTCP packet")
		}
	}
}
