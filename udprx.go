package rtspclientsrc

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"

	"github.com/mediabridge/rtspclientsrc/internal/rtplossdetector"
	"github.com/mediabridge/rtspclientsrc/pkg/liberrors"
	"github.com/mediabridge/rtspclientsrc/pkg/multibuffer"
	"github.com/mediabridge/rtspclientsrc/pkg/multicast"
	"github.com/mediabridge/rtspclientsrc/pkg/rtpreceiver"
	"github.com/mediabridge/rtspclientsrc/pkg/rtptime"
)

// maxUDPReceiveBufferSize is the largest a receive buffer pool is ever
// grown to, the UDP maximum payload size minus header overhead.
const maxUDPReceiveBufferSize = 65527

// udpRXTask is one medium's UDP RTP receive task: one goroutine owns
// the socket, tracks the time of the last datagram for liveness, and
// grows its receive-buffer pool when a datagram perfectly fills it.
// Cancellation is a read-deadline bump unblocking the read, not a
// context.Context, synchronized back through a done channel.
type udpRXTask struct {
	pc             multicast.Conn
	peer           *net.UDPAddr
	filterBySender bool
	timeout        time.Duration

	sink     RTPSink
	receiver *rtpreceiver.Receiver
	loss     *rtplossdetector.LossDetector
	decoder  *rtptime.Decoder
	log      zerolog.Logger

	buf *multibuffer.MultiBuffer

	running        int32
	lastPacketNano int64
	readerDone     chan struct{}
	fatal          chan error
}

func newUDPRXTask(pc multicast.Conn, peer *net.UDPAddr, filterBySender bool, mtu int,
	timeout time.Duration, clockRate int, sink RTPSink, receiver *rtpreceiver.Receiver,
	log zerolog.Logger,
) *udpRXTask {
	return &udpRXTask{
		pc:             pc,
		peer:           peer,
		filterBySender: filterBySender,
		timeout:        timeout,
		sink:           sink,
		receiver:       receiver,
		loss:           &rtplossdetector.LossDetector{},
		decoder:        rtptime.NewDecoder(clockRate),
		log:            log,
		buf:            multibuffer.New(2, uint64(mtu)),
		readerDone:     make(chan struct{}),
		fatal:          make(chan error, 1),
	}
}

func (t *udpRXTask) start() {
	atomic.StoreInt32(&t.running, 1)
	atomic.StoreInt64(&t.lastPacketNano, time.Now().UnixNano())
	_ = t.pc.SetReadDeadline(time.Time{})
	go t.run()
}

func (t *udpRXTask) stop() {
	if atomic.SwapInt32(&t.running, 0) == 0 {
		return
	}
	_ = t.pc.SetReadDeadline(time.Now())
	<-t.readerDone
}

func (t *udpRXTask) run() {
	defer close(t.readerDone)

	checkInterval := t.timeout
	if checkInterval <= 0 {
		checkInterval = 10 * time.Second
	}

	for {
		_ = t.pc.SetReadDeadline(time.Now().Add(checkInterval))

		buffer := t.buf.Next()
		n, addr, err := t.pc.ReadFrom(buffer)
		if err != nil {
			if atomic.LoadInt32(&t.running) == 0 {
				return
			}
			if isTimeoutErr(err) {
				if time.Since(time.Unix(0, atomic.LoadInt64(&t.lastPacketNano))) > t.timeout {
					t.fail(liberrors.ErrClientNoUDPPacketsRecently{})
					return
				}
				continue
			}
			t.fail(err)
			return
		}

		if t.filterBySender && t.peer != nil {
			if udpAddr, ok := addr.(*net.UDPAddr); ok && !udpAddr.IP.Equal(t.peer.IP) {
				continue
			}
		}

		atomic.StoreInt64(&t.lastPacketNano, time.Now().UnixNano())

		if n == len(buffer) && uint64(len(buffer)) < maxUDPReceiveBufferSize {
			newSize := 2 * uint64(len(buffer))
			if newSize > maxUDPReceiveBufferSize {
				newSize = maxUDPReceiveBufferSize
			}
			t.log.Warn().Uint64("new_size", newSize).Msg("UDP datagram filled the receive buffer, growing pool")
			t.buf = multibuffer.New(2, newSize)
		}

		t.dispatch(buffer[:n])
	}
}

func (t *udpRXTask) dispatch(payload []byte) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(payload); err != nil {
		t.log.Debug().Err(err).Msg("dropping malformed RTP packet")
		return
	}

	if t.receiver != nil {
		t.receiver.ProcessPacket2(&pkt, time.Now(), false)
	}
	if t.loss != nil {
		t.loss.Process(&pkt)
	}

	runningTime := t.decoder.Decode(pkt.Timestamp)
	if t.sink != nil {
		t.sink.WriteRTP(&pkt, runningTime)
	}
}

func (t *udpRXTask) fail(err error) {
	select {
	case t.fatal <- err:
	default:
	}
}

func isTimeoutErr(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
