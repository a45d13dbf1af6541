package rtspclientsrc

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"

	"github.com/mediabridge/rtspclientsrc/internal/asyncprocessor"
	"github.com/mediabridge/rtspclientsrc/pkg/base"
	"github.com/mediabridge/rtspclientsrc/pkg/conn"
	"github.com/mediabridge/rtspclientsrc/pkg/description"
	"github.com/mediabridge/rtspclientsrc/pkg/headers"
	"github.com/mediabridge/rtspclientsrc/pkg/liberrors"
	"github.com/mediabridge/rtspclientsrc/pkg/multicast"
	"github.com/mediabridge/rtspclientsrc/pkg/rtpreceiver"
	"github.com/mediabridge/rtspclientsrc/pkg/rtptime"
	"github.com/mediabridge/rtspclientsrc/pkg/rtspsession"
	"github.com/mediabridge/rtspclientsrc/pkg/sdp"
	"github.com/mediabridge/rtspclientsrc/pkg/transport"
)

const keepAlivePeriod = 30 * time.Second

// inboundMsg is one item the read goroutine hands to the control task:
// exactly one of frame, resp or err is set.
type inboundMsg struct {
	frame *base.InterleavedFrame
	resp  *base.Response
	err   error
}

// control is the centerpiece cooperative task. It owns the RTSP
// control connection, the session state machine and every outstanding
// request, and multiplexes inbound frames, the command inbox and the
// keepalive timer through one select loop in run().
type control struct {
	settings  Settings
	log       zerolog.Logger
	url       *base.URL
	protocols []transport.Protocol

	netConn    net.Conn
	rw         *conn.Conn
	req        *requester
	session    *rtspsession.Manager
	negotiator *transport.Negotiator

	state   clientState
	streams []*stream
	desc    *description.Session

	// sinks maps medium index to the collaborator it should deliver
	// data to, supplied by the Client facade before Start and consulted
	// once per medium while bootstrap runs SETUP.
	sinks map[int]StreamSinks

	cmdCh   chan command
	inbound chan inboundMsg

	// bootErr, when non-nil, receives bootstrap's result exactly once,
	// letting the facade's Start return as soon as SETUP finishes while
	// run keeps going in the background for the steady-state loop.
	bootErr chan error
}

func newControl(settings Settings, protocols []transport.Protocol, url *base.URL, netConn net.Conn,
	sinks map[int]StreamSinks, cmdCh chan command, log zerolog.Logger,
) *control {
	rw := conn.NewConn(netConn)
	sess := rtspsession.NewManager()
	return &control{
		settings:   settings,
		log:        log,
		url:        url,
		protocols:  protocols,
		netConn:    netConn,
		rw:         rw,
		req:        newRequester(rw, sess),
		session:    sess,
		negotiator: transport.NewNegotiator(log),
		sinks:      sinks,
		cmdCh:      cmdCh,
	}
}

// run drives the whole session to completion: bootstrap (OPTIONS,
// DESCRIBE, every SETUP), then the steady-state select loop until a
// command or the connection itself ends it. The returned error is nil
// for a clean Teardown, and also when the inbound stream or the
// command inbox closes.
func (c *control) run() error {
	c.state = stateInit

	err := c.bootstrap()
	if c.bootErr != nil {
		c.bootErr <- err
	}
	if err != nil {
		return err
	}

	c.inbound = make(chan inboundMsg, 8)
	go c.readLoop()

	keepalive := time.NewTicker(keepAlivePeriod)
	defer keepalive.Stop()

	for {
		select {
		case msg, ok := <-c.inbound:
			if !ok {
				return nil
			}
			if err := c.handleInbound(msg); err != nil {
				return err
			}
			if c.state == stateClosed {
				return nil
			}

		case cmd, ok := <-c.cmdCh:
			if !ok {
				return nil
			}
			done, err := c.handleCommand(cmd)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		case <-keepalive.C:
			if err := c.tickKeepAlive(); err != nil {
				return err
			}
		}
	}
}

// bootstrap runs the synchronous OPTIONS/DESCRIBE/SETUP sequence. It
// owns the connection's read side exclusively until it returns; no
// other goroutine reads from rw until readLoop starts afterward.
func (c *control) bootstrap() error {
	optRes, err := c.doSync(buildOptions(c.url))
	if err != nil {
		return c.fatalf(liberrors.KindNetworkTransient, "options", err)
	}
	if err := checkStatus(optRes); err != nil {
		return c.fatalf(classifyStatus(optRes.StatusCode), "options", err)
	}
	if !publicSupports(optRes.Header["Public"], base.Describe, base.Setup, base.Play, base.Teardown) {
		return c.fatalf(liberrors.KindProtocolPermanent, "options",
			fmt.Errorf("server does not advertise DESCRIBE/SETUP/PLAY/TEARDOWN support"))
	}
	c.session.NoteOptionsSupport(optRes.Header["Public"])
	c.state = stateConnected

	descRes, err := c.doSync(buildDescribe(c.url))
	if err != nil {
		return c.fatalf(liberrors.KindNetworkTransient, "describe", err)
	}
	if err := checkStatus(descRes); err != nil {
		return c.fatalf(classifyStatus(descRes.StatusCode), "describe", err)
	}

	ct, ok := descRes.Header["Content-Type"]
	if !ok || len(ct) == 0 {
		return c.fatalf(liberrors.KindProtocolPermanent, "describe", liberrors.ErrClientContentTypeMissing{})
	}
	if strings.TrimSpace(ct[0]) != "application/sdp" {
		return c.fatalf(liberrors.KindProtocolPermanent, "describe", liberrors.ErrClientContentTypeUnsupported{CT: ct})
	}

	var sd sdp.SessionDescription
	if err := sd.Unmarshal(descRes.Body); err != nil {
		return c.fatalf(liberrors.KindMediaPermanent, "describe", err)
	}

	desc := &description.Session{}
	if err := desc.Unmarshal(&sd); err != nil {
		return c.fatalf(liberrors.KindMediaPermanent, "describe", err)
	}
	desc.BaseURL = resolveContentBase(c.url, descRes.Header)
	desc.Multicast = sdpIsMulticast(&sd)
	c.desc = desc
	c.state = stateDescribed

	c.state = stateSetupInProgress
	for i, m := range desc.Medias {
		if m.Type != description.MediaTypeVideo && m.Type != description.MediaTypeAudio {
			c.log.Warn().Int("index", i).Str("type", string(m.Type)).
				Msg("skipping unsupported media type")
			continue
		}

		st, err := c.setupMedium(m, i, desc.BaseURL)
		if err != nil {
			return err
		}
		c.streams = append(c.streams, st)
	}
	c.state = stateReady

	return nil
}

// doSync writes req and blocks for its response directly on rw,
// tolerating stray frames. Only used during bootstrap, before readLoop
// starts; every later request goes through awaitResponse instead since
// readLoop owns rw's read side by then.
func (c *control) doSync(req *base.Request) (*base.Response, error) {
	if _, err := c.req.write(req); err != nil {
		return nil, err
	}
	res, err := c.rw.ReadResponseIgnoreFrames()
	if err != nil {
		return nil, err
	}
	if err := c.req.applyResponse(res); err != nil {
		return nil, err
	}
	return res, nil
}

// setupMedium resolves the medium's control URL and the set of
// transports compatible with both user preference and the SDP's
// multicast/unicast constraint, then runs a single SETUP exchange
// offering all of them at once.
func (c *control) setupMedium(m *description.Media, idx int, contentBase *base.URL) (*stream, error) {
	mediaURL, err := m.URL(contentBase)
	if err != nil {
		return nil, c.fatalf(liberrors.KindProtocolPermanent, "setup", err)
	}

	implied := transport.ImpliedProtocols(c.desc.Multicast)
	candidates := transport.Intersect(c.protocols, implied)
	if len(candidates) == 0 {
		return nil, c.fatalf(liberrors.KindProtocolIntervention, "setup",
			fmt.Errorf("no configured transport is compatible with this medium"))
	}

	st, err := c.trySetup(m, idx, mediaURL, candidates)
	if err != nil {
		return nil, c.fatalf(liberrors.KindProtocolIntervention, "setup", err)
	}
	return st, nil
}

// trySetup offers every candidate protocol in one SETUP request's
// Transport header and interprets whichever single transport the
// server chose out of that offer.
func (c *control) trySetup(m *description.Media, idx int, mediaURL *base.URL, candidates []transport.Protocol) (*stream, error) {
	offers, err := c.negotiator.BuildOffers(candidates)
	if err != nil {
		return nil, err
	}

	res, err := c.doSync(buildSetup(mediaURL, transport.Offers(offers)))
	if err != nil {
		closeOfferConns(offers)
		return nil, err
	}
	if err := checkStatus(res); err != nil {
		closeOfferConns(offers)
		return nil, err
	}

	tv, ok := res.Header["Transport"]
	if !ok {
		closeOfferConns(offers)
		return nil, liberrors.ErrClientTransportHeaderInvalid{Err: fmt.Errorf("missing Transport header")}
	}
	var respTransport headers.Transport
	if err := respTransport.Read(tv); err != nil {
		closeOfferConns(offers)
		return nil, liberrors.ErrClientTransportHeaderInvalid{Err: err}
	}

	chosen, err := matchOffer(offers, respTransport)
	if err != nil {
		closeOfferConns(offers)
		return nil, err
	}
	closeOfferConns(unchosenOffers(offers, chosen))

	result, err := c.negotiator.Interpret(*chosen, respTransport, c.controlPeerIP())
	if err != nil {
		if chosen.RTPConn != nil {
			chosen.RTPConn.Close()
			chosen.RTCPConn.Close()
		}
		return nil, err
	}

	st := &stream{
		index:     idx,
		name:      streamName(idx),
		medium:    m,
		setupURL:  mediaURL.String(),
		clockRate: clockRateFromCaps(m.Caps),
		transport: result,
	}
	if chosen.RTPConn != nil {
		st.rtpConn = chosen.RTPConn
		st.rtcpConn = chosen.RTCPConn
	}
	if result.Source != nil {
		st.peerAddr = &net.UDPAddr{IP: result.Source, Port: result.ServerPorts[0]}
	}

	if chosen.Protocol == transport.ProtocolMulticast {
		if err := joinMulticastGroup(st, result); err != nil {
			return nil, err
		}
	}

	if sinks, ok := c.sinks[idx]; ok {
		st.rtpSink = sinks.RTP
		st.rtcpSink = sinks.RTCP
		st.eventSink = sinks.Event
	}

	if st.rtpSink != nil || st.rtcpSink != nil {
		st.sinkProc = newSinkProcessor(st.name, c.log)
	}

	if c.settings.DoRTCP {
		st.receiver = newReceiver(st.clockRate, c.settings)
	}

	return st, nil
}

// matchOffer finds which of the sent offers the server's single
// Transport response corresponds to: SETUP offers every viable
// protocol at once, but the server's response only ever names the one
// it picked.
func matchOffer(offers []transport.Offer, resp headers.Transport) (*transport.Offer, error) {
	var want transport.Protocol
	switch {
	case resp.Protocol == headers.TransportProtocolTCP:
		want = transport.ProtocolTCP
	case resp.Delivery != nil && *resp.Delivery == headers.TransportDeliveryMulticast:
		want = transport.ProtocolMulticast
	default:
		want = transport.ProtocolUDP
	}

	for i := range offers {
		if offers[i].Protocol == want {
			return &offers[i], nil
		}
	}
	return nil, fmt.Errorf("transport: server chose %v, which was never offered", want)
}

// unchosenOffers returns every offer other than chosen, so their bound
// UDP sockets (if any) can be closed once the server's pick is known.
func unchosenOffers(offers []transport.Offer, chosen *transport.Offer) []transport.Offer {
	out := make([]transport.Offer, 0, len(offers)-1)
	for i := range offers {
		if &offers[i] != chosen {
			out = append(out, offers[i])
		}
	}
	return out
}

// sinkProcBufferSize bounds the per-stream sink delivery queue. It must
// be a power of two; 64 packets is several seconds of audio or a few
// frames of video, enough to absorb a brief sink stall without the
// control task itself blocking on delivery.
const sinkProcBufferSize = 64

func newSinkProcessor(streamName string, log zerolog.Logger) *asyncprocessor.Processor {
	p := &asyncprocessor.Processor{
		BufferSize: sinkProcBufferSize,
		OnError: func(_ context.Context, err error) {
			if err != nil {
				log.Warn().Err(err).Str("stream", streamName).Msg("sink delivery failed")
			}
		},
	}
	p.Initialize()
	p.Start()
	return p
}

// joinMulticastGroup opens the RTP and RTCP sockets for a multicast
// medium, joining the group the server named in its Transport response.
func joinMulticastGroup(st *stream, result transport.Result) error {
	intf, err := multicast.InterfaceForSource(result.Source)
	if err != nil {
		return err
	}

	rtpAddr := net.JoinHostPort(result.Destination.String(), strconv.Itoa(result.ServerPorts[0]))
	rtpConn, err := multicast.NewSingleConn(intf, rtpAddr, net.ListenPacket)
	if err != nil {
		return err
	}

	rtcpAddr := net.JoinHostPort(result.Destination.String(), strconv.Itoa(result.ServerPorts[1]))
	rtcpConn, err := multicast.NewSingleConn(intf, rtcpAddr, net.ListenPacket)
	if err != nil {
		rtpConn.Close()
		return err
	}

	st.rtpConn = rtpConn
	st.rtcpConn = rtcpConn
	return nil
}

func (c *control) controlPeerIP() net.IP {
	if addr, ok := c.netConn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return nil
}

func newReceiver(clockRate int, settings Settings) *rtpreceiver.Receiver {
	rr := &rtpreceiver.Receiver{
		ClockRate:            clockRate,
		Period:               5 * time.Second,
		UnrealiableTransport: true,
	}
	if err := rr.Initialize(); err != nil {
		return nil
	}
	return rr
}

// startMediaTasks launches the per-medium UDP RX/RTCP goroutines for
// every stream whose transport is UDP or multicast; TCP-interleaved
// streams need no extra goroutine since their frames already travel
// the control connection that readLoop drains.
func (c *control) startMediaTasks() {
	for _, st := range c.streams {
		if st.rtpConn == nil {
			continue
		}

		filterBySender := st.transport.Protocol != transport.ProtocolMulticast

		st.udpRX = newUDPRXTask(st.rtpConn, st.peerAddr, filterBySender, c.settings.ReceiveMTU,
			c.settings.Timeout, st.clockRate, st.rtpSink, st.receiver, c.log)
		st.udpRX.start()

		if st.rtcpConn != nil && c.settings.DoRTCP {
			st.udpRTCP = newUDPRTCPTask(st.rtcpConn, st.peerAddr, filterBySender, st.rtcpSink, st.receiver, c.log)
			st.udpRTCP.start()
		}
	}
}

func (c *control) readLoop() {
	defer close(c.inbound)
	for {
		v, err := c.rw.ReadInterleavedFrameOrResponse()
		if err != nil {
			select {
			case c.inbound <- inboundMsg{err: err}:
			default:
			}
			return
		}
		switch t := v.(type) {
		case *base.InterleavedFrame:
			c.inbound <- inboundMsg{frame: t}
		case *base.Response:
			c.inbound <- inboundMsg{resp: t}
		}
	}
}

func (c *control) handleInbound(msg inboundMsg) error {
	if msg.err != nil {
		if c.state == stateClosing || c.state == stateClosed {
			return nil
		}
		return c.fatalf(liberrors.KindNetworkTransient, "read", msg.err)
	}

	if msg.frame != nil {
		c.routeFrame(msg.frame)
		return nil
	}

	if msg.resp != nil {
		c.session.ResetActivity()
		c.log.Debug().Msg("unsolicited response outside a tracked exchange, dropping")
	}
	return nil
}

// awaitResponse blocks until a response whose CSeq matches cseq
// arrives, routing any interleaved frame seen along the way and
// absorbing (but otherwise ignoring) any unrelated response. It is the
// inner counterpart to handleInbound, used whenever the control task
// itself has an outstanding request: the two never run concurrently,
// since both are driven from this same goroutine.
func (c *control) awaitResponse(cseq int, timeout time.Duration) (*base.Response, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case msg, ok := <-c.inbound:
			if !ok {
				return nil, liberrors.ErrClientTerminated{}
			}
			if msg.err != nil {
				return nil, msg.err
			}
			if msg.frame != nil {
				c.routeFrame(msg.frame)
				continue
			}

			c.session.ResetActivity()
			if parseCSeq(msg.resp.Header["CSeq"]) == cseq {
				return msg.resp, nil
			}
			_ = c.req.applyResponse(msg.resp)

		case <-deadline.C:
			return nil, fmt.Errorf("timed out waiting for response")
		}
	}
}

func (c *control) handleCommand(cmd command) (done bool, err error) {
	switch v := cmd.(type) {
	case playCommand:
		v.result <- c.doPlay(nil)
		return false, nil

	case seekCommand:
		rng := encodeRangeValue(c.settings.SeekFormatPref, v.position, time.Now())
		if v.flags.Flush {
			c.notifyStreams(Event{Kind: EventFlushStart})
		}
		err := c.doPlay(&rng)
		if v.flags.Flush {
			c.notifyStreams(Event{Kind: EventFlushStop, ResetTime: true})
		}
		if err == nil {
			c.notifyStreams(Event{Kind: EventSegment, Start: v.position, Position: v.position})
		}
		v.result <- err
		return false, nil

	case teardownCommand:
		c.doTeardown()
		if v.ack != nil {
			close(v.ack)
		}
		return true, nil

	case dataCommand:
		if err := c.rw.WriteInterleavedFrame(v.frame); err != nil {
			c.log.Warn().Err(err).Msg("failed to write outbound interleaved frame")
		}
		return false, nil

	case reconnectCommand:
		return true, liberrors.ErrClientTerminated{}
	}
	return false, nil
}

func (c *control) doPlay(rawRange *string) error {
	var req *base.Request
	if rawRange != nil {
		req = buildPlayWithRawRange(c.url, *rawRange)
	} else {
		req = buildPlay(c.url, nil)
	}

	cseq, err := c.req.write(req)
	if err != nil {
		return c.fatalf(liberrors.KindNetworkTransient, "play", err)
	}

	res, err := c.awaitResponse(cseq, c.settings.Timeout)
	if err != nil {
		return c.fatalf(liberrors.KindNetworkTransient, "play", err)
	}
	if err := c.req.applyResponse(res); err != nil {
		return err
	}
	if err := checkStatus(res); err != nil {
		c.state = stateClosing
		return c.fatalf(classifyStatus(res.StatusCode), "play", err)
	}

	if rv, ok := res.Header["RTP-Info"]; ok {
		var info headers.RTPInfo
		if err := info.Read(rv); err == nil {
			c.backfillRTPInfo(info)
		}
	}

	if c.state != statePlaying {
		c.startMediaTasks()
	}
	c.state = statePlaying
	return nil
}

func (c *control) doTeardown() {
	c.state = stateClosing
	cseq, err := c.req.write(buildTeardown(c.url))
	if err == nil {
		_, _ = c.awaitResponse(cseq, 500*time.Millisecond)
	}
	c.notifyStreams(Event{Kind: EventEndOfStream})
	c.closeStreams()
	c.state = stateClosed
}

func (c *control) tickKeepAlive() error {
	if c.state != statePlaying && c.state != stateReady {
		return nil
	}
	if c.session.IsTimedOut() {
		return c.fatalf(liberrors.KindNetworkTransient, "keepalive", liberrors.ErrClientTCPTimeout{})
	}
	if !c.session.NeedsKeepalive() {
		return nil
	}

	req := c.session.BuildKeepAlive(c.url)
	cseq, err := c.req.write(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("keepalive probe failed to send")
		return nil
	}

	res, err := c.awaitResponse(cseq, 5*time.Second)
	if err != nil {
		c.log.Warn().Err(err).Msg("keepalive probe did not complete")
		if c.session.IsTimedOut() {
			return c.fatalf(liberrors.KindNetworkTransient, "keepalive", err)
		}
		return nil
	}

	if err := checkStatus(res); err != nil {
		if res.StatusCode == base.StatusMethodNotAllowed || res.StatusCode == base.StatusNotImplemented {
			c.session.NoteGetParameterRejected()
		}
		c.log.Warn().Err(err).Msg("keepalive probe rejected")
		return nil
	}

	return c.req.applyResponse(res)
}

func (c *control) routeFrame(frame *base.InterleavedFrame) {
	for _, st := range c.streams {
		ch := st.transport.Channels
		switch frame.Channel {
		case ch[0]:
			c.dispatchRTP(st, frame.Payload)
			return
		case ch[1]:
			c.dispatchRTCP(st, frame.Payload)
			return
		}
	}
	c.log.Warn().Int("channel", frame.Channel).Msg("interleaved frame on unknown channel, dropping")
}

func (c *control) dispatchRTP(st *stream, payload []byte) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(payload); err != nil {
		c.log.Debug().Err(err).Str("stream", st.name).Msg("dropping malformed RTP packet")
		return
	}
	if st.rtpDecoder == nil {
		st.rtpDecoder = rtptime.NewDecoder(st.clockRate)
	}
	if st.receiver != nil {
		st.receiver.ProcessPacket2(&pkt, time.Now(), false)
	}
	runningTime := st.rtpDecoder.Decode(pkt.Timestamp)
	if st.rtpSink != nil {
		sink, sent := st.rtpSink, pkt
		if st.sinkProc != nil {
			st.sinkProc.Push(func() error { sink.WriteRTP(&sent, runningTime); return nil })
		} else {
			sink.WriteRTP(&sent, runningTime)
		}
	}
}

func (c *control) dispatchRTCP(st *stream, payload []byte) {
	pkts, err := rtcp.Unmarshal(payload)
	if err != nil {
		c.log.Debug().Err(err).Str("stream", st.name).Msg("dropping malformed RTCP packet")
		return
	}
	for _, pkt := range pkts {
		if sr, ok := pkt.(*rtcp.SenderReport); ok && st.receiver != nil {
			st.receiver.ProcessSenderReport(sr, time.Now())
		}
		if st.rtcpSink != nil {
			sink, sent := st.rtcpSink, pkt
			if st.sinkProc != nil {
				st.sinkProc.Push(func() error { sink.WriteRTCP(sent, 0); return nil })
			} else {
				sink.WriteRTCP(sent, 0)
			}
		}
	}
}

func (c *control) backfillRTPInfo(info headers.RTPInfo) {
	for _, entry := range info {
		for _, st := range c.streams {
			if entry.URL == st.setupURL {
				st.seqnumBase = entry.SequenceNumber
				st.clockBase = entry.Timestamp
			}
		}
	}
}

func (c *control) notifyStreams(ev Event) {
	for _, st := range c.streams {
		if st.eventSink != nil {
			st.eventSink.WriteEvent(ev)
		}
	}
}

func (c *control) closeStreams() {
	for _, st := range c.streams {
		if st.udpRX != nil {
			st.udpRX.stop()
		}
		if st.udpRTCP != nil {
			st.udpRTCP.stop()
		}
		if st.rtpConn != nil {
			st.rtpConn.Close()
		}
		if st.rtcpConn != nil {
			st.rtcpConn.Close()
		}
		if st.receiver != nil {
			st.receiver.Close()
		}
		if st.sinkProc != nil {
			st.sinkProc.Close()
		}
	}
}

func (c *control) transportLabel() string {
	if len(c.streams) > 0 {
		return c.streams[0].transport.Protocol.String()
	}
	return "none"
}

func (c *control) fatalf(kind liberrors.Kind, op string, cause error) error {
	fe := liberrors.FatalError{
		Kind:      kind,
		URL:       c.url.String(),
		Operation: op,
		Transport: c.transportLabel(),
		Err:       cause,
	}
	if kind == liberrors.KindProtocolIntervention || kind == liberrors.KindNetworkIntervention {
		return &liberrors.InterventionError{FatalError: fe, Advice: interventionAdvice(kind, c.url)}
	}
	return &fe
}

func interventionAdvice(kind liberrors.Kind, u *base.URL) string {
	if kind == liberrors.KindNetworkIntervention {
		return "NAT traversal failed; retry over rtspt:// to fall back to TCP-interleaved transport"
	}
	if u.User != nil {
		return "server rejected the request; credentials parsed from the URL are never sent automatically"
	}
	return "server responded 401/403; this client never sends credentials, so authentication has to be disabled"
}

func classifyStatus(code base.StatusCode) liberrors.Kind {
	switch {
	case code == base.StatusUnauthorized || code == base.StatusForbidden:
		return liberrors.KindProtocolIntervention
	case code >= 500:
		return liberrors.KindProtocolRetryableWithBackoff
	default:
		return liberrors.KindProtocolPermanent
	}
}

func publicSupports(v base.HeaderValue, methods ...base.Method) bool {
	if len(v) == 0 {
		return false
	}
	found := make(map[base.Method]bool)
	for _, part := range v {
		for _, name := range strings.Split(part, ",") {
			found[base.Method(strings.TrimSpace(name))] = true
		}
	}
	for _, m := range methods {
		if !found[m] {
			return false
		}
	}
	return true
}

func resolveContentBase(requestURL *base.URL, header base.Header) *base.URL {
	for _, key := range []string{"Content-Base", "Content-Location"} {
		if v, ok := header[key]; ok && len(v) == 1 {
			if u, err := base.ParseURL(strings.TrimSpace(v[0])); err == nil {
				return u
			}
		}
	}
	return requestURL
}

func sdpIsMulticast(sd *sdp.SessionDescription) bool {
	if sd.ConnectionInformation == nil || sd.ConnectionInformation.Address == nil {
		return false
	}
	ip := net.ParseIP(sd.ConnectionInformation.Address.Address)
	return ip != nil && ip.IsMulticast()
}

func clockRateFromCaps(caps map[string]string) int {
	const defaultClockRate = 90000

	raw, ok := caps["a-rtpmap"]
	if !ok {
		return defaultClockRate
	}
	line := strings.Split(raw, "\n")[0]
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return defaultClockRate
	}
	codecParts := strings.Split(fields[1], "/")
	if len(codecParts) < 2 {
		return defaultClockRate
	}
	rate, err := strconv.Atoi(codecParts[1])
	if err != nil || rate <= 0 {
		return defaultClockRate
	}
	return rate
}

func parseCSeq(v base.HeaderValue) int {
	if len(v) != 1 {
		return -1
	}
	n, _ := strconv.Atoi(strings.TrimSpace(v[0]))
	return n
}

func closeOfferConns(offers []transport.Offer) {
	for _, o := range offers {
		if o.RTPConn != nil {
			o.RTPConn.Close()
		}
		if o.RTCPConn != nil {
			o.RTCPConn.Close()
		}
	}
}
