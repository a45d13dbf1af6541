// Package transport builds RTSP SETUP Transport offers and interprets
// the server's response against them.
package transport

import (
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/mediabridge/rtspclientsrc/pkg/headers"
)

// Protocol is one transport a SETUP request can offer.
type Protocol int

const (
	// ProtocolUDP is unicast UDP, RTP and RTCP on consecutive ports.
	ProtocolUDP Protocol = iota

	// ProtocolMulticast is UDP delivered to a server-chosen multicast
	// group.
	ProtocolMulticast

	// ProtocolTCP interleaves RTP/RTCP on the RTSP control connection.
	ProtocolTCP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "udp"
	case ProtocolMulticast:
		return "multicast"
	case ProtocolTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// maxPortBindAttempts bounds how many consecutive port pairs a unicast
// UDP offer tries before giving up.
const maxPortBindAttempts = 100

// ImpliedProtocols returns the protocols an SDP description's connection
// information permits: multicast sessions only ever offer multicast;
// unicast sessions may offer either UDP or TCP.
func ImpliedProtocols(sdpMulticast bool) []Protocol {
	if sdpMulticast {
		return []Protocol{ProtocolMulticast}
	}
	return []Protocol{ProtocolUDP, ProtocolTCP}
}

// Intersect returns the protocols in userPrefs, in user preference
// order, that also appear in implied.
func Intersect(userPrefs, implied []Protocol) []Protocol {
	allowed := make(map[Protocol]bool, len(implied))
	for _, p := range implied {
		allowed[p] = true
	}

	var out []Protocol
	for _, p := range userPrefs {
		if allowed[p] {
			out = append(out, p)
		}
	}
	return out
}

// Offer pairs one Transport-header candidate with the local UDP sockets
// it already bound, if any. Multicast and TCP offers bind nothing until
// the response is interpreted.
type Offer struct {
	Protocol  Protocol
	Transport headers.Transport
	RTPConn   *net.UDPConn
	RTCPConn  *net.UDPConn
}

// Negotiator builds SETUP Transport offers for one RTSP session and
// interprets the server's chosen Transport in response. One Negotiator
// is used for the whole session, since TCP interleaved channel numbers
// are a per-session monotonic counter shared across every medium's
// SETUP.
type Negotiator struct {
	// PortStart is the first local port a unicast UDP offer tries to
	// bind. Zero probes an ephemeral port once and starts from there.
	PortStart int

	// ListenPacket opens a UDP socket; overridable in tests.
	ListenPacket func(network, address string) (net.PacketConn, error)

	channel int
	log     zerolog.Logger
}

// NewNegotiator returns a Negotiator backed by real UDP sockets.
func NewNegotiator(log zerolog.Logger) *Negotiator {
	return &Negotiator{ListenPacket: net.ListenPacket, log: log}
}

// BuildOffers constructs one Transport-header candidate per protocol in
// protocols, in order, binding local UDP ports for any unicast UDP
// candidate along the way. The caller sends all of them in a single
// SETUP request's Transport header via Offers.Write().
func (n *Negotiator) BuildOffers(protocols []Protocol) ([]Offer, error) {
	mode := headers.TransportModePlay
	offers := make([]Offer, 0, len(protocols))

	for _, p := range protocols {
		switch p {
		case ProtocolMulticast:
			delivery := headers.TransportDeliveryMulticast
			offers = append(offers, Offer{
				Protocol: p,
				Transport: headers.Transport{
					Protocol: headers.TransportProtocolUDP,
					Delivery: &delivery,
					Mode:     &mode,
				},
			})

		case ProtocolUDP:
			rtpConn, rtcpConn, err := n.bindConsecutivePorts()
			if err != nil {
				return nil, err
			}

			delivery := headers.TransportDeliveryUnicast
			clientPorts := [2]int{
				rtpConn.LocalAddr().(*net.UDPAddr).Port,
				rtcpConn.LocalAddr().(*net.UDPAddr).Port,
			}
			offers = append(offers, Offer{
				Protocol: p,
				Transport: headers.Transport{
					Protocol:    headers.TransportProtocolUDP,
					Delivery:    &delivery,
					ClientPorts: &clientPorts,
					Mode:        &mode,
				},
				RTPConn:  rtpConn,
				RTCPConn: rtcpConn,
			})

		case ProtocolTCP:
			delivery := headers.TransportDeliveryUnicast
			rtpChannel := n.channel
			n.channel += 2
			interleaved := [2]int{rtpChannel, rtpChannel + 1}
			offers = append(offers, Offer{
				Protocol: p,
				Transport: headers.Transport{
					Protocol:       headers.TransportProtocolTCP,
					Delivery:       &delivery,
					InterleavedIDs: &interleaved,
					Mode:           &mode,
				},
			})
		}
	}

	return offers, nil
}

// Offers converts a slice of Offer into the Transports value a SETUP
// request's Transport header carries.
func Offers(offers []Offer) headers.Transports {
	ts := make(headers.Transports, len(offers))
	for i, o := range offers {
		ts[i] = o.Transport
	}
	return ts
}

// Interpret validates a SETUP response's Transport header against the
// Offer that produced it, logging through the Negotiator's configured
// logger for the relaxations spec mandates tolerating.
func (n *Negotiator) Interpret(offer Offer, resp headers.Transport, sdpSource net.IP) (Result, error) {
	return Interpret(offer, resp, sdpSource, func(msg string) {
		n.log.Warn().Msg(msg)
	})
}

// bindConsecutivePorts binds an even RTP port and the following odd
// RTCP port. When PortStart is zero it probes one ephemeral port to
// learn a starting point, then proceeds deterministically: on a bind
// failure it advances by one port pair and retries, up to
// maxPortBindAttempts times, after which it fails fatally.
func (n *Negotiator) bindConsecutivePorts() (*net.UDPConn, *net.UDPConn, error) {
	start := n.PortStart
	if start == 0 {
		probe, err := n.ListenPacket("udp", ":0")
		if err != nil {
			return nil, nil, fmt.Errorf("transport: unable to probe an ephemeral port: %w", err)
		}
		start = probe.LocalAddr().(*net.UDPAddr).Port
		probe.Close() //nolint:errcheck
	}
	if start%2 != 0 {
		start++
	}

	for attempt := 0; attempt < maxPortBindAttempts; attempt++ {
		rtpPort := start + attempt*2
		rtcpPort := rtpPort + 1

		rtpPC, err := n.ListenPacket("udp", ":"+strconv.Itoa(rtpPort))
		if err != nil {
			continue
		}
		rtpConn, ok := rtpPC.(*net.UDPConn)
		if !ok {
			rtpPC.Close() //nolint:errcheck
			continue
		}

		rtcpPC, err := n.ListenPacket("udp", ":"+strconv.Itoa(rtcpPort))
		if err != nil {
			rtpConn.Close() //nolint:errcheck
			continue
		}
		rtcpConn, ok := rtcpPC.(*net.UDPConn)
		if !ok {
			rtpConn.Close()  //nolint:errcheck
			rtcpPC.Close()   //nolint:errcheck
			continue
		}

		return rtpConn, rtcpConn, nil
	}

	return nil, nil, fmt.Errorf("transport: failed to bind a UDP port pair starting at %d after %d attempts",
		start, maxPortBindAttempts)
}
