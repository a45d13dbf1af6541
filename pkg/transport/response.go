package transport

import (
	"fmt"
	"net"

	"github.com/mediabridge/rtspclientsrc/pkg/headers"
)

// Result is the outcome of interpreting a SETUP response's Transport
// header against the Offer that produced it.
type Result struct {
	Protocol Protocol

	// ClientPorts are the locally bound ports actually in effect. For
	// UDP unicast this always mirrors the ports Offer bound, even if the
	// server's response named different ones.
	ClientPorts [2]int

	// ServerPorts are the server's RTP/RTCP ports, for UDP unicast and
	// multicast.
	ServerPorts [2]int

	// Channels are the TCP interleaved channel numbers in effect,
	// authoritative from the server when present.
	Channels [2]int

	// Source is the peer address data will arrive from.
	Source net.IP

	// Destination is the multicast group address, multicast only.
	Destination net.IP

	// TTL is the multicast TTL, multicast only.
	TTL uint
}

// Interpret validates resp against the Offer that produced it and
// fills in defaults the server omitted. sdpSource is the SDP
// connection-line address, used to populate Source when the Transport
// response doesn't carry one. Log receives a caller-provided reporter
// for the relaxations spec-mandates tolerating (a server-side
// client_port rewrite, a TCP channel mismatch) rather than treating
// them as fatal.
func Interpret(offer Offer, resp headers.Transport, sdpSource net.IP, log func(string)) (Result, error) {
	switch offer.Protocol {
	case ProtocolUDP:
		return interpretUDP(offer, resp, sdpSource, log)
	case ProtocolMulticast:
		return interpretMulticast(resp)
	case ProtocolTCP:
		return interpretTCP(offer, resp, log)
	default:
		return Result{}, fmt.Errorf("transport: unknown offered protocol %v", offer.Protocol)
	}
}

func interpretUDP(offer Offer, resp headers.Transport, sdpSource net.IP, log func(string)) (Result, error) {
	res := Result{Protocol: ProtocolUDP}

	boundRTP := offer.RTPConn.LocalAddr().(*net.UDPAddr).Port
	boundRTCP := offer.RTCPConn.LocalAddr().(*net.UDPAddr).Port
	res.ClientPorts = [2]int{boundRTP, boundRTCP}

	// Servers must not re-assign the client's port; if one does, we
	// tolerate the mistake by logging it and keeping the ports we
	// actually bound, rather than failing the SETUP.
	if resp.ClientPorts != nil && *resp.ClientPorts != res.ClientPorts {
		log(fmt.Sprintf("transport: server rewrote client_port to %v, ignoring and keeping bound ports %v",
			*resp.ClientPorts, res.ClientPorts))
	}

	if resp.ServerPorts == nil {
		return Result{}, fmt.Errorf("transport: SETUP response missing server_port for UDP unicast")
	}
	res.ServerPorts = *resp.ServerPorts

	if resp.Source != nil {
		res.Source = *resp.Source
	} else {
		res.Source = sdpSource
	}

	return res, nil
}

func interpretMulticast(resp headers.Transport) (Result, error) {
	res := Result{Protocol: ProtocolMulticast}

	if resp.Ports == nil {
		return Result{}, fmt.Errorf("transport: SETUP response missing port for multicast")
	}
	res.ServerPorts = *resp.Ports

	if resp.Destination == nil {
		return Result{}, fmt.Errorf("transport: SETUP response missing destination for multicast")
	}
	res.Destination = *resp.Destination

	if resp.TTL != nil {
		res.TTL = *resp.TTL
	}

	return res, nil
}

func interpretTCP(offer Offer, resp headers.Transport, log func(string)) (Result, error) {
	res := Result{Protocol: ProtocolTCP}
	offered := *offer.Transport.InterleavedIDs

	if resp.InterleavedIDs == nil {
		res.Channels = offered
		return res, nil
	}

	if *resp.InterleavedIDs != offered {
		log(fmt.Sprintf("transport: server returned interleaved channels %v, offered %v; accepting server's",
			*resp.InterleavedIDs, offered))
	}
	res.Channels = *resp.InterleavedIDs

	return res, nil
}
