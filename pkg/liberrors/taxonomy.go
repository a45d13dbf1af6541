package liberrors

import "fmt"

// Kind is one entry of the fatal-error taxonomy: it tells a caller how
// an error was handled before it reached them, not what Go type it is.
type Kind int

const (
	// KindNetworkTransient covers connection timeout/reset/EOF, retried
	// per the configured strategy.
	KindNetworkTransient Kind = iota

	// KindNetworkRetryableWithBackoff covers connection-refused, DNS
	// failure and proxy/tunnel failure, retried with backoff.
	KindNetworkRetryableWithBackoff

	// KindNetworkPermanent covers a TLS handshake failure.
	KindNetworkPermanent

	// KindNetworkIntervention covers a NAT traversal failure; it
	// suggests a transport fallback to the operator.
	KindNetworkIntervention

	// KindProtocolTransient covers a malformed response line or partial
	// headers, good for one retry.
	KindProtocolTransient

	// KindProtocolRetryableWithBackoff covers an RTSP 5xx response.
	KindProtocolRetryableWithBackoff

	// KindProtocolPermanent covers an RTSP 4xx response other than
	// 401/403, a missing required header, method-not-allowed, or an
	// invalid URL.
	KindProtocolPermanent

	// KindProtocolIntervention covers 401/403 and transport negotiation
	// failure.
	KindProtocolIntervention

	// KindMediaTransient covers stream-sync loss, buffer overflow, and
	// RTCP/RTP parse blips. It never reaches a caller as a Go error;
	// the RX/RTCP tasks log and continue. The kind still exists so
	// counters and log lines can name it consistently.
	KindMediaTransient

	// KindMediaPermanent covers an unsupported codec or SDP shape.
	KindMediaPermanent

	// KindConfigurationPermanent covers an invalid or missing parameter,
	// surfaced before Start.
	KindConfigurationPermanent
)

// String returns the taxonomy entry name, as it appears in log lines
// and fatal-error messages.
func (k Kind) String() string {
	switch k {
	case KindNetworkTransient:
		return "network-transient"
	case KindNetworkRetryableWithBackoff:
		return "network-retryable"
	case KindNetworkPermanent:
		return "network-permanent"
	case KindNetworkIntervention:
		return "network-intervention"
	case KindProtocolTransient:
		return "protocol-transient"
	case KindProtocolRetryableWithBackoff:
		return "protocol-retryable"
	case KindProtocolPermanent:
		return "protocol-permanent"
	case KindProtocolIntervention:
		return "protocol-intervention"
	case KindMediaTransient:
		return "media-transient"
	case KindMediaPermanent:
		return "media-permanent"
	case KindConfigurationPermanent:
		return "configuration-permanent"
	default:
		return "unknown"
	}
}

// Retryable reports whether this kind is ever fed to the retry
// subsystem rather than surfaced immediately.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetworkTransient, KindNetworkRetryableWithBackoff, KindProtocolTransient, KindProtocolRetryableWithBackoff:
		return true
	default:
		return false
	}
}

// FatalError is the single structured error a run surfaces on exit. It
// carries the context the error-handling design requires: the URL
// operated on, the operation that failed, how many retries were spent,
// and the transport in effect at the time.
type FatalError struct {
	Kind       Kind
	URL        string
	Operation  string
	RetryCount int
	Transport  string
	Err        error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s failed for %s (transport=%s, retries=%d): %v",
		e.Kind, e.Operation, e.URL, e.Transport, e.RetryCount, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// InterventionError is a FatalError of one of the two Intervention
// kinds, carrying an additional human-readable Advice string telling
// the operator what to do about it (switch transport, supply
// credentials, ...).
type InterventionError struct {
	FatalError
	Advice string
}

// Error implements the error interface.
func (e *InterventionError) Error() string {
	return e.FatalError.Error() + ": " + e.Advice
}
