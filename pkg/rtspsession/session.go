// Package rtspsession tracks one RTSP session's id, negotiated timeout,
// and last activity, and decides when a keep-alive probe is due.
package rtspsession

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/mediabridge/rtspclientsrc/pkg/base"
	"github.com/mediabridge/rtspclientsrc/pkg/headers"
)

// DefaultTimeout is used until a Session response header specifies one.
const DefaultTimeout = 60 * time.Second

// Manager tracks session state for the control task. ResetActivity is
// called by whichever goroutine reads the control channel; NeedsKeepalive
// and IsTimedOut are polled by the control task's keepalive timer, so
// last-activity is stored as a Unix-nanosecond timestamp and accessed
// atomically rather than guarded by a mutex, the usual shape for a
// cross-goroutine last-frame timestamp.
type Manager struct {
	id      string
	timeout time.Duration

	lastActivityNano int64

	// useGetParameter tracks whether the server has advertised
	// GET_PARAMETER support via an OPTIONS response's Public header, or
	// has since rejected a GET_PARAMETER probe at runtime.
	useGetParameter int32
}

// NewManager returns a Manager with no session id yet, DefaultTimeout,
// and activity reset to now.
func NewManager() *Manager {
	m := &Manager{timeout: DefaultTimeout}
	m.ResetActivity()
	return m
}

// ApplySession absorbs a Session response header. The session id always
// replaces the stored one; the timeout only replaces DefaultTimeout (or
// a previously negotiated value) when the server actually specifies a
// positive one.
func (m *Manager) ApplySession(h headers.Session) {
	m.id = h.Session
	if h.Timeout != nil && *h.Timeout > 0 {
		m.timeout = time.Duration(*h.Timeout) * time.Second
	}
}

// ID returns the current session id, or "" before the first SETUP
// response.
func (m *Manager) ID() string {
	return m.id
}

// Timeout returns the negotiated session timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// ResetActivity marks the session alive as of now. Call on every
// received response and every interleaved data frame.
func (m *Manager) ResetActivity() {
	atomic.StoreInt64(&m.lastActivityNano, time.Now().UnixNano())
}

func (m *Manager) sinceActivity() time.Duration {
	last := atomic.LoadInt64(&m.lastActivityNano)
	return time.Since(time.Unix(0, last))
}

// NeedsKeepalive reports whether half the session timeout has elapsed
// since the last activity, meaning a keep-alive probe should be sent.
func (m *Manager) NeedsKeepalive() bool {
	return m.sinceActivity() >= m.timeout/2
}

// IsTimedOut reports whether the full session timeout has elapsed since
// the last activity with no keep-alive response arriving in time.
func (m *Manager) IsTimedOut() bool {
	return m.sinceActivity() > m.timeout
}

// NoteOptionsSupport inspects an OPTIONS response's Public header and
// remembers whether the server advertises GET_PARAMETER, so later
// keep-alive probes prefer it over OPTIONS — some servers (the VLC
// built-in RTSP server among them) require GET_PARAMETER specifically.
func (m *Manager) NoteOptionsSupport(public base.HeaderValue) {
	supported := false
	if len(public) == 1 {
		for _, name := range strings.Split(public[0], ",") {
			if base.Method(strings.Trim(name, " ")) == base.GetParameter {
				supported = true
				break
			}
		}
	}
	m.storeUseGetParameter(supported)
}

// NoteGetParameterRejected falls the probe method back to OPTIONS after
// a server rejects a GET_PARAMETER keep-alive (status 405 or 501),
// despite having earlier advertised support for it.
func (m *Manager) NoteGetParameterRejected() {
	m.storeUseGetParameter(false)
}

func (m *Manager) storeUseGetParameter(v bool) {
	var i int32
	if v {
		i = 1
	}
	atomic.StoreInt32(&m.useGetParameter, i)
}

// KeepAliveMethod returns the RTSP method the next keep-alive probe
// should use.
func (m *Manager) KeepAliveMethod() base.Method {
	if atomic.LoadInt32(&m.useGetParameter) == 1 {
		return base.GetParameter
	}
	return base.Options
}

// BuildKeepAlive constructs an empty keep-alive request against url,
// carrying the current Session header once one has been established.
func (m *Manager) BuildKeepAlive(url *base.URL) *base.Request {
	req := &base.Request{
		Method: m.KeepAliveMethod(),
		URL:    url,
		Header: base.Header{},
	}
	if m.id != "" {
		req.Header["Session"] = headers.Session{Session: m.id}.Write()
	}
	return req
}
