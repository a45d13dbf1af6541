package rtspsession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediabridge/rtspclientsrc/pkg/base"
	"github.com/mediabridge/rtspclientsrc/pkg/headers"
)

func ptrUint(v uint) *uint { return &v }

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager()
	require.Equal(t, "", m.ID())
	require.Equal(t, DefaultTimeout, m.Timeout())
	require.False(t, m.NeedsKeepalive())
	require.False(t, m.IsTimedOut())
}

func TestApplySessionSetsIDAndTimeout(t *testing.T) {
	m := NewManager()
	m.ApplySession(headers.Session{Session: "abc123", Timeout: ptrUint(120)})
	require.Equal(t, "abc123", m.ID())
	require.Equal(t, 120*time.Second, m.Timeout())
}

func TestApplySessionIgnoresZeroTimeout(t *testing.T) {
	m := NewManager()
	m.ApplySession(headers.Session{Session: "abc123", Timeout: ptrUint(0)})
	require.Equal(t, DefaultTimeout, m.Timeout())
}

func TestApplySessionWithoutTimeoutKeepsPreviousValue(t *testing.T) {
	m := NewManager()
	m.ApplySession(headers.Session{Session: "abc123", Timeout: ptrUint(90)})
	m.ApplySession(headers.Session{Session: "abc123"})
	require.Equal(t, 90*time.Second, m.Timeout())
}

func TestNeedsKeepaliveTrueAfterHalfTimeout(t *testing.T) {
	m := NewManager()
	m.timeout = 20 * time.Millisecond

	require.False(t, m.NeedsKeepalive())
	time.Sleep(15 * time.Millisecond)
	require.True(t, m.NeedsKeepalive())
	require.False(t, m.IsTimedOut())
}

func TestIsTimedOutAfterFullTimeout(t *testing.T) {
	m := NewManager()
	m.timeout = 20 * time.Millisecond

	time.Sleep(25 * time.Millisecond)
	require.True(t, m.IsTimedOut())
}

func TestResetActivityClearsKeepaliveNeed(t *testing.T) {
	m := NewManager()
	m.timeout = 20 * time.Millisecond

	time.Sleep(15 * time.Millisecond)
	require.True(t, m.NeedsKeepalive())

	m.ResetActivity()
	require.False(t, m.NeedsKeepalive())
}

func TestNoteOptionsSupportDetectsGetParameter(t *testing.T) {
	m := NewManager()
	m.NoteOptionsSupport(base.HeaderValue{"OPTIONS, DESCRIBE, SETUP, PLAY, GET_PARAMETER, TEARDOWN"})
	require.Equal(t, base.GetParameter, m.KeepAliveMethod())
}

func TestNoteOptionsSupportAbsentFallsBackToOptions(t *testing.T) {
	m := NewManager()
	m.NoteOptionsSupport(base.HeaderValue{"OPTIONS, DESCRIBE, SETUP, PLAY, TEARDOWN"})
	require.Equal(t, base.Options, m.KeepAliveMethod())
}

func TestKeepAliveMethodDefaultsToOptions(t *testing.T) {
	m := NewManager()
	require.Equal(t, base.Options, m.KeepAliveMethod())
}

func TestNoteGetParameterRejectedFallsBack(t *testing.T) {
	m := NewManager()
	m.NoteOptionsSupport(base.HeaderValue{"GET_PARAMETER"})
	require.Equal(t, base.GetParameter, m.KeepAliveMethod())

	m.NoteGetParameterRejected()
	require.Equal(t, base.Options, m.KeepAliveMethod())
}

func TestBuildKeepAliveOmitsSessionHeaderBeforeSetup(t *testing.T) {
	m := NewManager()
	u, err := base.ParseURL("rtsp://example.com/stream")
	require.NoError(t, err)

	req := m.BuildKeepAlive(u)
	require.Equal(t, base.Options, req.Method)
	_, ok := req.Header["Session"]
	require.False(t, ok)
}

func TestBuildKeepAliveIncludesSessionHeaderAfterSetup(t *testing.T) {
	m := NewManager()
	m.ApplySession(headers.Session{Session: "abc123", Timeout: ptrUint(60)})
	m.NoteOptionsSupport(base.HeaderValue{"GET_PARAMETER"})

	u, err := base.ParseURL("rtsp://example.com/stream")
	require.NoError(t, err)

	req := m.BuildKeepAlive(u)
	require.Equal(t, base.GetParameter, req.Method)
	require.Equal(t, base.HeaderValue{"abc123"}, req.Header["Session"])
}
