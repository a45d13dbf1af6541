package rtspclientsrc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediabridge/rtspclientsrc/pkg/base"
	"github.com/mediabridge/rtspclientsrc/pkg/liberrors"
	"github.com/mediabridge/rtspclientsrc/pkg/transport"
)

// defaultRTSPPort is used when the URL names no explicit port.
const defaultRTSPPort = "554"

// Client is the public facade over the control task: construct one
// with NewClient, Configure it, Start it, then drive playback with
// Play/Seek/Stop. One Client serves one RTSP URL for its whole
// lifetime; recovering from a fatal error means constructing a new
// one, typically in response to a reconnectCommand-style retry loop
// run by the caller.
type Client struct {
	// Log receives structured diagnostics from every collaborator the
	// control task owns. The zero value discards everything.
	Log zerolog.Logger

	mu        sync.Mutex
	settings  Settings
	url       *base.URL
	protocols []transport.Protocol
	sinks     map[int]StreamSinks

	started bool
	cmdCh   chan command
	doneCh  chan struct{}
	runErr  error
}

// NewClient returns a Client with DefaultSettings applied. Call
// Configure to override them before Start.
func NewClient() *Client {
	return &Client{settings: DefaultSettings()}
}

// Configure validates settings and constrains Protocols to what the
// Location URL's scheme permits: rtspu limits negotiation to
// ProtocolUDP/ProtocolMulticast, rtspt to ProtocolTCP, rtsp and rtsps
// leave the configured set untouched. Must be called before Start.
func (c *Client) Configure(settings Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return liberrors.ErrClientInvalidState{}
	}

	u, err := base.ParseURL(settings.Location)
	if err != nil {
		return c.configError(settings.Location, err)
	}

	protocols := settings.Protocols
	if len(protocols) == 0 {
		protocols = []transport.Protocol{transport.ProtocolUDP, transport.ProtocolMulticast, transport.ProtocolTCP}
	}

	switch u.Scheme {
	case "rtspu":
		protocols = transport.Intersect(protocols, []transport.Protocol{transport.ProtocolUDP, transport.ProtocolMulticast})
	case "rtspt":
		protocols = transport.Intersect(protocols, []transport.Protocol{transport.ProtocolTCP})
	}
	if len(protocols) == 0 {
		return c.configError(settings.Location, fmt.Errorf("no transport in Protocols is compatible with scheme %q", u.Scheme))
	}

	c.settings = settings
	c.url = u
	c.protocols = protocols
	return nil
}

func (c *Client) configError(urlStr string, cause error) error {
	return &liberrors.FatalError{
		Kind:      liberrors.KindConfigurationPermanent,
		URL:       urlStr,
		Operation: "configure",
		Err:       cause,
	}
}

// SetStreamSinks registers the collaborators that medium index should
// deliver its RTP, RTCP and Event traffic to. Indices follow the order
// DESCRIBE lists its media in. Must be called before Start; sinks
// bound after SETUP has already run for that medium are never applied.
func (c *Client) SetStreamSinks(index int, sinks StreamSinks) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sinks == nil {
		c.sinks = make(map[int]StreamSinks)
	}
	c.sinks[index] = sinks
}

// Start dials the server, races and retries per Settings.Racing and
// Settings.Retry until a connection succeeds, then runs OPTIONS,
// DESCRIBE and SETUP for every medium. It returns once that bootstrap
// completes (successfully or not); the control task keeps running in
// the background afterward, reachable through Play/Seek/Stop, until
// Stop is called or a fatal error ends it on its own.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return liberrors.ErrClientInvalidState{}
	}
	if c.url == nil {
		c.mu.Unlock()
		return fmt.Errorf("rtspclientsrc: Configure must be called before Start")
	}
	c.started = true
	settings := c.settings
	url := c.url
	protocols := c.protocols
	sinks := c.sinks
	c.mu.Unlock()

	addr := net.JoinHostPort(url.Hostname(), effectivePort(url))

	d := newDialer(settings, c.Log, url.String())
	netConn, err := d.connect(ctx, addr, url.String())
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return err
	}

	cmdCh := make(chan command, 1)
	doneCh := make(chan struct{})
	bootErr := make(chan error, 1)

	ctrl := newControl(settings, protocols, url, netConn, sinks, cmdCh, c.Log)
	ctrl.bootErr = bootErr

	go func() {
		runErr := ctrl.run()
		netConn.Close()
		c.mu.Lock()
		c.runErr = runErr
		c.mu.Unlock()
		close(doneCh)
	}()

	select {
	case err := <-bootErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.cmdCh = cmdCh
	c.doneCh = doneCh
	c.mu.Unlock()
	return nil
}

func effectivePort(url *base.URL) string {
	if p := url.Port(); p != "" {
		return p
	}
	return defaultRTSPPort
}

// Play starts or resumes playback of every SETUP'd medium from its
// current position, without a Range header.
func (c *Client) Play() error {
	result := make(chan error, 1)
	if err := c.send(playCommand{result: result}); err != nil {
		return err
	}
	return c.await(result)
}

// Seek re-issues PLAY with a Range header encoding position in the
// unit Settings.SeekFormatPref names, optionally flushing downstream
// buffers around it.
func (c *Client) Seek(position time.Duration, flags SeekFlags) error {
	result := make(chan error, 1)
	if err := c.send(seekCommand{position: position, flags: flags, result: result}); err != nil {
		return err
	}
	return c.await(result)
}

// Stop tears the session down: it sends TEARDOWN, waits briefly for
// the response, closes every stream's sockets, and blocks until the
// control task has fully exited. Safe to call even if the control
// task has already ended on its own.
func (c *Client) Stop() error {
	c.mu.Lock()
	cmdCh := c.cmdCh
	doneCh := c.doneCh
	c.mu.Unlock()

	if cmdCh == nil {
		return nil
	}

	ack := make(chan struct{})
	select {
	case cmdCh <- teardownCommand{ack: ack}:
		<-ack
	case <-doneCh:
	}

	<-doneCh

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

func (c *Client) send(cmd command) error {
	c.mu.Lock()
	cmdCh := c.cmdCh
	doneCh := c.doneCh
	c.mu.Unlock()

	if cmdCh == nil {
		return liberrors.ErrClientInvalidState{}
	}

	select {
	case cmdCh <- cmd:
		return nil
	case <-doneCh:
		return liberrors.ErrClientTerminated{}
	}
}

func (c *Client) await(result chan error) error {
	c.mu.Lock()
	doneCh := c.doneCh
	c.mu.Unlock()

	select {
	case err := <-result:
		return err
	case <-doneCh:
		return liberrors.ErrClientTerminated{}
	}
}
