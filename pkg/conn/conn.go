// Package conn contains a RTSP connection implementation.
package conn

import (
	"bufio"
	"bytes"
	"io"

	"github.com/mediabridge/rtspclientsrc/pkg/base"
)

const (
	readBufferSize = 4096

	// maxMessageSize bounds interleaved-frame payloads read off the
	// wire; RTSP message bodies are bounded by pkg/base's own limit of
	// the same size. A peer that advertises more is lying or broken,
	// not slow.
	maxMessageSize = 1 * 1024 * 1024
)

// Conn is a RTSP connection. It multiplexes RTSP requests/responses and
// interleaved binary frames on the same underlying stream, as required
// when transport is TCP-interleaved.
type Conn struct {
	w   io.Writer
	br  *bufio.Reader
	req base.Request
	res base.Response
	fr  base.InterleavedFrame
}

// NewConn allocates a Conn.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		w:  rw,
		br: bufio.NewReaderSize(rw, readBufferSize),
	}
}

// ReadRequest reads a Request.
func (c *Conn) ReadRequest() (*base.Request, error) {
	err := c.req.Read(c.br)
	return &c.req, err
}

// ReadResponse reads a Response.
func (c *Conn) ReadResponse() (*base.Response, error) {
	err := c.res.Read(c.br)
	return &c.res, err
}

// ReadInterleavedFrame reads a InterleavedFrame.
func (c *Conn) ReadInterleavedFrame() (*base.InterleavedFrame, error) {
	err := c.fr.Read(maxMessageSize, c.br)
	return &c.fr, err
}

// ReadInterleavedFrameOrRequest reads an InterleavedFrame or a Request,
// disambiguating by peeking the first byte of the stream: interleaved
// data frames start with the 0x24 magic byte, RTSP requests don't.
func (c *Conn) ReadInterleavedFrameOrRequest() (interface{}, error) {
	recv, err := base.ReadInterleavedFrameOrRequest(&c.fr, maxMessageSize, &c.req, c.br)
	if err != nil {
		return nil, err
	}
	return recv, nil
}

// ReadInterleavedFrameOrResponse reads an InterleavedFrame or a Response.
func (c *Conn) ReadInterleavedFrameOrResponse() (interface{}, error) {
	recv, err := base.ReadInterleavedFrameOrResponse(&c.fr, maxMessageSize, &c.res, c.br)
	if err != nil {
		return nil, err
	}
	return recv, nil
}

// ReadRequestIgnoreFrames reads a Request and ignores frames in between.
func (c *Conn) ReadRequestIgnoreFrames() (*base.Request, error) {
	for {
		recv, err := c.ReadInterleavedFrameOrRequest()
		if err != nil {
			return nil, err
		}

		if req, ok := recv.(*base.Request); ok {
			return req, nil
		}
	}
}

// ReadResponseIgnoreFrames reads a Response and ignores frames in between.
func (c *Conn) ReadResponseIgnoreFrames() (*base.Response, error) {
	for {
		recv, err := c.ReadInterleavedFrameOrResponse()
		if err != nil {
			return nil, err
		}

		if res, ok := recv.(*base.Response); ok {
			return res, nil
		}
	}
}

// WriteRequest writes a request as a single, whole write so a partial
// write never leaves the peer looking at half a message.
func (c *Conn) WriteRequest(req *base.Request) error {
	return c.writeWhole(func(bw *bufio.Writer) error {
		return req.Write(bw)
	})
}

// WriteResponse writes a response.
func (c *Conn) WriteResponse(res *base.Response) error {
	return c.writeWhole(func(bw *bufio.Writer) error {
		return res.Write(bw)
	})
}

// WriteInterleavedFrame writes an interleaved frame.
func (c *Conn) WriteInterleavedFrame(fr *base.InterleavedFrame) error {
	return c.writeWhole(func(bw *bufio.Writer) error {
		fr.Write(bw)
		return bw.Flush()
	})
}

// writeWhole buffers the full message in memory, then issues it as one
// underlying Write call, so a slow or interrupted peer can't observe a
// torn frame.
func (c *Conn) writeWhole(fn func(bw *bufio.Writer) error) error {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	if err := fn(bw); err != nil {
		return err
	}

	_, err := c.w.Write(buf.Bytes())
	return err
}
