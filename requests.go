package rtspclientsrc

import (
	"bytes"
	"fmt"

	"github.com/mediabridge/rtspclientsrc/pkg/base"
	"github.com/mediabridge/rtspclientsrc/pkg/conn"
	"github.com/mediabridge/rtspclientsrc/pkg/headers"
	"github.com/mediabridge/rtspclientsrc/pkg/liberrors"
	"github.com/mediabridge/rtspclientsrc/pkg/rtspsession"
)

// userAgent is the product token every request advertises.
const userAgent = "rtspclientsrc/1.0"

// requester owns the cseq counter and session-header bookkeeping for
// one control connection, and knows how to round-trip one request.
// It does not itself read frames off the wire between requests; the
// control task's select loop does that and routes responses back here.
type requester struct {
	conn    *conn.Conn
	session *rtspsession.Manager
	cseq    int
}

func newRequester(c *conn.Conn, sess *rtspsession.Manager) *requester {
	return &requester{conn: c, session: sess}
}

// write assembles and sends req, stamping CSeq, User-Agent and, once a
// session exists, the Session header, and returns the CSeq it used so
// the caller can match it against the eventual response. It does not
// wait for a response itself; the caller is expected to be the control
// task, which reads the matching response out of band.
func (r *requester) write(req *base.Request) (int, error) {
	r.cseq++

	if req.Header == nil {
		req.Header = base.Header{}
	}
	req.Header["CSeq"] = base.HeaderValue{fmt.Sprintf("%d", r.cseq)}
	req.Header["User-Agent"] = base.HeaderValue{userAgent}

	if id := r.session.ID(); id != "" {
		if _, ok := req.Header["Session"]; !ok {
			req.Header["Session"] = headers.Session{Session: id}.Write()
		}
	}

	if err := r.conn.WriteRequest(req); err != nil {
		return r.cseq, err
	}
	return r.cseq, nil
}

// applyResponse absorbs the bookkeeping every response carries
// regardless of which request it answers: CSeq validation is the
// caller's job (it owns the expected_response slot), but Session
// absorption and activity reset belong here since every response needs
// them identically.
func (r *requester) applyResponse(res *base.Response) error {
	r.session.ResetActivity()

	if sv, ok := res.Header["Session"]; ok {
		var sh headers.Session
		if err := sh.Read(sv); err != nil {
			return liberrors.ErrClientSessionHeaderInvalid{Err: err}
		}
		r.session.ApplySession(sh)
	}

	return nil
}

func checkStatus(res *base.Response) error {
	if res.StatusCode != base.StatusOK {
		return liberrors.ErrClientInvalidStatusCode{Code: res.StatusCode, Message: res.StatusMessage}
	}
	return nil
}

func buildOptions(url *base.URL) *base.Request {
	return &base.Request{Method: base.Options, URL: url, Header: base.Header{}}
}

func buildDescribe(url *base.URL) *base.Request {
	return &base.Request{
		Method: base.Describe,
		URL:    url,
		Header: base.Header{"Accept": base.HeaderValue{"application/sdp"}},
	}
}

func buildSetup(url *base.URL, offers headers.Transports) *base.Request {
	return &base.Request{
		Method: base.Setup,
		URL:    url,
		Header: base.Header{"Transport": offers.Write()},
	}
}

func buildPlay(url *base.URL, rng *headers.Range) *base.Request {
	req := &base.Request{Method: base.Play, URL: url, Header: base.Header{}}
	if rng != nil {
		req.Header["Range"] = rng.Write()
	}
	return req
}

func buildPlayWithRawRange(url *base.URL, rawRange string) *base.Request {
	return &base.Request{
		Method: base.Play,
		URL:    url,
		Header: base.Header{"Range": base.HeaderValue{rawRange}},
	}
}

func buildTeardown(url *base.URL) *base.Request {
	return &base.Request{Method: base.Teardown, URL: url, Header: base.Header{}}
}

// writeRequestBytes renders req exactly as it would hit the wire,
// without sending it; used by tests that assert on literal bytes
// rather than parsed structure.
func writeRequestBytes(req *base.Request) ([]byte, error) {
	var buf bytes.Buffer
	w := conn.NewConn(&nopReadWriter{&buf})
	if err := w.WriteRequest(req); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type nopReadWriter struct {
	*bytes.Buffer
}

func (n *nopReadWriter) Read(p []byte) (int, error) {
	return n.Buffer.Read(p)
}
