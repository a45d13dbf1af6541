// Package description contains objects to describe streams.
package description

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	psdp "github.com/pion/sdp/v3"

	"github.com/mediabridge/rtspclientsrc/pkg/base"
	"github.com/mediabridge/rtspclientsrc/pkg/headers"
	"github.com/mediabridge/rtspclientsrc/pkg/sdp"
)

func getAttribute(attributes []psdp.Attribute, key string) string {
	for _, attr := range attributes {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}

func isBackChannel(attributes []psdp.Attribute) bool {
	for _, attr := range attributes {
		if attr.Key == "sendonly" {
			return true
		}
	}
	return false
}

func isAlphaNumeric(v string) bool {
	for _, r := range v {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

// MediaType is the type of a media stream.
type MediaType string

// media types.
const (
	MediaTypeVideo       MediaType = "video"
	MediaTypeAudio       MediaType = "audio"
	MediaTypeApplication MediaType = "application"
)

// Media is a media stream. Its caps description is an opaque, uninterpreted
// map derived from SDP: the core does not decode codec parameters, it only
// carries them through to whatever consumes the stream.
type Media struct {
	// Media type.
	Type MediaType

	// Media ID (optional).
	ID string

	// Whether this media is a back channel.
	IsBackChannel bool

	// RTP Profile.
	Profile headers.TransportProfile

	// key-mgmt attribute, verbatim (e.g. "mikey <base64>"). Not decoded.
	KeyMgmt string

	// Control attribute.
	Control string

	// Caps is the opaque per-medium capability description: payload
	// type, and every other SDP attribute (rtpmap, fmtp, extmap, ssrc,
	// ...) copied verbatim with an "a-" prefix, except control, range,
	// mid and key-mgmt. mid and key-mgmt are kept only in ID and KeyMgmt.
	Caps map[string]string
}

// Unmarshal decodes the media from the SDP format.
func (m *Media) Unmarshal(md *psdp.MediaDescription) error {
	m.Type = MediaType(md.MediaName.Media)

	m.ID = getAttribute(md.Attributes, "mid")
	if m.ID != "" && !isAlphaNumeric(m.ID) {
		return fmt.Errorf("invalid mid: %v", m.ID)
	}

	m.IsBackChannel = isBackChannel(md.Attributes)

	if contains(md.MediaName.Protos, "SAVP") {
		m.Profile = headers.TransportProfileSAVP
	} else {
		m.Profile = headers.TransportProfileAVP
	}

	if enc := getAttribute(md.Attributes, "key-mgmt"); enc != "" {
		if !strings.HasPrefix(enc, "mikey ") {
			return fmt.Errorf("unsupported key-mgmt: %v", enc)
		}
		m.KeyMgmt = enc
	}

	m.Control = getAttribute(md.Attributes, "control")

	caps, err := sdp.MediaCaps(md)
	if err != nil {
		return err
	}
	m.Caps = caps

	return nil
}

// Marshal encodes the media in SDP format.
func (m Media) Marshal() *psdp.MediaDescription {
	var protos []string

	if m.Profile == headers.TransportProfileSAVP {
		protos = []string{"RTP", "SAVP"}
	} else {
		protos = []string{"RTP", "AVP"}
	}

	md := &psdp.MediaDescription{
		MediaName: psdp.MediaName{
			Media:  string(m.Type),
			Protos: protos,
		},
	}

	if m.ID != "" {
		md.Attributes = append(md.Attributes, psdp.Attribute{
			Key:   "mid",
			Value: m.ID,
		})
	}

	// caps already carry sendonly when they came from Unmarshal
	if _, ok := m.Caps["a-sendonly"]; m.IsBackChannel && !ok {
		md.Attributes = append(md.Attributes, psdp.Attribute{
			Key: "sendonly",
		})
	}

	if m.KeyMgmt != "" {
		md.Attributes = append(md.Attributes, psdp.Attribute{
			Key:   "key-mgmt",
			Value: m.KeyMgmt,
		})
	}

	md.Attributes = append(md.Attributes, psdp.Attribute{
		Key:   "control",
		Value: m.Control,
	})

	formats, attrs := sdp.MediaCapsToAttributes(m.Caps)
	md.MediaName.Formats = formats
	md.Attributes = append(md.Attributes, attrs...)

	return md
}

// PayloadTypes returns the RTP payload types advertised for this medium,
// in the order they appeared on the m= line.
func (m Media) PayloadTypes() ([]int, error) {
	fields := strings.Fields(m.Caps[sdp.CapsPayloadTypeKey])
	out := make([]int, len(fields))

	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid payload type: %v", f)
		}
		out[i] = v
	}

	return out, nil
}

// URL returns the absolute URL of the media, resolving its control
// attribute against contentBase.
func (m Media) URL(contentBase *base.URL) (*base.URL, error) {
	return sdp.ResolveControlURL(contentBase, m.Control)
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
