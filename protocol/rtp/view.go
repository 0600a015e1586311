/*
NAME
  view.go

DESCRIPTION
  view.go provides View, a structured, read-only view over a single RTP
  datagram, and Parse, which builds one from raw bytes in a single pass.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package rtp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrMalformedHeader is returned by Parse when a datagram is too short to
// hold a valid RTP header, when a signalled extension header is truncated,
// or when the computed payload offset exceeds the datagram length.
var ErrMalformedHeader = errors.New("rtp: malformed header")

// View is an immutable, structured view over a single RTP datagram. Its
// Payload field aliases the input slice; View is only valid for the
// lifetime of the buffer it was parsed from.
type View struct {
	Version     uint8
	Padding     bool
	Extension   bool
	CC          uint8
	Marker      bool
	PayloadType uint8
	Sequence    uint16
	Timestamp   uint32
	SSRC        uint32
	Payload     []byte
}

// Parse builds a View from a raw RTP datagram per RFC 3550. It does not
// validate Version or PayloadType; those are policy choices left to the
// caller. Parse fails with ErrMalformedHeader if d is shorter than the
// fixed 12-byte header, shorter than the header plus CSRC list, or if an
// extension is signalled but its length word, or the extension itself,
// does not fit within d.
func Parse(d []byte) (View, error) {
	if len(d) < defaultHeadSize {
		return View{}, errors.Wrap(ErrMalformedHeader, "datagram shorter than fixed RTP header")
	}

	v := View{
		Version:     uint8(d[0] & 0xc0 >> 6),
		Padding:     d[0]&0x20 != 0,
		Extension:   d[0]&0x10 != 0,
		CC:          uint8(d[0] & 0x0f),
		Marker:      d[1]&0x80 != 0,
		PayloadType: uint8(d[1] & 0x7f),
		Sequence:    binary.BigEndian.Uint16(d[2:4]),
		Timestamp:   binary.BigEndian.Uint32(d[4:8]),
		SSRC:        binary.BigEndian.Uint32(d[8:12]),
	}

	headerSize := defaultHeadSize + 4*int(v.CC)
	if headerSize > len(d) {
		return View{}, errors.Wrap(ErrMalformedHeader, "CSRC list exceeds datagram length")
	}

	if v.Extension {
		if headerSize+4 > len(d) {
			return View{}, errors.Wrap(ErrMalformedHeader, "extension header truncated")
		}
		extLen := binary.BigEndian.Uint16(d[headerSize+2 : headerSize+4])
		headerSize += 4 + 4*int(extLen)
	}

	if headerSize > len(d) {
		return View{}, errors.Wrap(ErrMalformedHeader, "computed payload offset exceeds datagram length")
	}

	v.Payload = d[headerSize:]
	return v, nil
}
