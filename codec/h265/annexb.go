/*
NAME
  annexb.go

DESCRIPTION
  annexb.go provides Emitter, which frames completed HEVC NAL units in
  Annex B byte-stream format and publishes them to a sink.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h265

import "io"

// startCode is the 4-byte Annex B start code prefixed to every NAL unit.
// The 3-byte variant permitted by Annex B is never emitted, simplifying
// downstream scanners.
var startCode = [4]byte{0x00, 0x00, 0x00, 0x01}

// Emitter writes completed HEVC NAL units to dst in Annex B byte-stream
// format. No emulation-prevention-byte processing is performed on the NAL
// body; the RTP payload already carries the byte-stuffed RBSP and the
// Emitter's job is framing only.
type Emitter struct {
	dst io.Writer
}

// NewEmitter returns an Emitter that writes Annex B framed NAL units to dst.
func NewEmitter(dst io.Writer) *Emitter {
	return &Emitter{dst: dst}
}

// Emit writes the start code followed by nalu to the Emitter's sink.
func (e *Emitter) Emit(nalu []byte) error {
	if _, err := e.dst.Write(startCode[:]); err != nil {
		return err
	}
	_, err := e.dst.Write(nalu)
	return err
}
