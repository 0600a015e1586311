/*
NAME
  stream.go

DESCRIPTION
  stream.go provides Extract, a decoder-facing wrapper that groups the
  Depacketizer's per-NAL output into access units at RTP marker bit
  boundaries. Access-unit grouping is a presentation-layer concern
  separate from depacketization itself, so it lives here rather than in
  Depacketizer, behind the same Extract(dst, src, delay) shape existing
  pipeline callers already expect.

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

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/ausocean/rtphevc/protocol/rtp"
)

// maxRTPSize is the largest UDP datagram Extract will read per RTP packet.
const maxRTPSize = 4096

// Extractor wraps a Depacketizer with access-unit grouping by RTP marker
// bit. It is the stream-level convenience API; Depacketizer itself is the
// spec-compliant per-packet core.
type Extractor struct {
	dep *Depacketizer
	em  *Emitter
	buf *bytes.Buffer
}

// NewExtractor returns a new Extractor. opts configure the underlying
// Depacketizer (e.g. WithDONL).
func NewExtractor(opts ...Option) *Extractor {
	return &Extractor{
		dep: NewDepacketizer(opts...),
		buf: bytes.NewBuffer(make([]byte, 0, maxAUSize)),
	}
}

// maxAUSize is the initial capacity reserved for one access unit's worth
// of Annex B bytes.
const maxAUSize = 100000

// Depacketizer returns the Extractor's underlying Depacketizer, so a
// caller can inspect Stats or PendingFragments.
func (e *Extractor) Depacketizer() *Depacketizer { return e.dep }

// Extract continually reads RTP packets from the io.Reader src and writes
// Annex B framed HEVC access units to dst, flushing whenever an RTP
// packet with the marker bit set is processed. Extract expects that each
// read from src yields exactly one RTP packet. now is advanced by delay
// between reads, allowing deterministic testing of the fragment timeout.
func (e *Extractor) Extract(dst io.Writer, src io.Reader, delay time.Duration) error {
	e.em = NewEmitter(e.buf)
	buf := make([]byte, maxRTPSize)
	now := time.Now()

	for {
		n, err := src.Read(buf)
		if err != nil {
			if err == io.EOF {
				if e.buf.Len() == 0 {
					return io.EOF
				}
				return io.ErrUnexpectedEOF
			}
			return err
		}

		v, err := rtp.Parse(buf[:n])
		if err != nil {
			now = now.Add(delay)
			continue
		}

		nalus, _ := e.dep.Depacketize(v, now)
		for _, nalu := range nalus {
			if err := e.em.Emit(nalu); err != nil {
				return fmt.Errorf("could not emit NAL unit: %w", err)
			}
		}

		if v.Marker {
			if _, err := e.buf.WriteTo(dst); err != nil {
				return fmt.Errorf("could not flush access unit: %w", err)
			}
			e.buf.Reset()
		}

		now = now.Add(delay)
	}
}
