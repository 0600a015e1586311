/*
NAME
  depacketizer.go

DESCRIPTION
  depacketizer.go provides Depacketizer, the RTP/HEVC protocol state
  machine: it classifies each RTP payload per RFC 7798, drives a fragStore
  to reassemble Fragmentation Units, and returns the completed HEVC NAL
  units in Annex-B-ready order. It exposes a per-packet push API; a
  pull-based io.Reader loop is built on top of it as Extract in stream.go.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package h265 provides an RTP HEVC (H.265) depacketizer that reassembles
// Single NAL Unit, Aggregation, and Fragmentation Unit RTP payloads (RFC
// 7798) into a well-ordered stream of Annex B framed HEVC NAL units.
package h265

import (
	"encoding/binary"
	"time"

	"github.com/ausocean/rtphevc/protocol/rtp"
)

// Logger is the minimal logging interface the Depacketizer uses to report
// non-fatal protocol anomalies. A nil Logger silences logging entirely; it
// is never required.
type Logger interface {
	SetLevel(int8)
	Log(level int8, message string, params ...interface{})
}

// Logging levels, matching github.com/ausocean/utils/logging's enum so a
// *logging.JSONLogger can be passed directly as a Logger.
const (
	logDebug int8 = iota
	logInfo
	logWarning
	logError
)

// Option configures a Depacketizer at construction time.
type Option func(*Depacketizer)

// WithDONL enables DONL/DOND skipping in Aggregation and Fragmentation
// Unit payloads, for sessions that negotiate sprop-max-don-diff > 0. Off
// by default.
func WithDONL() Option {
	return func(d *Depacketizer) { d.donl = true }
}

// WithPACIRejection makes the Depacketizer reject PACI packets (NAL type
// 50) with ErrPACIUnsupported instead of forwarding them unchanged. Off
// by default: PACI is merely unrecognized, not excluded from the Single
// NAL Unit range, so the default dispatch forwards it like any other
// type in [0,47] ∪ [50,63].
func WithPACIRejection() Option {
	return func(d *Depacketizer) { d.rejectPACI = true }
}

// WithLogger attaches a Logger that the Depacketizer reports non-fatal
// anomalies through.
func WithLogger(l Logger) Option {
	return func(d *Depacketizer) { d.log = l }
}

// WithFragmentTimeout overrides the default 500ms idle timeout after which
// an in-progress Fragmentation Unit reassembly is evicted by sweep. A
// duration <= 0 is ignored and the default is kept.
func WithFragmentTimeout(timeout time.Duration) Option {
	return func(d *Depacketizer) {
		if timeout > 0 {
			d.fragmentTimeout = timeout
		}
	}
}

// Depacketizer is the RTP HEVC protocol state machine described by the
// core contract: one input datagram in, zero or more completed NAL units
// out, no internal suspension, no blocking, no I/O. A Depacketizer is not
// safe for concurrent use; callers that wish to process multiple SSRCs
// concurrently must use one Depacketizer per SSRC rather than share one
// across goroutines.
type Depacketizer struct {
	donl            bool
	rejectPACI      bool
	log             Logger
	store           *fragStore
	lastSweep       time.Time
	fragmentTimeout time.Duration

	// Stats holds running protocol counters; see stats.go.
	Stats Stats
}

// NewDepacketizer returns a new Depacketizer.
func NewDepacketizer(opts ...Option) *Depacketizer {
	d := &Depacketizer{fragmentTimeout: fragTimeout}
	for _, opt := range opts {
		opt(d)
	}
	d.store = newFragStore(d.fragmentTimeout)
	return d
}

// SetFragmentTimeout updates the idle timeout used for fragment eviction,
// taking effect on the next sweep. It lets a long-lived Depacketizer pick
// up a reloaded configuration value without losing in-progress
// reassembly state.
func (d *Depacketizer) SetFragmentTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	d.fragmentTimeout = timeout
	d.store.timeout = timeout
}

// Depacketize classifies a single RTP packet's payload and returns zero or
// more completed HEVC NAL units (header included, Annex B prefix not
// included). now is the caller's monotonic wall-clock instant, used for
// Fragment Store bookkeeping and periodic sweeping.
//
// Depacketize never returns a fatal error: every error it returns
// describes one dropped datagram, already reflected in d.Stats, and the
// caller may continue feeding subsequent datagrams.
func (d *Depacketizer) Depacketize(v rtp.View, now time.Time) ([][]byte, error) {
	d.Stats.PacketsSeen++

	if d.lastSweep.IsZero() {
		d.lastSweep = now
	}
	if now.Sub(d.lastSweep) >= d.fragmentTimeout {
		d.Stats.FragmentsTimedOut += uint64(d.store.sweep(now))
		d.lastSweep = now
	}

	payload := v.Payload
	if len(payload) < naluHeaderSize {
		d.Stats.Truncated++
		return nil, ErrTruncatedPayload
	}

	t := naluType(payload)
	switch {
	case t == typeAggregation:
		nalus := d.handleAggregation(payload)
		d.Stats.NALsEmitted += uint64(len(nalus))
		return nalus, nil

	case t == typeFragmentation:
		nalus, err := d.handleFragmentation(payload, v.SSRC, v.Timestamp, v.Sequence, now)
		d.Stats.NALsEmitted += uint64(len(nalus))
		return nalus, err

	case t == typePACI && d.rejectPACI:
		d.Stats.Unsupported++
		d.logf(logWarning, "PACI packet dropped")
		return nil, ErrPACIUnsupported

	default: // Single NAL Unit (including PACI, unless WithPACIRejection is set)
		// or an unknown/reserved type, forwarded unchanged.
		nalu := make([]byte, len(payload))
		copy(nalu, payload)
		d.Stats.NALsEmitted++
		return [][]byte{nalu}, nil
	}
}

// Sweep runs the Fragment Store's timeout eviction pass immediately,
// regardless of how long it has been since Depacketize last ran one. A
// host that may go quiet for longer than the fragment timeout (no
// incoming datagrams) should call this at least every 500ms so orphaned
// fragments do not grow the store unboundedly.
func (d *Depacketizer) Sweep(now time.Time) {
	d.Stats.FragmentsTimedOut += uint64(d.store.sweep(now))
	d.lastSweep = now
}

// PendingFragments returns the number of fragmentation contexts currently
// in progress.
func (d *Depacketizer) PendingFragments() int {
	return d.store.len()
}

// handleAggregation parses NAL units from an Aggregation Packet. If fewer
// bytes remain than a declared nal_size, the tail is silently discarded
// rather than treated as an error.
func (d *Depacketizer) handleAggregation(payload []byte) [][]byte {
	idx := naluHeaderSize
	var nalus [][]byte
	for idx < len(payload) {
		if d.donl {
			if idx == naluHeaderSize {
				idx += donlSize
			} else {
				idx += dondSize
			}
			if idx >= len(payload) {
				break
			}
		}

		if idx+2 > len(payload) {
			d.Stats.Truncated++
			break
		}
		size := int(binary.BigEndian.Uint16(payload[idx : idx+2]))
		idx += 2

		if idx+size > len(payload) {
			d.Stats.Truncated++
			break
		}
		nalu := make([]byte, size)
		copy(nalu, payload[idx:idx+size])
		nalus = append(nalus, nalu)
		idx += size
	}
	return nalus
}

// handleFragmentation implements the Fragmentation Unit reassembly
// procedure.
func (d *Depacketizer) handleFragmentation(payload []byte, ssrc, timestamp uint32, sequence uint16, now time.Time) ([][]byte, error) {
	if len(payload) < naluHeaderSize+fuHeaderSize {
		d.Stats.Truncated++
		return nil, ErrTruncatedPayload
	}

	fuHdr := payload[2]
	start := fuHdr&0x80 != 0
	end := fuHdr&0x40 != 0
	fuType := fuHdr & 0x3f

	frag := payload[naluHeaderSize+fuHeaderSize:]
	if d.donl {
		if len(frag) < donlSize {
			d.Stats.Truncated++
			return nil, ErrTruncatedPayload
		}
		frag = frag[donlSize:]
	}

	reconstructed := reconstructFUHeader(payload[:naluHeaderSize], fuType)
	key := fragKey{ssrc: ssrc, timestamp: timestamp}

	switch {
	case start && end:
		// Degenerate single-fragment NAL: emit immediately, store untouched.
		nalu := make([]byte, 0, naluHeaderSize+len(frag))
		nalu = append(nalu, reconstructed[:]...)
		nalu = append(nalu, frag...)
		return [][]byte{nalu}, nil

	case start: // start && !end
		if d.store.lookup(key) != nil {
			d.store.abandon(key)
			d.Stats.FragmentsAbandoned++
			d.logf(logWarning, "new start-bit replaced in-progress fragment, ssrc=%d timestamp=%d", ssrc, timestamp)
		}
		initial := make([]byte, 0, naluHeaderSize+len(frag))
		initial = append(initial, reconstructed[:]...)
		initial = append(initial, frag...)
		d.store.begin(key, sequence, initial, now)
		d.Stats.FragmentsStarted++
		return nil, nil

	case end: // !start && end
		buf, ok := d.store.complete(key, sequence, frag, now)
		if !ok {
			d.Stats.Orphans++
			return nil, ErrOrphanFragment
		}
		d.Stats.FragmentsComplete++
		return [][]byte{buf}, nil

	default: // !start && !end, a middle fragment.
		_, ok := d.store.append(key, sequence, frag, now)
		if !ok {
			d.Stats.Orphans++
			return nil, ErrOrphanFragment
		}
		return nil, nil
	}
}

func (d *Depacketizer) logf(level int8, msg string, params ...interface{}) {
	if d.log == nil {
		return
	}
	d.log.Log(level, msg, params...)
}
