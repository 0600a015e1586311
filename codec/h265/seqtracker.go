/*
NAME
  seqtracker.go

DESCRIPTION
  seqtracker.go provides SequenceTracker, a packet-loss accounting helper.
  It is an operational observability concern, separable from
  depacketization correctness, and is deliberately not wired into
  Depacketizer: a host feeds it RTP sequence numbers alongside calling
  Depacketize so it can report loss statistics independently.

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

// gapSanityThreshold bounds how large a single sequence jump may be before
// it is attributed to loss rather than, e.g., a stream restart or SSRC
// change.
const gapSanityThreshold = 1000

// SequenceTracker accumulates RTP sequence-gap statistics for one stream.
// It is not used by Depacketizer; a host observes loss by feeding it every
// packet's sequence number alongside calling Depacketizer.Depacketize.
type SequenceTracker struct {
	have     bool
	last     uint16
	Received uint64
	Lost     uint64
}

// Observe records one received RTP sequence number, accounting for any gap
// since the previous call. Sequence arithmetic wraps modulo 16 bits.
func (s *SequenceTracker) Observe(sequence uint16) {
	s.Received++
	if !s.have {
		s.have = true
		s.last = sequence
		return
	}

	expected := s.last + 1
	if sequence != expected {
		lost := sequence - expected // wraps correctly for uint16
		if lost < gapSanityThreshold {
			s.Lost += uint64(lost)
		}
	}
	s.last = sequence
}

// LossRate returns the fraction of packets lost, 0 if nothing has been
// observed yet.
func (s *SequenceTracker) LossRate() float64 {
	total := s.Received + s.Lost
	if total == 0 {
		return 0
	}
	return float64(s.Lost) / float64(total)
}
