/*
NAME
  fragstore.go

DESCRIPTION
  fragstore.go provides fragStore, an indexed collection of in-progress
  fragmented HEVC NAL units keyed by reassembly context, with timeout-based
  eviction. Entries are keyed by (ssrc, timestamp) so interleaved fragments
  from multiple SSRCs reassemble independently, and stale entries are swept
  out after a configurable idle timeout regardless of arrival order.

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

import "time"

// fragTimeout is the default maximum time a fragmentation context may sit
// idle before it is evicted by sweep, used when WithFragmentTimeout is not
// set. Depacketize triggers its own sweep pass at the configured timeout,
// which is this value unless overridden.
const fragTimeout = 500 * time.Millisecond

// fragKey identifies one in-progress fragmented NAL unit reassembly
// context. Scoping on ssrc and timestamp (rather than timestamp alone)
// keeps distinct senders, and coincidental timestamp collisions between
// them, from corrupting each other's reassembly.
type fragKey struct {
	ssrc      uint32
	timestamp uint32
}

// fragEntry is one in-progress fragmented NAL unit.
type fragEntry struct {
	startSeq   uint16    // sequence number of the start-bit packet that opened this entry.
	lastSeq    uint16    // most recently appended RTP sequence number.
	lastUpdate time.Time // wall-clock instant of the most recent append.
	buf        []byte    // accumulated NAL bytes, header first.
}

// fragStore is an indexed collection of in-progress fragmented NAL units.
// It is not internally synchronized; a Depacketizer owns exclusive access.
type fragStore struct {
	entries map[fragKey]*fragEntry
	timeout time.Duration
}

// newFragStore returns an empty fragStore that evicts entries idle longer
// than timeout.
func newFragStore(timeout time.Duration) *fragStore {
	return &fragStore{entries: make(map[fragKey]*fragEntry), timeout: timeout}
}

// begin inserts a new entry for key, evicting any prior entry under the
// same (ssrc, timestamp), per the "abandon on new start-bit" rule.
func (s *fragStore) begin(key fragKey, startSeq uint16, initial []byte, now time.Time) {
	buf := make([]byte, len(initial))
	copy(buf, initial)
	s.entries[key] = &fragEntry{
		startSeq:   startSeq,
		lastSeq:    startSeq,
		lastUpdate: now,
		buf:        buf,
	}
}

// lookup returns the entry for key. The fragStore holds at most one active
// entry per (ssrc, timestamp) at a time: a new start-bit replaces any
// prior entry under the same key.
func (s *fragStore) lookup(key fragKey) *fragEntry {
	return s.entries[key]
}

// append appends bytes to the matching entry for (ssrc, timestamp),
// updating last_sequence and last_update_time. It reports whether a
// matching entry was found.
func (s *fragStore) append(key fragKey, sequence uint16, bytes []byte, now time.Time) (*fragEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	e.buf = append(e.buf, bytes...)
	e.lastSeq = sequence
	e.lastUpdate = now
	return e, true
}

// complete behaves like append, then removes the entry and returns its
// accumulated buffer.
func (s *fragStore) complete(key fragKey, sequence uint16, bytes []byte, now time.Time) ([]byte, bool) {
	e, ok := s.append(key, sequence, bytes, now)
	if !ok {
		return nil, false
	}
	delete(s.entries, key)
	return e.buf, true
}

// abandon discards any entry under key without emitting it, used when a
// fresh start-bit arrives for a context that is already being assembled.
func (s *fragStore) abandon(key fragKey) {
	delete(s.entries, key)
}

// sweep removes every entry whose last_update_time is older than
// now-timeout, returning the number of entries evicted.
func (s *fragStore) sweep(now time.Time) int {
	evicted := 0
	for key, e := range s.entries {
		if now.Sub(e.lastUpdate) > s.timeout {
			delete(s.entries, key)
			evicted++
		}
	}
	return evicted
}

// len returns the number of fragmentation contexts currently in progress.
func (s *fragStore) len() int {
	return len(s.entries)
}
