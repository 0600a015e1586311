/*
NAME
  stats.go

DESCRIPTION
  stats.go provides Stats, the set of counters a Depacketizer surfaces to
  its host in place of logging or aborting on non-fatal protocol errors.

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

// Stats holds running counters for a Depacketizer. Nothing inside the
// core is fatal; these counters are how a host observes packet loss,
// malformed input, and fragment churn without the core logging or
// aborting on its own.
type Stats struct {
	PacketsSeen        uint64 // RTP payloads handed to Depacketize.
	NALsEmitted        uint64 // completed NAL units emitted.
	FragmentsStarted   uint64 // FU start-bit packets that opened a reassembly context.
	FragmentsComplete  uint64 // FU end-bit packets that completed a reassembly context.
	FragmentsAbandoned uint64 // reassembly contexts replaced by a fresh start-bit.
	FragmentsTimedOut  uint64 // reassembly contexts evicted by sweep before completion.
	Orphans            uint64 // FU continuation/end packets with no matching start.
	Truncated          uint64 // payloads shorter than the minimum for their declared packing.
	Malformed          uint64 // RTP headers that failed to parse; Depacketize receives parsed views and never increments it.
	Unsupported        uint64 // recognised-but-unsupported constructs (PACI).
}
