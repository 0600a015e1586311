/*
NAME
  nalheader.go

DESCRIPTION
  nalheader.go provides parsing of the 2-byte HEVC NAL unit header used by
  RFC 7798 RTP payloads, and the handful of NAL unit type constants the
  depacketizer needs to dispatch on.

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

import "encoding/binary"

// NAL unit types relevant to RTP payload dispatch (RFC 7798 §4.4).
const (
	typeAggregation   = 48
	typeFragmentation = 49
	typePACI          = 50
)

// naluHeaderSize is the size in bytes of the HEVC NAL unit header.
const naluHeaderSize = 2

// fuHeaderSize is the size in bytes of the FU header that follows the
// PayloadHdr in a Fragmentation Unit packet.
const fuHeaderSize = 1

// donlSize is the size in bytes of a DONL field.
const donlSize = 2

// dondSize is the size in bytes of a DOND field carried per aggregated NAL
// unit (after the first) when DONL is negotiated.
const dondSize = 1

// naluType returns the nal_unit_type (bits 1-6) of a 2-byte big-endian HEVC
// NAL unit header.
func naluType(hdr []byte) uint8 {
	return (hdr[0] >> 1) & 0x3f
}

// isSingleNALUnit reports whether t falls in the Single NAL Unit range of
// RFC 7798 §4.4: nal_unit_type in [0,47] or [50,63]. PACI (50) is merely
// unrecognized by the dispatch, not excluded from this range, so
// isSingleNALUnit reports true for it; WithPACIRejection acts in
// Depacketize's dispatch, not here.
func isSingleNALUnit(t uint8) bool {
	return t != typeAggregation && t != typeFragmentation
}

// reconstructFUHeader rebuilds the original 2-byte NAL unit header for a
// fragmented NAL unit, given the FU packet's PayloadHdr and the fu_type
// carried in the FU header byte. It preserves forbidden_zero_bit,
// nuh_layer_id and nuh_temporal_id_plus1 from the PayloadHdr and replaces
// only the type field, per RFC 7798 §4.3.1.
func reconstructFUHeader(payloadHdr []byte, fuType uint8) [naluHeaderSize]byte {
	hdr := binary.BigEndian.Uint16(payloadHdr[:2])
	hdr = (hdr & 0x81FF) | (uint16(fuType) << 9)
	var out [naluHeaderSize]byte
	binary.BigEndian.PutUint16(out[:], hdr)
	return out
}
