/*
NAME
  errors.go

DESCRIPTION
  errors.go defines the non-fatal error taxonomy surfaced by the
  depacketizer, per the error handling design of the RTP/HEVC depacketizer
  contract: nothing here is fatal, every error is counted by Stats, and
  the caller's datagram is simply dropped.

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

import "github.com/pkg/errors"

var (
	// ErrTruncatedPayload is returned when the HEVC payload is shorter than
	// the minimum required for its declared packing.
	ErrTruncatedPayload = errors.New("h265: truncated payload")

	// ErrOrphanFragment is returned when an FU continuation or end packet
	// arrives with no matching start in the Fragment Store.
	ErrOrphanFragment = errors.New("h265: orphan fragment")

	// ErrPACIUnsupported is returned when WithPACIRejection is set and a
	// PACI packet (NAL type 50) is encountered. By default PACI is merely
	// unrecognised and forwarded like any other Single NAL Unit; RFC 7798
	// §4.4, §4.5.
	ErrPACIUnsupported = errors.New("h265: PACI packets are not supported")
)
