/*
NAME
  stream_test.go

DESCRIPTION
  stream_test.go checks that Extractor can correctly group Depacketizer
  output into access units at RTP marker bit boundaries.

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
	"io"
	"testing"
)

// rtpReader provides the RTP stream.
type rtpReader struct {
	packets [][]byte
	idx     int
}

// Read implements io.Reader.
func (r *rtpReader) Read(p []byte) (int, error) {
	if r.idx == len(r.packets) {
		return 0, io.EOF
	}
	b := r.packets[r.idx]
	n := copy(p, b)
	if n < len(r.packets[r.idx]) {
		r.packets[r.idx] = r.packets[r.idx][n:]
	} else {
		r.idx++
	}
	return n, nil
}

// destination holds the access units extracted during the extraction
// process.
type destination [][]byte

// Write implements io.Writer.
func (d *destination) Write(p []byte) (int, error) {
	t := make([]byte, len(p))
	copy(t, p)
	*d = append([][]byte(*d), t)
	return len(p), nil
}

// TestExtract checks that Extractor correctly groups a mix of Single NAL
// Unit, Fragmentation Unit and Aggregation Packet payloads into access
// units at marker bit boundaries.
func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		donl    bool
		packets [][]byte
		expect  [][]byte
	}{
		{
			name: "no DONL",
			packets: [][]byte{
				{ // Single NAL unit.
					0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
					0x40, 0x00, // NAL header (type=32 VPS).
					0x01, 0x02, 0x03, 0x04,
				},
				{ // Fragmentation (start).
					0x80, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
					0x62, 0x00,
					0x80,
					0x01, 0x02, 0x03,
				},
				{ // Fragmentation (middle).
					0x80, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
					0x62, 0x00,
					0x00,
					0x04, 0x05, 0x06,
				},
				{ // Fragmentation (end).
					0x80, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
					0x62, 0x00,
					0x40,
					0x07, 0x08, 0x09,
				},
				{ // Aggregation, marker bit set => flush.
					0x80, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x04,
					0x60, 0x00,
					0x00, 0x04, 0x01, 0x02, 0x03, 0x04,
					0x00, 0x04, 0x01, 0x02, 0x03, 0x04,
				},
				{ // Single NAL.
					0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05,
					0x40, 0x00,
					0x01, 0x02, 0x03, 0x04,
				},
				{ // Single NAL, marker bit set => flush.
					0x80, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x06,
					0x40, 0x00,
					0x01, 0x02, 0x03, 0x04,
				},
			},
			expect: [][]byte{
				{
					0x00, 0x00, 0x00, 0x01,
					0x40, 0x00,
					0x01, 0x02, 0x03, 0x04,

					0x00, 0x00, 0x00, 0x01,
					0x00, 0x00,
					0x01, 0x02, 0x03,
					0x04, 0x05, 0x06,
					0x07, 0x08, 0x09,

					0x00, 0x00, 0x00, 0x01,
					0x01, 0x02, 0x03, 0x04,

					0x00, 0x00, 0x00, 0x01,
					0x01, 0x02, 0x03, 0x04,
				},
				{
					0x00, 0x00, 0x00, 0x01,
					0x40, 0x00,
					0x01, 0x02, 0x03, 0x04,

					0x00, 0x00, 0x00, 0x01,
					0x40, 0x00,
					0x01, 0x02, 0x03, 0x04,
				},
			},
		},
	}

	for _, test := range tests {
		r := &rtpReader{packets: test.packets}
		d := &destination{}
		var opts []Option
		if test.donl {
			opts = append(opts, WithDONL())
		}
		err := NewExtractor(opts...).Extract(d, r, 0)
		if err != nil && err != io.EOF {
			t.Fatalf("%s: unexpected error: %v", test.name, err)
		}

		got := [][]byte(*d)
		if len(got) != len(test.expect) {
			t.Fatalf("%s: got %d access units, want %d", test.name, len(got), len(test.expect))
		}
		for i := range test.expect {
			if !bytes.Equal(got[i], test.expect[i]) {
				t.Errorf("%s: access unit %d: got %x, want %x", test.name, i, got[i], test.expect[i])
			}
		}
	}
}
