/*
NAME
  main_test.go

DESCRIPTION
  main_test.go provides testing for extract, exercising it against a
  synthetic in-memory PCAP byte stream rather than an on-disk fixture.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/ausocean/rtphevc/protocol/rtp"
)

// buildPCAP serialises an Ethernet/IPv4/UDP frame carrying rtpPayload on
// dstPort into an in-memory PCAP byte stream, and returns a pcapSource
// reading from it.
func buildPCAP(t *testing.T, rtpPayload []byte, dstPort uint16) pcapSource {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(127, 0, 0, 1),
		DstIP:    net.IPv4(127, 0, 0, 1),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(43210),
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("could not set network layer for checksum: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(rtpPayload)); err != nil {
		t.Fatalf("could not serialize layers: %v", err)
	}

	var pcapBuf bytes.Buffer
	w := pcapgo.NewWriter(&pcapBuf)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("could not write pcap file header: %v", err)
	}
	frame := buf.Bytes()
	if err := w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     time.Unix(0, 0),
		CaptureLength: len(frame),
		Length:        len(frame),
	}, frame); err != nil {
		t.Fatalf("could not write pcap packet: %v", err)
	}

	r, err := pcapgo.NewReader(&pcapBuf)
	if err != nil {
		t.Fatalf("could not construct pcap reader: %v", err)
	}
	return r
}

// singleNALPacket returns an RTP datagram carrying a single HEVC NAL unit
// (type 1, trailing non-IDR slice) of the given body as its payload.
func singleNALPacket(body []byte) []byte {
	nalHeader := []byte{byte(1 << 1), 0} // NAL type 1, layer ID 0, nuh_temporal_id_plus1 0.
	p := &rtp.Packet{
		Version:    2,
		Marker:     true,
		PacketType: 96,
		Sync:       1,
		Timestamp:  90000,
		SSRC:       0xcafef00d,
		Payload:    append(nalHeader, body...),
	}
	return p.Bytes(nil)
}

func TestExtractSingleNAL(t *testing.T) {
	body := []byte{0x11, 0x22, 0x33, 0x44}
	handle := buildPCAP(t, singleNALPacket(body), 5004)

	var out bytes.Buffer
	var stdout bytes.Buffer
	n, err := extract(handle, &out, 5004, &stdout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := append([]byte{0x00, 0x00, 0x00, 0x01}, append([]byte{byte(1 << 1), 0}, body...)...)
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("output mismatch: got % x, want % x", out.Bytes(), want)
	}
	if n != int64(len(want)) {
		t.Errorf("returned byte count: got %d, want %d", n, len(want))
	}
}

func TestExtractIgnoresOtherPorts(t *testing.T) {
	handle := buildPCAP(t, singleNALPacket([]byte{0xaa}), 9999)

	var out bytes.Buffer
	var stdout bytes.Buffer
	n, err := extract(handle, &out, 5004, &stdout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no bytes written for a non-matching port, got %d", n)
	}
}

func TestExtractIgnoresNonRTPPayload(t *testing.T) {
	handle := buildPCAP(t, []byte{0x00}, 5004) // Too short to parse as RTP.

	var out bytes.Buffer
	var stdout bytes.Buffer
	n, err := extract(handle, &out, 5004, &stdout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no bytes written for an unparseable RTP datagram, got %d", n)
	}
}
