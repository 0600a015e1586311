/*
NAME
  hevcpcap

DESCRIPTION
  hevcpcap reads a PCAP capture file, filters UDP datagrams on a given
  port, depacketizes the RTP/HEVC stream they carry, and writes the
  resulting Annex B elementary stream to a file.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// hevcpcap extracts an Annex B HEVC elementary stream from RTP packets
// captured in a PCAP file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/ausocean/rtphevc/codec/h265"
	"github.com/ausocean/rtphevc/internal/config"
	"github.com/ausocean/rtphevc/protocol/rtp"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("hevcpcap", flag.ContinueOnError)
	output := fs.String("o", config.DefaultOutputPath, "output HEVC elementary stream path")
	port := fs.Int("p", config.DefaultPCAPPort, "RTP UDP port to filter on")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stdout, "usage: hevcpcap [-o output] [-p port] <pcap>")
		return 1
	}
	pcapPath := fs.Arg(0)

	in, err := os.Open(pcapPath)
	if err != nil {
		fmt.Fprintf(stdout, "error: could not open pcap file: %v\n", err)
		return 1
	}
	defer in.Close()

	handle, err := pcapgo.NewReader(in)
	if err != nil {
		fmt.Fprintf(stdout, "error: could not read pcap header: %v\n", err)
		return 1
	}

	out, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(stdout, "error: could not create output file: %v\n", err)
		return 1
	}
	defer out.Close()

	n, err := extract(handle, out, uint16(*port), stdout)
	if err != nil {
		fmt.Fprintf(stdout, "error: %v\n", err)
		return 1
	}
	if n == 0 {
		fmt.Fprintln(stdout, "no H.265 NAL units found")
		return 1
	}
	fmt.Fprintf(stdout, "wrote %d bytes of Annex B HEVC to %s\n", n, *output)
	return 0
}

// pcapSource is the subset of pcapgo.Reader's behaviour extract needs; it
// lets extract be exercised against a gopacket.PacketDataSource built over
// an in-memory buffer in tests, without touching the filesystem.
type pcapSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// extract reads RTP/HEVC datagrams on port from handle, depacketizes them,
// and writes the resulting Annex B stream to out. It returns the number of
// bytes written.
func extract(handle pcapSource, out io.Writer, port uint16, stdout io.Writer) (int64, error) {
	dep := h265.NewDepacketizer()
	emitter := h265.NewEmitter(out)
	src := gopacket.NewPacketSource(handle, handle.LinkType())

	var written int64
	var packetCount, rtpCount int
	now := time.Now()
	for packet := range src.Packets() {
		packetCount++

		udp, ok := packet.TransportLayer().(*layers.UDP)
		if !ok || (udp.DstPort != layers.UDPPort(port) && udp.SrcPort != layers.UDPPort(port)) {
			continue
		}

		v, err := rtp.Parse(udp.Payload)
		if err != nil {
			continue
		}
		rtpCount++

		nalus, _ := dep.Depacketize(v, now)
		for _, nalu := range nalus {
			if err := emitter.Emit(nalu); err != nil {
				return written, fmt.Errorf("could not emit NAL unit: %w", err)
			}
			written += int64(4 + len(nalu))
		}
		now = now.Add(time.Millisecond)
	}

	fmt.Fprintf(stdout, "processed %d packets, %d RTP datagrams, %d NAL units, %d bytes\n",
		packetCount, rtpCount, dep.Stats.NALsEmitted, written)
	return written, nil
}
