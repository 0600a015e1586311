/*
NAME
  hevcreceive

DESCRIPTION
  hevcreceive listens for an RTP/HEVC stream on a UDP port, depacketizes
  it, and writes the resulting Annex B elementary stream to a file or to
  stdout. It runs until interrupted, logging protocol and loss statistics
  periodically and on shutdown.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// hevcreceive is the online counterpart to hevcpcap: it depacketizes a
// live RTP/HEVC stream rather than one already captured to a file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/rtphevc/codec/h265"
	"github.com/ausocean/rtphevc/internal/config"
	"github.com/ausocean/rtphevc/protocol/rtcp"
	"github.com/ausocean/rtphevc/protocol/rtp"
	"github.com/ausocean/utils/logging"
)

const pkg = "hevcreceive: "

// Logging configuration, in the style of the wider ausocean tool fleet:
// a rotating file sink via lumberjack, fanned out to stdout as well (to
// stderr when the output stream is stdout).
const (
	logMaxSize   = 10 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("hevcreceive", flag.ContinueOnError)
	port := fs.Int("p", config.DefaultListenPort, "UDP port to receive RTP/HEVC on")
	output := fs.String("o", config.DefaultOutputPath, "output HEVC elementary stream path ('-' for stdout)")
	confPath := fs.String("c", "", "optional key=value config file, hot-reloaded on change")
	logPath := fs.String("log", "hevcreceive.log", "log file path")
	rtcpRemote := fs.String("rtcp", "", "optional remote host:port to send RTCP receiver reports to")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.New()
	cfg.ListenPort = *port
	cfg.OutputPath = *output
	if *confPath != "" {
		vars, err := config.LoadFile(*confPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		if err := cfg.Update(vars); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid configuration: %v\n", err)
		return 1
	}

	fileLog := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	defer fileLog.Close()
	// When the stream itself goes to stdout, logs fan out to stderr instead
	// so they do not interleave with the Annex B bytes.
	logOut := io.Writer(os.Stdout)
	if cfg.OutputPath == "-" {
		logOut = os.Stderr
	}
	log := logging.New(cfg.LogLevel, io.MultiWriter(fileLog, logOut), true)

	var out io.Writer
	if cfg.OutputPath == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(cfg.OutputPath)
		if err != nil {
			log.Error(pkg+"could not create output file", "error", err.Error())
			return 1
		}
		defer f.Close()
		out = f
	}

	rc := newReceiver(cfg, log, out)

	if *confPath != "" {
		if err := rc.watchConfig(*confPath); err != nil {
			log.Warning(pkg+"could not start config watcher", "error", err.Error())
		}
	}

	if *rtcpRemote != "" {
		if err := rc.startRTCP(*rtcpRemote, log); err != nil {
			log.Warning(pkg+"could not start RTCP client", "error", err.Error())
		}
	}

	if err := rc.listen(); err != nil {
		log.Error(pkg+"could not start RTP listener", "error", err.Error())
		return 1
	}

	notifyReady(log)
	stopWatchdog := startWatchdog(log)
	defer stopWatchdog()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go rc.run()

	report := time.NewTicker(30 * time.Second)
	defer report.Stop()
	for {
		select {
		case <-report.C:
			rc.logStats(log)
		case <-sig:
			rc.logStats(log)
			rc.stop()
			return 0
		}
	}
}

// receiver owns the live depacketization pipeline: a UDP datagram
// arrives on client, is handed to a per-SSRC depacketizer, and completed
// NAL units are Annex-B framed to out.
type receiver struct {
	cfg     *config.Config
	log     *logging.JSONLogger
	out     io.Writer
	client  *rtp.Client
	rtcp    *rtcp.Client
	emitter *h265.Emitter

	mu   sync.Mutex
	deps map[uint32]*h265.Depacketizer
	seqs map[uint32]*h265.SequenceTracker

	datagrams chan []byte
	quit      chan struct{}
	wg        sync.WaitGroup

	malformed uint64 // RTP datagrams that failed to parse, guarded by mu.
}

func newReceiver(cfg *config.Config, log *logging.JSONLogger, out io.Writer) *receiver {
	return &receiver{
		cfg:       cfg,
		log:       log,
		out:       out,
		emitter:   h265.NewEmitter(out),
		deps:      make(map[uint32]*h265.Depacketizer),
		seqs:      make(map[uint32]*h265.SequenceTracker),
		datagrams: make(chan []byte, 1000), // Bounded, matching the source's packet_queue.
		quit:      make(chan struct{}),
	}
}

// listen binds the UDP socket the receiver reads from.
func (r *receiver) listen() error {
	c, err := rtp.NewClient(fmt.Sprintf(":%d", r.cfg.ListenPort))
	if err != nil {
		return fmt.Errorf("could not bind RTP listener: %w", err)
	}
	r.client = c
	return nil
}

// startRTCP starts a best-effort RTCP client that sends receiver reports
// to remoteAddr; failures are logged but never block RTP processing.
func (r *receiver) startRTCP(remoteAddr string, log *logging.JSONLogger) error {
	c, err := rtcp.NewClient(":0", remoteAddr, r.client, func(lvl int8, msg string, args ...interface{}) {
		log.Log(lvl, pkg+msg, args...)
	})
	if err != nil {
		return err
	}
	c.Start()
	r.rtcp = c
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.quit:
				return
			case err, ok := <-c.Err():
				if !ok {
					return
				}
				log.Warning(pkg+"RTCP client error", "error", err.Error())
			}
		}
	}()
	return nil
}

// watchConfig reloads the LogLevel and FragmentTimeout tunables whenever
// path changes on disk.
func (r *receiver) watchConfig(path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer w.Close()
		var debounce *time.Timer
		for {
			select {
			case <-r.quit:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, func() {
					r.reloadConfig(path)
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.log.Warning(pkg+"config watcher error", "error", err.Error())
			}
		}
	}()
	return nil
}

func (r *receiver) reloadConfig(path string) {
	vars, err := config.LoadFile(path)
	if err != nil {
		r.log.Warning(pkg+"could not reload config", "error", err.Error())
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cfg.Update(vars); err != nil {
		r.log.Warning(pkg+"could not apply reloaded config", "error", err.Error())
		return
	}
	r.log.SetLevel(r.cfg.LogLevel)
	for _, dep := range r.deps {
		dep.SetFragmentTimeout(r.cfg.FragmentTimeout)
	}
	r.log.Info(pkg+"config reloaded")
}

// run drives the receiver until stop is called: a reader goroutine pulls
// raw datagrams off the UDP socket into a bounded channel (the
// receiver-thread/processor-thread split of the source's packet_queue,
// translated to goroutines and a channel), a processor goroutine
// depacketizes them, and a ticker sweeps every depacketizer's Fragment
// Store so orphaned fragments do not grow unboundedly during a quiet
// stream.
func (r *receiver) run() {
	r.wg.Add(2)
	go r.readLoop()
	go r.processLoop()

	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-sweep.C:
			now := time.Now()
			r.mu.Lock()
			for _, d := range r.deps {
				d.Sweep(now)
			}
			r.mu.Unlock()
		}
	}
}

func (r *receiver) readLoop() {
	defer r.wg.Done()
	buf := make([]byte, 65535)
	for {
		select {
		case <-r.quit:
			return
		default:
		}
		n, err := r.client.Read(buf)
		if err != nil {
			continue // Read timeout or transient error; keep listening.
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		select {
		case r.datagrams <- datagram:
		default:
			r.log.Warning(pkg+"datagram queue full, dropping packet")
		}
	}
}

func (r *receiver) processLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.quit:
			return
		case d := <-r.datagrams:
			r.process(d)
		}
	}
}

func (r *receiver) process(d []byte) {
	v, err := rtp.Parse(d)
	if err != nil {
		r.log.Warning(pkg+"malformed RTP datagram dropped", "error", err.Error())
		r.mu.Lock()
		r.malformed++
		r.mu.Unlock()
		return
	}

	// Held for the full Depacketize call, not just the map lookup: Sweep
	// runs concurrently off the ticker in run() and Depacketizer is not
	// safe for concurrent use, so both must serialize on the same lock.
	r.mu.Lock()
	defer r.mu.Unlock()

	dep, ok := r.deps[v.SSRC]
	if !ok {
		opts := []h265.Option{h265.WithFragmentTimeout(r.cfg.FragmentTimeout)}
		if r.cfg.DONL {
			opts = append(opts, h265.WithDONL())
		}
		dep = h265.NewDepacketizer(opts...)
		r.deps[v.SSRC] = dep
		r.seqs[v.SSRC] = &h265.SequenceTracker{}
		r.log.Info(pkg+"new RTP source", "ssrc", v.SSRC)
	}
	r.seqs[v.SSRC].Observe(v.Sequence)

	nalus, err := dep.Depacketize(v, time.Now())
	if err != nil {
		r.log.Debug(pkg+"depacketize error", "ssrc", v.SSRC, "error", err.Error())
	}

	for _, nalu := range nalus {
		if err := r.emitter.Emit(nalu); err != nil {
			r.log.Error(pkg+"could not write NAL unit", "error", err.Error())
			return
		}
	}
}

// logStats reports per-SSRC Depacketizer counters and loss rates.
func (r *receiver) logStats(log *logging.JSONLogger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.Info(pkg+"datagram stats", "malformed", r.malformed)
	for ssrc, dep := range r.deps {
		seq := r.seqs[ssrc]
		log.Info(pkg+"stream stats",
			"ssrc", ssrc,
			"packets_seen", dep.Stats.PacketsSeen,
			"nals_emitted", dep.Stats.NALsEmitted,
			"fragments_abandoned", dep.Stats.FragmentsAbandoned,
			"fragments_timed_out", dep.Stats.FragmentsTimedOut,
			"orphans", dep.Stats.Orphans,
			"unsupported", dep.Stats.Unsupported,
			"loss_rate", seq.LossRate(),
		)
	}
}

// stop shuts down all receiver goroutines and waits for them to exit.
func (r *receiver) stop() {
	close(r.quit)
	if r.client != nil {
		r.client.Close()
	}
	if r.rtcp != nil {
		r.rtcp.Stop()
	}
	r.wg.Wait()
}

// notifyReady signals systemd (if run as a service unit) that startup is
// complete. It is a no-op when NOTIFY_SOCKET is unset.
func notifyReady(log *logging.JSONLogger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warning(pkg+"systemd notify failed", "error", err.Error())
	} else if sent {
		log.Debug(pkg+"systemd notified ready")
	}
}

// startWatchdog pings systemd's watchdog at half its configured interval,
// if WATCHDOG_USEC is set. The returned func stops the ticker; it is
// always safe to call.
func startWatchdog(log *logging.JSONLogger) func() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return func() {}
	}

	ticker := time.NewTicker(interval / 2)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					log.Warning(pkg+"systemd watchdog notify failed", "error", err.Error())
				}
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
