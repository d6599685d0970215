// Package forwarder moves raw IP packets between the tun device and the
// network endpoint.
//
// Two reader goroutines block on the device and on the socket. Each one
// delivers a single packet to the engine goroutine and waits until the
// engine has handled it before reading again. The engine waits on both
// readers at once, writes every packet to the other side unmodified, and
// logs each transfer. Only the engine goroutine writes, so the server
// peer needs no locking.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/ooni/minitun/internal/model"
	"github.com/ooni/minitun/internal/networkio"
	"github.com/ooni/minitun/internal/packetx"
	"github.com/ooni/minitun/internal/runtimex"
	"github.com/ooni/minitun/internal/workers"
)

// DefaultBufferSize is the largest packet we forward.
const DefaultBufferSize = 2000

// ErrOversizedPacket means a packet did not fit the read buffer. We drop
// such packets rather than forwarding a truncated IP packet.
var ErrOversizedPacket = errors.New("forwarder: oversized packet")

// Direction is the direction in which a packet travels.
type Direction int

const (
	// TunToNet is a packet read from the device and sent to the peer.
	TunToNet Direction = iota

	// NetToTun is a datagram received from the peer and written to the device.
	NetToTun
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case TunToNet:
		return "TUN->NET"
	case NetToTun:
		return "NET->TUN"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Stats counts the packets and bytes forwarded in each direction.
type Stats struct {
	TunToNetPackets uint64
	TunToNetBytes   uint64
	NetToTunPackets uint64
	NetToTunBytes   uint64
	Dropped         uint64
}

// Engine is the forwarding engine. The zero value is invalid; use [NewEngine].
type Engine struct {
	logger   model.Logger
	device   io.ReadWriter
	endpoint networkio.Endpoint
	bufsize  int
	manager  *workers.Manager
	started  atomic.Bool

	// timeNow is the clock used for the transfer log lines.
	timeNow func() time.Time

	tunToNetPackets atomic.Uint64
	tunToNetBytes   atomic.Uint64
	netToTunPackets atomic.Uint64
	netToTunBytes   atomic.Uint64
	dropped         atomic.Uint64
}

// NewEngine creates an [Engine] moving packets between device and endpoint.
// A bufferSize of zero or less selects [DefaultBufferSize].
func NewEngine(logger model.Logger, device io.ReadWriter, endpoint networkio.Endpoint, bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Engine{
		logger:   logger,
		device:   device,
		endpoint: endpoint,
		bufsize:  bufferSize,
		manager:  workers.NewManager(logger),
		timeNow:  time.Now,
	}
}

// readEvent is the outcome of a single read.
type readEvent struct {
	dir  Direction
	pkt  []byte
	from net.Addr
	err  error
}

// Run forwards packets until ctx is done or one of the two descriptors
// is closed. Transfer errors are logged and never stop the loop. Run
// returns ctx.Err() on cancellation and nil on close. Run MUST be called
// at most once; call [Engine.Wait] after closing the descriptors to join
// the reader goroutines.
func (e *Engine) Run(ctx context.Context) error {
	runtimex.PanicIfTrue(e.started.Swap(true), "forwarder: Run called twice")

	tunReady := make(chan *readEvent)
	netReady := make(chan *readEvent)
	tunAck := make(chan any, 1)
	netAck := make(chan any, 1)

	e.manager.StartWorker(func() {
		e.readWorker(TunToNet, e.readDevice, tunReady, tunAck)
	})
	e.manager.StartWorker(func() {
		e.readWorker(NetToTun, e.endpoint.ReadPacket, netReady, netAck)
	})
	defer e.manager.StartShutdown()

	e.logger.Infof("forwarder: started (buffer %d bytes)", e.bufsize)

	for {
		// this is the only point where the engine waits
		var ev *readEvent
		var ack chan any
		select {
		case <-ctx.Done():
			e.logger.Debug("forwarder: context done")
			return ctx.Err()
		case ev = <-tunReady:
			ack = tunAck
		case ev = <-netReady:
			ack = netAck
		}
		if stop := e.handle(ev); stop {
			return nil
		}
		ack <- true
	}
}

// Wait blocks until the reader goroutines have returned. Readers return
// once their descriptor is closed.
func (e *Engine) Wait() {
	e.manager.WaitWorkersShutdown()
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		TunToNetPackets: e.tunToNetPackets.Load(),
		TunToNetBytes:   e.tunToNetBytes.Load(),
		NetToTunPackets: e.netToTunPackets.Load(),
		NetToTunBytes:   e.netToTunBytes.Load(),
		Dropped:         e.dropped.Load(),
	}
}

// readDevice reads one packet from the device. A tun device silently
// truncates packets longer than the buffer, so we compare with the
// length the IP header declares.
func (e *Engine) readDevice(buf []byte) (int, net.Addr, error) {
	n, err := e.device.Read(buf)
	if err != nil {
		return 0, nil, err
	}
	if packetx.IsTruncated(buf[:n]) {
		return n, nil, ErrOversizedPacket
	}
	return n, nil, nil
}

// readWorker reads from one descriptor into a buffer it owns. The buffer
// is reused only after the engine acknowledges the previous packet.
func (e *Engine) readWorker(dir Direction, read func([]byte) (int, net.Addr, error),
	ready chan<- *readEvent, ack <-chan any) {
	name := fmt.Sprintf("forwarder: %s reader", dir)
	defer func() {
		e.manager.OnWorkerDone(name)
		e.manager.StartShutdown()
	}()

	buf := make([]byte, e.bufsize)
	for {
		// POSSIBLY BLOCK reading from the descriptor
		n, from, err := read(buf)
		if errors.Is(err, networkio.ErrTruncated) {
			err = ErrOversizedPacket
		}
		ev := &readEvent{dir: dir, pkt: buf[:n], from: from, err: err}

		select {
		case ready <- ev:
		case <-e.manager.ShouldShutdown():
			return
		}
		if isClosed(err) {
			return
		}

		select {
		case <-ack:
		case <-e.manager.ShouldShutdown():
			return
		}
	}
}

// handle processes a single read event and returns whether the loop
// must stop.
func (e *Engine) handle(ev *readEvent) bool {
	if ev.err != nil {
		return e.readFailed(ev)
	}
	var (
		sent int
		err  error
	)
	switch ev.dir {
	case TunToNet:
		sent, err = e.endpoint.WritePacket(ev.pkt)
	case NetToTun:
		e.endpoint.ObservePeer(ev.from)
		sent, err = e.device.Write(ev.pkt)
	}
	if err != nil {
		return e.writeFailed(ev.dir, err)
	}
	e.account(ev.dir, len(ev.pkt))
	now := e.timeNow()
	e.logger.Infof("%d.%06d %s %d.%d", now.Unix(), now.Nanosecond()/1000, ev.dir, len(ev.pkt), sent)
	e.logger.Debugf("forwarder: %s: %s", ev.dir, packetx.Summary(ev.pkt))
	return false
}

func (e *Engine) readFailed(ev *readEvent) bool {
	switch {
	case isClosed(ev.err):
		e.logger.Infof("forwarder: %s: descriptor closed", ev.dir)
		return true
	case errors.Is(ev.err, ErrOversizedPacket):
		e.dropped.Add(1)
		e.logger.Warnf("forwarder: %s: dropping oversized packet (read %d of max %d bytes)",
			ev.dir, len(ev.pkt), e.bufsize)
		return false
	default:
		e.logger.Warnf("forwarder: %s: read: %s", ev.dir, ev.err.Error())
		return false
	}
}

func (e *Engine) writeFailed(dir Direction, err error) bool {
	e.dropped.Add(1)
	switch {
	case isClosed(err):
		e.logger.Infof("forwarder: %s: descriptor closed", dir)
		return true
	case errors.Is(err, networkio.ErrNoPeer):
		e.logger.Debugf("forwarder: %s: no peer yet, dropping packet", dir)
		return false
	default:
		e.logger.Warnf("forwarder: %s: write: %s", dir, err.Error())
		return false
	}
}

func (e *Engine) account(dir Direction, n int) {
	switch dir {
	case TunToNet:
		e.tunToNetPackets.Add(1)
		e.tunToNetBytes.Add(uint64(n))
	case NetToTun:
		e.netToTunPackets.Add(1)
		e.netToTunBytes.Add(uint64(n))
	}
}

// isClosed returns whether err means the descriptor was closed.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF)
}
