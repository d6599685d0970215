package vpntest

import (
	"io"
	"os"
	"sync"
)

type readItem struct {
	pkt []byte
	err error
}

// Device is an in-memory tun device. Packets given to Inject are returned
// by Read, as if the local stack had routed them into the tunnel. Packets
// passed to Write are delivered on Written. The zero value is invalid;
// use [NewDevice].
type Device struct {
	// Written receives a copy of every packet written to the device.
	Written chan []byte

	// MockWrite, when set, replaces the default Write behavior.
	MockWrite func(b []byte) (int, error)

	toRead    chan readItem
	closed    chan struct{}
	closeOnce sync.Once
}

var _ io.ReadWriteCloser = &Device{}

// NewDevice creates a new [Device].
func NewDevice() *Device {
	return &Device{
		Written: make(chan []byte, 64),
		toRead:  make(chan readItem),
		closed:  make(chan struct{}),
	}
}

// Inject makes the next Read return pkt. It blocks until a reader takes it.
func (d *Device) Inject(pkt []byte) {
	select {
	case d.toRead <- readItem{pkt: pkt}:
	case <-d.closed:
	}
}

// InjectError makes the next Read return err.
func (d *Device) InjectError(err error) {
	select {
	case d.toRead <- readItem{err: err}:
	case <-d.closed:
	}
}

// Read implements io.Reader. Like a real tun device, a packet larger than
// b is silently truncated.
func (d *Device) Read(b []byte) (int, error) {
	select {
	case item := <-d.toRead:
		if item.err != nil {
			return 0, item.err
		}
		return copy(b, item.pkt), nil
	case <-d.closed:
		return 0, os.ErrClosed
	}
}

// Write implements io.Writer.
func (d *Device) Write(b []byte) (int, error) {
	if d.MockWrite != nil {
		return d.MockWrite(b)
	}
	pkt := make([]byte, len(b))
	copy(pkt, b)
	select {
	case <-d.closed:
		return 0, os.ErrClosed
	default:
	}
	select {
	case d.Written <- pkt:
		return len(b), nil
	case <-d.closed:
		return 0, os.ErrClosed
	}
}

// Close implements io.Closer. Pending and future reads fail with [os.ErrClosed].
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
	return nil
}
