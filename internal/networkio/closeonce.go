package networkio

import (
	"net"
	"sync"
)

// closeOnceConn is a [net.Conn] where the Close method has once semantics.
//
// The zero value is invalid; use [newCloseOnceConn].
type closeOnceConn struct {
	// once ensures we close just once.
	once sync.Once

	// err is the error returned by the first Close.
	err error

	// Conn is the underlying conn.
	net.Conn
}

var _ net.Conn = &closeOnceConn{}

// newCloseOnceConn creates a [closeOnceConn].
func newCloseOnceConn(conn net.Conn) *closeOnceConn {
	return &closeOnceConn{
		once: sync.Once{},
		Conn: conn,
	}
}

// Close implements net.Conn
func (c *closeOnceConn) Close() error {
	c.once.Do(func() {
		c.err = c.Conn.Close()
	})
	return c.err
}

// closeOncePacketConn is like [closeOnceConn] for a [net.PacketConn].
type closeOncePacketConn struct {
	once sync.Once
	err  error
	net.PacketConn
}

var _ net.PacketConn = &closeOncePacketConn{}

func newCloseOncePacketConn(pconn net.PacketConn) *closeOncePacketConn {
	return &closeOncePacketConn{PacketConn: pconn}
}

// Close implements net.PacketConn
func (c *closeOncePacketConn) Close() error {
	c.once.Do(func() {
		c.err = c.PacketConn.Close()
	})
	return c.err
}
