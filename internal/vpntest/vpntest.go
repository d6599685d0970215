// Package vpntest provides test doubles for the tunnel packages: mocked
// connections, dialers and resolvers, and an in-memory tun device.
package vpntest

import (
	"context"
	"net"
	"time"
)

// Addr is a mockable [net.Addr].
type Addr struct {
	MockString  func() string
	MockNetwork func() string
}

var _ net.Addr = &Addr{}

// String implements net.Addr.
func (a *Addr) String() string {
	return a.MockString()
}

// Network implements net.Addr.
func (a *Addr) Network() string {
	return a.MockNetwork()
}

// NewAddr returns an [Addr] with fixed network and string.
func NewAddr(network, address string) *Addr {
	return &Addr{
		MockString:  func() string { return address },
		MockNetwork: func() string { return network },
	}
}

// Conn is a mockable [net.Conn]. Unset methods panic when called,
// except for the deadline setters, which succeed.
type Conn struct {
	MockRead       func(b []byte) (int, error)
	MockWrite      func(b []byte) (int, error)
	MockClose      func() error
	MockLocalAddr  func() net.Addr
	MockRemoteAddr func() net.Addr
}

var _ net.Conn = &Conn{}

// Read implements net.Conn.
func (c *Conn) Read(b []byte) (int, error) {
	return c.MockRead(b)
}

// Write implements net.Conn.
func (c *Conn) Write(b []byte) (int, error) {
	return c.MockWrite(b)
}

// Close implements net.Conn.
func (c *Conn) Close() error {
	return c.MockClose()
}

// LocalAddr implements net.Conn.
func (c *Conn) LocalAddr() net.Addr {
	return c.MockLocalAddr()
}

// RemoteAddr implements net.Conn.
func (c *Conn) RemoteAddr() net.Addr {
	return c.MockRemoteAddr()
}

// SetDeadline implements net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	return nil
}

// SetReadDeadline implements net.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return nil
}

// SetWriteDeadline implements net.Conn.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return nil
}

// Dialer is a mockable dialer.
type Dialer struct {
	MockDialContext func(ctx context.Context, network, address string) (net.Conn, error)
}

// DialContext calls MockDialContext.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d.MockDialContext(ctx, network, address)
}

// Resolver is a mockable resolver.
type Resolver struct {
	MockLookupIPAddr func(ctx context.Context, host string) ([]net.IPAddr, error)
}

// LookupIPAddr calls MockLookupIPAddr.
func (r *Resolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return r.MockLookupIPAddr(ctx, host)
}
