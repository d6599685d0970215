// Package networkio implements the network side of the tunnel: a UDP
// socket where each datagram carries exactly one raw IP packet.
//
// The client uses a [ConnectedEndpoint], whose destination is fixed at
// connect time. The server uses a [ListeningEndpoint], which sends to
// whichever peer most recently sent it a datagram.
package networkio

import (
	"errors"
	"net"
)

var (
	// ErrConnect means we could not connect the client socket.
	ErrConnect = errors.New("networkio: connect error")

	// ErrBind means we could not bind the server socket.
	ErrBind = errors.New("networkio: bind error")

	// ErrResolve means we could not resolve the peer host name.
	ErrResolve = errors.New("networkio: resolve error")

	// ErrNoPeer means the server has not received any datagram yet, so
	// there is nobody to send to.
	ErrNoPeer = errors.New("networkio: no peer yet")

	// ErrTruncated means a datagram did not fit the read buffer.
	ErrTruncated = errors.New("networkio: datagram truncated")
)

// Endpoint is the network side of the tunnel.
//
// ReadPacket may be called from a goroutine of its own. WritePacket,
// ObservePeer and Peer must all be called from a single goroutine.
type Endpoint interface {
	// ReadPacket reads one datagram into buf and returns its length
	// and sender. A datagram larger than buf returns [ErrTruncated].
	ReadPacket(buf []byte) (int, net.Addr, error)

	// WritePacket sends pkt as a single datagram to the current peer.
	WritePacket(pkt []byte) (int, error)

	// ObservePeer records the sender of a received datagram and
	// returns whether the destination for WritePacket changed.
	ObservePeer(addr net.Addr) bool

	// Peer returns the current destination, or nil if unknown.
	Peer() net.Addr

	// LocalAddr returns the local socket address.
	LocalAddr() net.Addr

	// Close closes the socket. It is safe to call Close more than once.
	Close() error
}

// msgReader is implemented by *net.UDPConn. Using ReadMsgUDP lets us see
// the MSG_TRUNC flag, which plain Read and ReadFrom hide.
type msgReader interface {
	ReadMsgUDP(b, oob []byte) (n, oobn, flags int, addr *net.UDPAddr, err error)
}

// readMsg reads with ReadMsgUDP and converts MSG_TRUNC into [ErrTruncated].
func readMsg(r msgReader, buf []byte) (int, net.Addr, error) {
	n, _, flags, addr, err := r.ReadMsgUDP(buf, nil)
	if err != nil {
		return 0, nil, err
	}
	if isTruncated(flags) {
		return n, addr, ErrTruncated
	}
	return n, addr, nil
}

// sameAddr returns whether two addresses refer to the same endpoint.
func sameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Network() == b.Network() && a.String() == b.String()
}
