package networkio

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/ooni/minitun/internal/model"
	"github.com/ooni/minitun/internal/optional"
)

// Listen binds a UDP socket with SO_REUSEADDR on the wildcard address
// and the given port.
func Listen(ctx context.Context, logger model.Logger, port int) (*ListeningEndpoint, error) {
	lc := &net.ListenConfig{Control: reuseAddrControl}
	address := net.JoinHostPort("0.0.0.0", strconv.Itoa(port))
	pconn, err := lc.ListenPacket(ctx, "udp4", address)
	if err != nil {
		logger.Warnf("networkio: listen failed: %s", err.Error())
		return nil, fmt.Errorf("%w: %s", ErrBind, err)
	}
	logger.Infof("networkio: listening on %s", pconn.LocalAddr())
	return NewListeningEndpoint(logger, pconn), nil
}

// ListeningEndpoint is the server [Endpoint]: an unconnected UDP socket
// that sends to the last peer it heard from. Only one peer is tracked, so
// a second client silently takes over the tunnel.
type ListeningEndpoint struct {
	logger model.Logger
	pconn  net.PacketConn

	// msg is non-nil when pconn supports ReadMsgUDP.
	msg msgReader

	// peer is the sender of the most recent datagram.
	peer optional.Value[net.Addr]
}

var _ Endpoint = &ListeningEndpoint{}

// NewListeningEndpoint wraps an already bound packet conn. This
// function TAKES OWNERSHIP of the conn.
func NewListeningEndpoint(logger model.Logger, pconn net.PacketConn) *ListeningEndpoint {
	msg, _ := pconn.(msgReader)
	return &ListeningEndpoint{
		logger: logger,
		pconn:  newCloseOncePacketConn(pconn),
		msg:    msg,
		peer:   optional.None[net.Addr](),
	}
}

// ReadPacket implements Endpoint.
func (e *ListeningEndpoint) ReadPacket(buf []byte) (int, net.Addr, error) {
	if e.msg != nil {
		return readMsg(e.msg, buf)
	}
	return e.pconn.ReadFrom(buf)
}

// WritePacket implements Endpoint. Before the first datagram arrives
// there is no peer and we return [ErrNoPeer].
func (e *ListeningEndpoint) WritePacket(pkt []byte) (int, error) {
	peer, ok := e.peer.Get()
	if !ok {
		return 0, ErrNoPeer
	}
	return e.pconn.WriteTo(pkt, peer)
}

// ObservePeer implements Endpoint.
func (e *ListeningEndpoint) ObservePeer(addr net.Addr) bool {
	if addr == nil {
		return false
	}
	current, ok := e.peer.Get()
	if ok && sameAddr(current, addr) {
		return false
	}
	if ok {
		e.logger.Infof("networkio: peer changed %s -> %s", current, addr)
	} else {
		e.logger.Infof("networkio: learned peer %s", addr)
	}
	e.peer = optional.Some(addr)
	return true
}

// Peer implements Endpoint.
func (e *ListeningEndpoint) Peer() net.Addr {
	return e.peer.UnwrapOr(nil)
}

// LocalAddr implements Endpoint.
func (e *ListeningEndpoint) LocalAddr() net.Addr {
	return e.pconn.LocalAddr()
}

// Close implements Endpoint.
func (e *ListeningEndpoint) Close() error {
	return e.pconn.Close()
}
