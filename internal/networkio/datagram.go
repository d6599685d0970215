package networkio

import (
	"net"
)

// ConnectedEndpoint is the client [Endpoint]: a connected UDP socket.
type ConnectedEndpoint struct {
	conn net.Conn

	// msg is non-nil when conn supports ReadMsgUDP.
	msg msgReader
}

var _ Endpoint = &ConnectedEndpoint{}

func newConnectedEndpoint(conn net.Conn) *ConnectedEndpoint {
	msg, _ := conn.(msgReader)
	return &ConnectedEndpoint{
		conn: newCloseOnceConn(conn),
		msg:  msg,
	}
}

// ReadPacket implements Endpoint.
func (e *ConnectedEndpoint) ReadPacket(buf []byte) (int, net.Addr, error) {
	if e.msg != nil {
		return readMsg(e.msg, buf)
	}
	n, err := e.conn.Read(buf)
	if err != nil {
		return 0, nil, err
	}
	return n, e.conn.RemoteAddr(), nil
}

// WritePacket implements Endpoint.
func (e *ConnectedEndpoint) WritePacket(pkt []byte) (int, error) {
	return e.conn.Write(pkt)
}

// ObservePeer implements Endpoint. The destination of a connected socket
// never changes.
func (e *ConnectedEndpoint) ObservePeer(addr net.Addr) bool {
	return false
}

// Peer implements Endpoint.
func (e *ConnectedEndpoint) Peer() net.Addr {
	return e.conn.RemoteAddr()
}

// LocalAddr implements Endpoint.
func (e *ConnectedEndpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

// Close implements Endpoint.
func (e *ConnectedEndpoint) Close() error {
	return e.conn.Close()
}
