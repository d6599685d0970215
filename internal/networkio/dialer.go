package networkio

import (
	"context"
	"fmt"

	"github.com/ooni/minitun/internal/model"
)

// Dialer creates client endpoints. The zero value of this structure is
// invalid; please, use the [NewDialer] constructor.
type Dialer struct {
	// dialer is the underlying [model.Dialer] we use to dial.
	dialer model.Dialer

	// logger is the [model.Logger] with which we log.
	logger model.Logger
}

// NewDialer creates a new [Dialer] instance.
func NewDialer(logger model.Logger, dialer model.Dialer) *Dialer {
	return &Dialer{
		dialer: dialer,
		logger: logger,
	}
}

// DialContext creates a UDP socket connected to address. Connecting a UDP
// socket fixes the destination of every following send.
func (d *Dialer) DialContext(ctx context.Context, address string) (*ConnectedEndpoint, error) {
	conn, err := d.dialer.DialContext(ctx, "udp4", address)
	if err != nil {
		d.logger.Warnf("networkio: dial failed: %s", err.Error())
		return nil, fmt.Errorf("%w: %s", ErrConnect, err)
	}
	d.logger.Infof("networkio: connected %s -> %s", conn.LocalAddr(), conn.RemoteAddr())
	return newConnectedEndpoint(conn), nil
}
