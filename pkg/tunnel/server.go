package tunnel

import (
	"context"

	"github.com/ooni/minitun/internal/forwarder"
	"github.com/ooni/minitun/pkg/config"
)

// StartServer brings up the server end of the tunnel: it creates and
// configures the tun device, enables IPv4 forwarding and binds the UDP
// socket. The server learns its peer from the first datagram.
func StartServer(ctx context.Context, cfg *config.Config, env *Environment) (*Tunnel, error) {
	t := newTunnel(cfg, env)
	logger := cfg.Logger()

	if err := t.setupDevice(cfg, env); err != nil {
		return t.fail(err)
	}

	if cfg.EnableForwarding() {
		changed, err := env.EnableForward()
		if err != nil {
			return t.fail(err)
		}
		if changed {
			logger.Info("tunnel: enabled IPv4 forwarding")
		}
	}

	conn, err := env.Listen(ctx, logger, cfg.Port())
	if err != nil {
		return t.fail(err)
	}
	t.endpoint = conn
	t.engine = forwarder.NewEngine(logger, t.device, t.endpoint, cfg.BufferSize())
	return t, nil
}
