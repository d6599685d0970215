package tunnel

import (
	"context"
	"net"
	"strconv"

	"github.com/ooni/minitun/internal/forwarder"
	"github.com/ooni/minitun/internal/networkio"
	"github.com/ooni/minitun/pkg/config"
)

// hostMask selects a single address.
const hostMask = "255.255.255.255"

// StartClient brings up the client end of the tunnel:
//
//  1. resolve the server and find the current default gateway;
//  2. create and configure the tun device;
//  3. route the server through the old gateway and everything else
//     through the tunnel;
//  4. connect the UDP socket.
//
// Nothing is changed on the system when there is no default gateway.
func StartClient(ctx context.Context, cfg *config.Config, env *Environment) (*Tunnel, error) {
	t := newTunnel(cfg, env)
	logger := cfg.Logger()

	serverIP, err := networkio.Resolve(ctx, env.Resolver, cfg.RemoteHost())
	if err != nil {
		return t.fail(err)
	}
	logger.Infof("tunnel: server %s is %s", cfg.RemoteHost(), serverIP)

	var gateway net.IP
	if !cfg.SkipRoutes() {
		if gateway, err = env.DefaultGateway(); err != nil {
			return t.fail(err)
		}
	}

	if err := t.setupDevice(cfg, env); err != nil {
		return t.fail(err)
	}

	if !cfg.SkipRoutes() {
		if err := t.installClientRoutes(cfg, serverIP, gateway); err != nil {
			return t.fail(err)
		}
	}

	dialer := networkio.NewDialer(logger, env.Dialer)
	endpoint := net.JoinHostPort(serverIP.String(), strconv.Itoa(cfg.Port()))
	conn, err := dialer.DialContext(ctx, endpoint)
	if err != nil {
		return t.fail(err)
	}
	t.endpoint = conn
	t.engine = forwarder.NewEngine(logger, t.device, t.endpoint, cfg.BufferSize())
	return t, nil
}

// installClientRoutes keeps the server reachable through the physical
// gateway and sends everything else to the server tun address.
func (t *Tunnel) installClientRoutes(cfg *config.Config, serverIP, gateway net.IP) error {
	if err := t.routes.AddRoute(serverIP.String(), hostMask, gateway.String()); err != nil {
		return err
	}
	if err := t.routes.AddRouteDirect(cfg.ServerTunIP(), hostMask, t.device.Name()); err != nil {
		return err
	}
	if !cfg.SplitDefaultRoute() {
		return t.routes.AddRoute("0.0.0.0", "0.0.0.0", cfg.ServerTunIP())
	}
	// two /1 routes are more specific than the existing default route
	if err := t.routes.AddRoute("0.0.0.0", "128.0.0.0", cfg.ServerTunIP()); err != nil {
		return err
	}
	return t.routes.AddRoute("128.0.0.0", "128.0.0.0", cfg.ServerTunIP())
}
