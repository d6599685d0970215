// Package tunnel contains the public tunnel API: the client and server
// role drivers and the running [Tunnel].
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ooni/minitun/internal/forwarder"
	"github.com/ooni/minitun/internal/model"
	"github.com/ooni/minitun/internal/networkio"
	"github.com/ooni/minitun/internal/routing"
	"github.com/ooni/minitun/internal/tun"
	"github.com/ooni/minitun/pkg/config"
	"golang.org/x/sync/errgroup"
)

// Tunnel is a configured tunnel endpoint. It owns the tun device, the UDP
// socket and the routes it installed until [Tunnel.Close].
type Tunnel struct {
	logger   model.Logger
	role     config.Role
	device   *tun.Device
	endpoint networkio.Endpoint
	routes   *routing.Table
	engine   *forwarder.Engine

	closeOnce sync.Once
	closeErr  error
}

// Start configures the system for the role in cfg and returns a [Tunnel]
// ready to [Tunnel.Run]. On error, everything acquired so far is released.
func Start(ctx context.Context, cfg *config.Config) (*Tunnel, error) {
	return StartWithEnvironment(ctx, cfg, NewSystemEnvironment(cfg.Logger()))
}

// StartWithEnvironment is like [Start] with explicit OS collaborators.
func StartWithEnvironment(ctx context.Context, cfg *config.Config, env *Environment) (*Tunnel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Role() {
	case config.RoleServer:
		return StartServer(ctx, cfg, env)
	default:
		return StartClient(ctx, cfg, env)
	}
}

func newTunnel(cfg *config.Config, env *Environment) *Tunnel {
	return &Tunnel{
		logger: cfg.Logger(),
		role:   cfg.Role(),
		routes: env.Routes,
	}
}

// setupDevice creates and configures the tun device.
func (t *Tunnel) setupDevice(cfg *config.Config, env *Environment) error {
	dev, err := env.Interfaces.CreateInterface(cfg.DeviceName())
	if err != nil {
		return err
	}
	t.device = dev
	name := dev.Name()
	if err := env.Interfaces.ActivateInterface(name); err != nil {
		return err
	}
	if err := env.Interfaces.AssignAddress(name, cfg.TunIP()); err != nil {
		return err
	}
	if err := env.Interfaces.AssignMask(name, cfg.TunMask()); err != nil {
		return err
	}
	return env.Interfaces.SetMTU(name, cfg.MTU())
}

// fail releases what was acquired and returns err.
func (t *Tunnel) fail(err error) (*Tunnel, error) {
	t.logger.Warnf("tunnel: %s startup failed: %s", t.role, err.Error())
	t.Close()
	return nil, err
}

// DeviceName returns the name of the tun device.
func (t *Tunnel) DeviceName() string {
	return t.device.Name()
}

// LocalAddr returns the address of the UDP socket.
func (t *Tunnel) LocalAddr() net.Addr {
	return t.endpoint.LocalAddr()
}

// Stats returns the forwarding counters.
func (t *Tunnel) Stats() forwarder.Stats {
	return t.engine.Stats()
}

// Run forwards packets until ctx is done or a descriptor is closed, then
// tears the tunnel down. It returns nil on a clean shutdown.
func (t *Tunnel) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// when the engine stops on its own we release the descriptors
		defer cancel()
		err := t.engine.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		return t.Close()
	})
	err := g.Wait()
	t.engine.Wait()
	stats := t.engine.Stats()
	t.logger.Infof("tunnel: done: TUN->NET %d packets %d bytes, NET->TUN %d packets %d bytes, %d dropped",
		stats.TunToNetPackets, stats.TunToNetBytes, stats.NetToTunPackets, stats.NetToTunBytes, stats.Dropped)
	return err
}

// Close closes the socket, removes the installed routes newest first and
// closes the tun device. It is safe to call Close more than once.
func (t *Tunnel) Close() error {
	t.closeOnce.Do(func() {
		var errs []error
		if t.endpoint != nil {
			if err := t.endpoint.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close socket: %w", err))
			}
		}
		if t.routes != nil {
			if err := t.routes.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if t.device != nil {
			if err := t.device.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", t.device.Name(), err))
			}
		}
		t.closeErr = errors.Join(errs...)
		t.logger.Infof("tunnel: %s closed", t.role)
	})
	return t.closeErr
}
