package tunnel

import (
	"context"
	"net"

	"github.com/ooni/minitun/internal/model"
	"github.com/ooni/minitun/internal/networkio"
	"github.com/ooni/minitun/internal/routing"
	"github.com/ooni/minitun/internal/tun"
)

// SimpleDialer establishes network connections.
type SimpleDialer interface {
	DialContext(ctx context.Context, network, endpoint string) (net.Conn, error)
}

// SimpleResolver resolves host names.
type SimpleResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Environment groups the OS collaborators used by the role drivers.
type Environment struct {
	// Dialer connects the client socket.
	Dialer SimpleDialer

	// Resolver resolves the server host name.
	Resolver SimpleResolver

	// Interfaces creates and configures the tun device.
	Interfaces *tun.Manager

	// Routes installs routes and removes them on close.
	Routes *routing.Table

	// DefaultGateway returns the gateway of the default route.
	DefaultGateway func() (net.IP, error)

	// EnableForward turns on IPv4 forwarding.
	EnableForward func() (changed bool, err error)

	// Listen binds the server socket.
	Listen func(ctx context.Context, logger model.Logger, port int) (networkio.Endpoint, error)
}

// NewSystemEnvironment returns an [Environment] that talks to the
// running kernel.
func NewSystemEnvironment(logger model.Logger) *Environment {
	return &Environment{
		Dialer:         &net.Dialer{},
		Resolver:       net.DefaultResolver,
		Interfaces:     tun.NewSystemManager(logger),
		Routes:         routing.NewSystemTable(logger),
		DefaultGateway: routing.NewGatewayDiscoverer(logger).DefaultGateway,
		EnableForward: func() (bool, error) {
			return routing.EnableForward(routing.ProcIPForward)
		},
		Listen: func(ctx context.Context, logger model.Logger, port int) (networkio.Endpoint, error) {
			return networkio.Listen(ctx, logger, port)
		},
	}
}
