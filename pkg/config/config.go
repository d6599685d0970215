// Package config contains the configuration of a tunnel endpoint. A
// [Config] is built once at startup and is immutable afterwards.
package config

import (
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/ooni/minitun/internal/model"
	"github.com/ooni/minitun/internal/tun"
)

// ErrBadConfig is returned by [Config.Validate] for an unusable configuration.
var ErrBadConfig = errors.New("config: bad configuration")

// Role selects which end of the tunnel we are.
type Role string

const (
	// RoleClient connects to a server and routes all traffic through it.
	RoleClient = Role("client")

	// RoleServer waits for a client and forwards its traffic.
	RoleServer = Role("server")
)

// ParseRole converts a string into a [Role].
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient, RoleServer:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrBadConfig, s)
	}
}

const (
	// DefaultPort is the UDP port used by both ends.
	DefaultPort = 22331

	// DefaultClientTunIP is the address of the client tun device.
	DefaultClientTunIP = "10.0.0.100"

	// DefaultServerTunIP is the address of the server tun device. The
	// client uses it as the gateway of its tunnel default route.
	DefaultServerTunIP = "10.0.0.1"

	// DefaultTunMask is the netmask of both tun devices.
	DefaultTunMask = "255.0.0.0"

	// DefaultBufferSize is the largest packet we forward.
	DefaultBufferSize = 2000
)

// Config contains options to initialize a tunnel endpoint.
type Config struct {
	role              Role
	remoteHost        string
	port              int
	tunIP             string
	tunMask           string
	serverTunIP       string
	deviceName        string
	mtu               int
	bufferSize        int
	skipRoutes        bool
	splitDefaultRoute bool
	enableForwarding  bool

	// logger will be used to log events.
	logger model.Logger

	// err is the first error returned by an option.
	err error
}

// NewConfig returns a Config ready to initialize a tunnel. Options are
// applied in order, so an option overrides the ones before it. The tun
// address defaults depend on the role.
func NewConfig(options ...Option) *Config {
	cfg := &Config{
		role:              RoleClient,
		port:              DefaultPort,
		tunMask:           DefaultTunMask,
		serverTunIP:       DefaultServerTunIP,
		bufferSize:        DefaultBufferSize,
		splitDefaultRoute: true,
		enableForwarding:  true,
		logger:            log.Log,
	}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.tunIP == "" {
		switch cfg.role {
		case RoleServer:
			cfg.tunIP = DefaultServerTunIP
		default:
			cfg.tunIP = DefaultClientTunIP
		}
	}
	return cfg
}

// Validate returns an error wrapping [ErrBadConfig] if the configuration
// cannot be used.
func (c *Config) Validate() error {
	if c.err != nil {
		return fmt.Errorf("%w: %s", ErrBadConfig, c.err)
	}
	if _, err := ParseRole(string(c.role)); err != nil {
		return err
	}
	if c.role == RoleClient && c.remoteHost == "" {
		return fmt.Errorf("%w: the client needs a server address", ErrBadConfig)
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrBadConfig, c.port)
	}
	for _, addr := range []string{c.tunIP, c.serverTunIP} {
		if _, err := tun.ParseIPv4(addr); err != nil {
			return fmt.Errorf("%w: %s", ErrBadConfig, err)
		}
	}
	if _, err := tun.ParseMask(c.tunMask); err != nil {
		return fmt.Errorf("%w: %s", ErrBadConfig, err)
	}
	if c.mtu != 0 && (c.mtu < 68 || c.mtu > 65535) {
		return fmt.Errorf("%w: invalid MTU %d", ErrBadConfig, c.mtu)
	}
	if c.bufferSize < 1 || c.bufferSize > 65535 {
		return fmt.Errorf("%w: invalid buffer size %d", ErrBadConfig, c.bufferSize)
	}
	return nil
}

// Role returns the configured role.
func (c *Config) Role() Role {
	return c.role
}

// RemoteHost returns the server host name or address.
func (c *Config) RemoteHost() string {
	return c.remoteHost
}

// Port returns the UDP port.
func (c *Config) Port() int {
	return c.port
}

// TunIP returns the address of the local tun device.
func (c *Config) TunIP() string {
	return c.tunIP
}

// TunMask returns the netmask of the local tun device.
func (c *Config) TunMask() string {
	return c.tunMask
}

// ServerTunIP returns the address of the server tun device.
func (c *Config) ServerTunIP() string {
	return c.serverTunIP
}

// DeviceName returns the requested tun device name. Empty means
// the OS picks one.
func (c *Config) DeviceName() string {
	return c.deviceName
}

// MTU returns the tun MTU. Zero means the kernel default.
func (c *Config) MTU() int {
	return c.mtu
}

// BufferSize returns the size of the per-direction read buffers.
func (c *Config) BufferSize() int {
	return c.bufferSize
}

// SkipRoutes returns whether the client should leave the routing table alone.
func (c *Config) SkipRoutes() bool {
	return c.skipRoutes
}

// SplitDefaultRoute returns whether the client replaces the default route
// with two /1 routes instead of a 0.0.0.0/0 route.
func (c *Config) SplitDefaultRoute() bool {
	return c.splitDefaultRoute
}

// EnableForwarding returns whether the server turns on IPv4 forwarding.
func (c *Config) EnableForwarding() bool {
	return c.enableForwarding
}

// Logger returns the configured logger.
func (c *Config) Logger() model.Logger {
	return c.logger
}
