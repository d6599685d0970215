package config

import (
	"github.com/ooni/minitun/internal/model"
)

// Option is an option you can pass to [NewConfig].
type Option func(config *Config)

// WithRole configures the role.
func WithRole(role Role) Option {
	return func(config *Config) {
		config.role = role
	}
}

// WithRemote configures the server host name or address.
func WithRemote(host string) Option {
	return func(config *Config) {
		config.remoteHost = host
	}
}

// WithPort configures the UDP port.
func WithPort(port int) Option {
	return func(config *Config) {
		config.port = port
	}
}

// WithTunAddress configures the address and netmask of the tun device.
func WithTunAddress(ip, mask string) Option {
	return func(config *Config) {
		config.tunIP = ip
		config.tunMask = mask
	}
}

// WithServerTunIP configures the server tun address, which the client
// uses as the gateway of its tunnel default route.
func WithServerTunIP(ip string) Option {
	return func(config *Config) {
		config.serverTunIP = ip
	}
}

// WithDeviceName configures the requested tun device name.
func WithDeviceName(name string) Option {
	return func(config *Config) {
		config.deviceName = name
	}
}

// WithMTU configures the tun MTU.
func WithMTU(mtu int) Option {
	return func(config *Config) {
		config.mtu = mtu
	}
}

// WithBufferSize configures the size of the read buffers.
func WithBufferSize(size int) Option {
	return func(config *Config) {
		config.bufferSize = size
	}
}

// WithSkipRoutes configures whether the client leaves the routing table alone.
func WithSkipRoutes(skip bool) Option {
	return func(config *Config) {
		config.skipRoutes = skip
	}
}

// WithSplitDefaultRoute configures how the client installs its default route.
func WithSplitDefaultRoute(split bool) Option {
	return func(config *Config) {
		config.splitDefaultRoute = split
	}
}

// WithForwarding configures whether the server enables IPv4 forwarding.
func WithForwarding(enable bool) Option {
	return func(config *Config) {
		config.enableForwarding = enable
	}
}

// WithLogger configures the passed [model.Logger].
func WithLogger(logger model.Logger) Option {
	return func(config *Config) {
		config.logger = logger
	}
}

// WithConfigFile applies the settings read from a YAML file. Errors are
// reported by [Config.Validate].
func WithConfigFile(path string) Option {
	return func(config *Config) {
		file, err := ReadConfigFile(path)
		if err != nil {
			if config.err == nil {
				config.err = err
			}
			return
		}
		file.apply(config)
	}
}
