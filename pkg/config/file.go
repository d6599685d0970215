package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML representation of a [Config]. Unset keys leave the
// corresponding setting alone.
//
//	role: client
//	remote: vpn.example.org
//	port: 22331
//	tun_ip: 10.0.0.100
//	tun_mask: 255.0.0.0
//	mtu: 1400
type File struct {
	Role              string `yaml:"role"`
	Remote            string `yaml:"remote"`
	Port              int    `yaml:"port"`
	TunIP             string `yaml:"tun_ip"`
	TunMask           string `yaml:"tun_mask"`
	ServerTunIP       string `yaml:"server_tun_ip"`
	Device            string `yaml:"device"`
	MTU               int    `yaml:"mtu"`
	BufferSize        int    `yaml:"buffer_size"`
	SkipRoutes        *bool  `yaml:"skip_routes"`
	SplitDefaultRoute *bool  `yaml:"split_default_route"`
	Forwarding        *bool  `yaml:"forwarding"`
}

// ReadConfigFile parses the YAML file at path.
func ReadConfigFile(path string) (*File, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ParseConfig(fp)
}

// ParseConfig parses a YAML document. Unknown keys are an error.
func ParseConfig(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	file := &File{}
	if err := dec.Decode(file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrBadConfig, err)
	}
	if file.Role != "" {
		if _, err := ParseRole(file.Role); err != nil {
			return nil, err
		}
	}
	return file, nil
}

func (f *File) apply(c *Config) {
	if f.Role != "" {
		c.role = Role(f.Role)
	}
	if f.Remote != "" {
		c.remoteHost = f.Remote
	}
	if f.Port != 0 {
		c.port = f.Port
	}
	if f.TunIP != "" {
		c.tunIP = f.TunIP
	}
	if f.TunMask != "" {
		c.tunMask = f.TunMask
	}
	if f.ServerTunIP != "" {
		c.serverTunIP = f.ServerTunIP
	}
	if f.Device != "" {
		c.deviceName = f.Device
	}
	if f.MTU != 0 {
		c.mtu = f.MTU
	}
	if f.BufferSize != 0 {
		c.bufferSize = f.BufferSize
	}
	if f.SkipRoutes != nil {
		c.skipRoutes = *f.SkipRoutes
	}
	if f.SplitDefaultRoute != nil {
		c.splitDefaultRoute = *f.SplitDefaultRoute
	}
	if f.Forwarding != nil {
		c.enableForwarding = *f.Forwarding
	}
}
