// Package tun implements the interface manager: it allocates the virtual
// point-to-point interface, brings it up and assigns its address and mask.
//
// The name returned by the OS when creating the device must be used
// verbatim in all the following configuration calls.
package tun

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/ooni/minitun/internal/model"
)

var (
	// ErrDeviceUnavailable means we could not allocate a tun device.
	ErrDeviceUnavailable = errors.New("tun: device unavailable")

	// ErrConfiguration means the OS rejected an interface configuration call.
	ErrConfiguration = errors.New("tun: configuration error")

	// ErrInvalidAddress means an address or mask is not valid dotted-decimal IPv4.
	ErrInvalidAddress = errors.New("tun: invalid address")
)

// Opener allocates tun devices.
type Opener interface {
	// Open requests a new tun device. The name is a hint and may be empty,
	// in which case the OS chooses one. It returns the open device and
	// the name the OS actually assigned.
	Open(name string) (io.ReadWriteCloser, string, error)
}

// LinkConfigurator performs the OS calls that configure a link by name.
type LinkConfigurator interface {
	// IsUp returns whether the link is administratively up.
	IsUp(name string) (bool, error)

	// SetUp sets the administrative up flag.
	SetUp(name string) error

	// SetAddress assigns an IPv4 address to the link.
	SetAddress(name string, addr net.IP) error

	// SetMask assigns an IPv4 netmask to the link.
	SetMask(name string, mask net.IPMask) error

	// SetMTU sets the link MTU.
	SetMTU(name string, mtu int) error
}

// Device is the local end of the tunnel. We own it exclusively until Close.
type Device struct {
	rwc       io.ReadWriteCloser
	name      string
	closeOnce sync.Once
	closeErr  error
}

var _ io.ReadWriteCloser = &Device{}

// NewDevice wraps an already open tun device.
func NewDevice(rwc io.ReadWriteCloser, name string) *Device {
	return &Device{rwc: rwc, name: name}
}

// Name returns the OS-assigned device name.
func (d *Device) Name() string {
	return d.name
}

// Read reads a single IP packet from the device.
func (d *Device) Read(b []byte) (int, error) {
	return d.rwc.Read(b)
}

// Write injects a single IP packet into the local network stack.
func (d *Device) Write(b []byte) (int, error) {
	return d.rwc.Write(b)
}

// Close releases the device. The OS removes the interface once the
// last descriptor referring to it is closed.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.rwc.Close()
	})
	return d.closeErr
}

// Manager creates and configures tun devices. The zero value is
// invalid; use [NewManager] or [NewSystemManager].
type Manager struct {
	logger model.Logger
	opener Opener
	link   LinkConfigurator
}

// NewManager creates a [Manager] using the given opener and configurator.
func NewManager(logger model.Logger, opener Opener, link LinkConfigurator) *Manager {
	return &Manager{
		logger: logger,
		opener: opener,
		link:   link,
	}
}

// NewSystemManager creates a [Manager] that talks to the running kernel.
func NewSystemManager(logger model.Logger) *Manager {
	return NewManager(logger, &waterOpener{}, &systemLink{})
}

// CreateInterface allocates a new tun device. The name is a hint; pass
// an empty string to let the OS choose.
func (m *Manager) CreateInterface(name string) (*Device, error) {
	rwc, assigned, err := m.opener.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, err)
	}
	if assigned == "" {
		rwc.Close()
		return nil, fmt.Errorf("%w: the OS did not assign a device name", ErrDeviceUnavailable)
	}
	m.logger.Infof("tun: created device %s", assigned)
	return NewDevice(rwc, assigned), nil
}

// ActivateInterface brings the named interface up. It is a no-op when
// the interface is already up.
func (m *Manager) ActivateInterface(name string) error {
	up, err := m.link.IsUp(name)
	if err != nil {
		return fmt.Errorf("%w: get flags of %s: %s", ErrConfiguration, name, err)
	}
	if up {
		m.logger.Debugf("tun: %s is already up", name)
		return nil
	}
	if err := m.link.SetUp(name); err != nil {
		return fmt.Errorf("%w: set %s up: %s", ErrConfiguration, name, err)
	}
	m.logger.Infof("tun: %s is up", name)
	return nil
}

// AssignAddress assigns the dotted-decimal IPv4 address to the named interface.
func (m *Manager) AssignAddress(name, address string) error {
	ip, err := ParseIPv4(address)
	if err != nil {
		return err
	}
	if err := m.link.SetAddress(name, ip); err != nil {
		return fmt.Errorf("%w: set address %s on %s: %s", ErrConfiguration, address, name, err)
	}
	m.logger.Infof("tun: %s address %s", name, ip)
	return nil
}

// AssignMask assigns the dotted-decimal IPv4 netmask to the named interface.
func (m *Manager) AssignMask(name, mask string) error {
	ipMask, err := ParseMask(mask)
	if err != nil {
		return err
	}
	if err := m.link.SetMask(name, ipMask); err != nil {
		return fmt.Errorf("%w: set mask %s on %s: %s", ErrConfiguration, mask, name, err)
	}
	m.logger.Infof("tun: %s netmask %s", name, mask)
	return nil
}

// SetMTU sets the MTU of the named interface. A zero MTU is ignored.
func (m *Manager) SetMTU(name string, mtu int) error {
	if mtu == 0 {
		return nil
	}
	if mtu < 0 {
		return fmt.Errorf("%w: negative mtu %d", ErrConfiguration, mtu)
	}
	if err := m.link.SetMTU(name, mtu); err != nil {
		return fmt.Errorf("%w: set mtu %d on %s: %s", ErrConfiguration, mtu, name, err)
	}
	m.logger.Infof("tun: %s mtu %d", name, mtu)
	return nil
}

// ParseIPv4 parses a dotted-decimal IPv4 address.
func ParseIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return ip, nil
}

// ParseMask parses a dotted-decimal IPv4 netmask. Non-contiguous masks
// are rejected.
func ParseMask(s string) (net.IPMask, error) {
	ip, err := ParseIPv4(s)
	if err != nil {
		return nil, err
	}
	mask := net.IPMask(ip)
	if _, bits := mask.Size(); bits == 0 {
		return nil, fmt.Errorf("%w: non-canonical mask %q", ErrInvalidAddress, s)
	}
	return mask, nil
}
