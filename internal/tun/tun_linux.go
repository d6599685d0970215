package tun

import (
	"io"
	"net"

	"github.com/Doridian/water"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// waterOpener opens tun devices with IFF_TUN|IFF_NO_PI through water.
type waterOpener struct{}

var _ Opener = &waterOpener{}

// Open implements Opener.
func (o *waterOpener) Open(name string) (io.ReadWriteCloser, string, error) {
	iface, err := water.New(water.Config{
		DeviceType: water.TUN,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name: name,
		},
	})
	if err != nil {
		return nil, "", err
	}
	return iface, iface.Name(), nil
}

// systemLink configures links with netlink, except for address and mask
// which are set one at a time with the SIOCSIFADDR and SIOCSIFNETMASK ioctls.
type systemLink struct{}

var _ LinkConfigurator = &systemLink{}

// IsUp implements LinkConfigurator.
func (l *systemLink) IsUp(name string) (bool, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return false, err
	}
	return link.Attrs().Flags&net.FlagUp != 0, nil
}

// SetUp implements LinkConfigurator.
func (l *systemLink) SetUp(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return err
	}
	return netlink.LinkSetUp(link)
}

// SetAddress implements LinkConfigurator.
func (l *systemLink) SetAddress(name string, addr net.IP) error {
	return ioctlInet4(name, unix.SIOCSIFADDR, addr.To4())
}

// SetMask implements LinkConfigurator.
func (l *systemLink) SetMask(name string, mask net.IPMask) error {
	return ioctlInet4(name, unix.SIOCSIFNETMASK, []byte(mask))
}

// SetMTU implements LinkConfigurator.
func (l *systemLink) SetMTU(name string, mtu int) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return err
	}
	return netlink.LinkSetMTU(link, mtu)
}

func ioctlInet4(name string, req uint, value []byte) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return err
	}
	if err := ifr.SetInet4Addr(value); err != nil {
		return err
	}
	return unix.IoctlIfreq(fd, req, ifr)
}
