//go:build !linux

package tun

import (
	"errors"
	"io"
	"net"

	"github.com/Doridian/water"
)

var errUnsupported = errors.New("tun: link configuration is only implemented on linux")

type waterOpener struct{}

// Open implements Opener. The name hint is ignored on this platform.
func (o *waterOpener) Open(name string) (io.ReadWriteCloser, string, error) {
	iface, err := water.New(water.Config{DeviceType: water.TUN})
	if err != nil {
		return nil, "", err
	}
	return iface, iface.Name(), nil
}

type systemLink struct{}

func (l *systemLink) IsUp(name string) (bool, error) { return false, errUnsupported }
func (l *systemLink) SetUp(name string) error { return errUnsupported }
func (l *systemLink) SetAddress(name string, addr net.IP) error { return errUnsupported }
func (l *systemLink) SetMask(name string, mask net.IPMask) error { return errUnsupported }
func (l *systemLink) SetMTU(name string, mtu int) error { return errUnsupported }
