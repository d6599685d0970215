package tun

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ooni/minitun/internal/model"
)

// fakeDevice is an in-memory tun device.
type fakeDevice struct {
	bytes.Buffer
	closed int
}

func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

type fakeOpener struct {
	assigned string
	err      error
	device   *fakeDevice
	hint     string
}

func (o *fakeOpener) Open(name string) (io.ReadWriteCloser, string, error) {
	o.hint = name
	if o.err != nil {
		return nil, "", o.err
	}
	o.device = &fakeDevice{}
	return o.device, o.assigned, nil
}

// fakeLink records every configuration call.
type fakeLink struct {
	up       bool
	isUpErr  error
	setUpErr error
	setErr   error
	calls    []string
}

func (l *fakeLink) IsUp(name string) (bool, error) {
	l.calls = append(l.calls, "isup "+name)
	return l.up, l.isUpErr
}

func (l *fakeLink) SetUp(name string) error {
	l.calls = append(l.calls, "up "+name)
	if l.setUpErr != nil {
		return l.setUpErr
	}
	l.up = true
	return nil
}

func (l *fakeLink) SetAddress(name string, addr net.IP) error {
	l.calls = append(l.calls, "addr "+name+" "+addr.String())
	return l.setErr
}

func (l *fakeLink) SetMask(name string, mask net.IPMask) error {
	l.calls = append(l.calls, "mask "+name+" "+net.IP(mask).String())
	return l.setErr
}

func (l *fakeLink) SetMTU(name string, mtu int) error {
	l.calls = append(l.calls, "mtu "+name)
	return l.setErr
}

func TestCreateInterface(t *testing.T) {
	t.Run("returns the OS-assigned name", func(t *testing.T) {
		opener := &fakeOpener{assigned: "tun3"}
		m := NewManager(model.NewTestLogger(), opener, &fakeLink{})
		dev, err := m.CreateInterface("")
		if err != nil {
			t.Fatal(err)
		}
		if dev.Name() != "tun3" {
			t.Errorf("expected tun3, got %s", dev.Name())
		}
		if opener.hint != "" {
			t.Errorf("expected an empty hint, got %q", opener.hint)
		}
	})

	t.Run("open failures are ErrDeviceUnavailable", func(t *testing.T) {
		opener := &fakeOpener{err: errors.New("open /dev/net/tun: permission denied")}
		m := NewManager(model.NewTestLogger(), opener, &fakeLink{})
		_, err := m.CreateInterface("")
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("expected ErrDeviceUnavailable, got %v", err)
		}
	})

	t.Run("an empty assigned name is ErrDeviceUnavailable and closes the device", func(t *testing.T) {
		opener := &fakeOpener{assigned: ""}
		m := NewManager(model.NewTestLogger(), opener, &fakeLink{})
		_, err := m.CreateInterface("")
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("expected ErrDeviceUnavailable, got %v", err)
		}
		if opener.device.closed != 1 {
			t.Errorf("expected the device to be closed")
		}
	})
}

func TestDevice(t *testing.T) {
	fd := &fakeDevice{}
	dev := NewDevice(fd, "tun0")
	if _, err := dev.Write([]byte{0x45, 0x00}); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 2000)
	n, err := dev.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf[:n], []byte{0x45, 0x00}) {
		t.Errorf("unexpected bytes read: %v", buf[:n])
	}
	dev.Close()
	dev.Close()
	if fd.closed != 1 {
		t.Errorf("expected a single close, got %d", fd.closed)
	}
}

func TestActivateInterface(t *testing.T) {
	t.Run("sets the up flag when down", func(t *testing.T) {
		link := &fakeLink{}
		m := NewManager(model.NewTestLogger(), &fakeOpener{}, link)
		if err := m.ActivateInterface("tun0"); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"isup tun0", "up tun0"}, link.calls); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("is a no-op when already up", func(t *testing.T) {
		link := &fakeLink{up: true}
		m := NewManager(model.NewTestLogger(), &fakeOpener{}, link)
		if err := m.ActivateInterface("tun0"); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"isup tun0"}, link.calls); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("flag query failures are ErrConfiguration", func(t *testing.T) {
		link := &fakeLink{isUpErr: errors.New("no such device")}
		m := NewManager(model.NewTestLogger(), &fakeOpener{}, link)
		if err := m.ActivateInterface("tun0"); !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})

	t.Run("flag update failures are ErrConfiguration", func(t *testing.T) {
		link := &fakeLink{setUpErr: errors.New("operation not permitted")}
		m := NewManager(model.NewTestLogger(), &fakeOpener{}, link)
		if err := m.ActivateInterface("tun0"); !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestAssignAddressAndMask(t *testing.T) {
	t.Run("valid address and mask are passed to the OS", func(t *testing.T) {
		link := &fakeLink{}
		m := NewManager(model.NewTestLogger(), &fakeOpener{}, link)
		if err := m.AssignAddress("tun0", "10.0.0.100"); err != nil {
			t.Fatal(err)
		}
		if err := m.AssignMask("tun0", "255.0.0.0"); err != nil {
			t.Fatal(err)
		}
		want := []string{"addr tun0 10.0.0.100", "mask tun0 255.0.0.0"}
		if diff := cmp.Diff(want, link.calls); diff != "" {
			t.Error(diff)
		}
	})

	invalid := []struct {
		name string
		fn   func(m *Manager) error
	}{
		{"garbage address", func(m *Manager) error { return m.AssignAddress("tun0", "ten.zero") }},
		{"ipv6 address", func(m *Manager) error { return m.AssignAddress("tun0", "fe80::1") }},
		{"empty address", func(m *Manager) error { return m.AssignAddress("tun0", "") }},
		{"garbage mask", func(m *Manager) error { return m.AssignMask("tun0", "255, 255, 255, 255") }},
		{"non-contiguous mask", func(m *Manager) error { return m.AssignMask("tun0", "255.0.255.0") }},
	}
	for _, tt := range invalid {
		t.Run(tt.name+" is ErrInvalidAddress", func(t *testing.T) {
			link := &fakeLink{}
			m := NewManager(model.NewTestLogger(), &fakeOpener{}, link)
			if err := tt.fn(m); !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("expected ErrInvalidAddress, got %v", err)
			}
			if len(link.calls) != 0 {
				t.Errorf("no OS call expected, got %v", link.calls)
			}
		})
	}

	t.Run("OS rejection is ErrConfiguration", func(t *testing.T) {
		link := &fakeLink{setErr: errors.New("no such device")}
		m := NewManager(model.NewTestLogger(), &fakeOpener{}, link)
		if err := m.AssignAddress("tun0", "10.0.0.1"); !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
		if err := m.AssignMask("tun0", "255.0.0.0"); !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestSetMTU(t *testing.T) {
	link := &fakeLink{}
	m := NewManager(model.NewTestLogger(), &fakeOpener{}, link)
	if err := m.SetMTU("tun0", 0); err != nil {
		t.Fatal(err)
	}
	if len(link.calls) != 0 {
		t.Errorf("zero mtu should not touch the link")
	}
	if err := m.SetMTU("tun0", 1400); err != nil {
		t.Fatal(err)
	}
	if err := m.SetMTU("tun0", -1); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}
