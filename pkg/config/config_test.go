package config

import (
	"errors"
	"os"
	fp "path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ooni/minitun/internal/model"
)

// settings is a comparable view of a Config.
type settings struct {
	Role              Role
	RemoteHost        string
	Port              int
	TunIP             string
	TunMask           string
	ServerTunIP       string
	DeviceName        string
	MTU               int
	BufferSize        int
	SkipRoutes        bool
	SplitDefaultRoute bool
	EnableForwarding  bool
}

func settingsOf(c *Config) settings {
	return settings{
		Role:              c.Role(),
		RemoteHost:        c.RemoteHost(),
		Port:              c.Port(),
		TunIP:             c.TunIP(),
		TunMask:           c.TunMask(),
		ServerTunIP:       c.ServerTunIP(),
		DeviceName:        c.DeviceName(),
		MTU:               c.MTU(),
		BufferSize:        c.BufferSize(),
		SkipRoutes:        c.SkipRoutes(),
		SplitDefaultRoute: c.SplitDefaultRoute(),
		EnableForwarding:  c.EnableForwarding(),
	}
}

func TestNewConfig(t *testing.T) {
	t.Run("default constructor does not fail", func(t *testing.T) {
		c := NewConfig()
		if c.logger == nil {
			t.Errorf("logger should not be nil")
		}
		want := settings{
			Role:              RoleClient,
			Port:              22331,
			TunIP:             "10.0.0.100",
			TunMask:           "255.0.0.0",
			ServerTunIP:       "10.0.0.1",
			BufferSize:        2000,
			SplitDefaultRoute: true,
			EnableForwarding:  true,
		}
		if diff := cmp.Diff(want, settingsOf(c)); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("the server gets the server tun address", func(t *testing.T) {
		c := NewConfig(WithRole(RoleServer))
		if c.TunIP() != "10.0.0.1" {
			t.Errorf("expected 10.0.0.1, got %s", c.TunIP())
		}
		if err := c.Validate(); err != nil {
			t.Errorf("a server needs no remote: %v", err)
		}
	})

	t.Run("WithLogger sets the logger", func(t *testing.T) {
		testLogger := model.NewTestLogger()
		c := NewConfig(WithLogger(testLogger))
		if c.Logger() != testLogger {
			t.Errorf("expected logger to be set to the configured one")
		}
	})

	t.Run("options override each other in order", func(t *testing.T) {
		c := NewConfig(
			WithRemote("vpn.example.org"),
			WithPort(4000),
			WithPort(5000),
			WithTunAddress("192.168.77.2", "255.255.255.0"),
			WithServerTunIP("192.168.77.1"),
			WithDeviceName("tun7"),
			WithMTU(1400),
			WithBufferSize(4096),
			WithSkipRoutes(true),
			WithSplitDefaultRoute(false),
			WithForwarding(false),
		)
		want := settings{
			Role:        RoleClient,
			RemoteHost:  "vpn.example.org",
			Port:        5000,
			TunIP:       "192.168.77.2",
			TunMask:     "255.255.255.0",
			ServerTunIP: "192.168.77.1",
			DeviceName:  "tun7",
			MTU:         1400,
			BufferSize:  4096,
			SkipRoutes:  true,
		}
		if diff := cmp.Diff(want, settingsOf(c)); diff != "" {
			t.Error(diff)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{"valid client", []Option{WithRemote("203.0.113.7")}, false},
		{"client without remote", nil, true},
		{"unknown role", []Option{WithRole("relay"), WithRemote("x")}, true},
		{"port zero", []Option{WithRemote("x"), WithPort(0)}, true},
		{"port too large", []Option{WithRemote("x"), WithPort(70000)}, true},
		{"bad tun address", []Option{WithRemote("x"), WithTunAddress("10.0.0", "255.0.0.0")}, true},
		{"ipv6 tun address", []Option{WithRemote("x"), WithTunAddress("fd00::1", "255.0.0.0")}, true},
		{"non contiguous mask", []Option{WithRemote("x"), WithTunAddress("10.0.0.100", "255.0.255.0")}, true},
		{"bad server tun address", []Option{WithRemote("x"), WithServerTunIP("nope")}, true},
		{"tiny MTU", []Option{WithRemote("x"), WithMTU(10)}, true},
		{"zero buffer", []Option{WithRemote("x"), WithBufferSize(0)}, true},
		{"missing config file", []Option{WithConfigFile("/nonexistent/minitun.yaml")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opts...).Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrBadConfig) {
				t.Fatalf("expected ErrBadConfig, got %v", err)
			}
		})
	}
}

var sampleConfigFile = `
role: server
port: 4000
tun_ip: 10.9.0.1
tun_mask: 255.255.0.0
device: tun9
mtu: 1400
forwarding: false
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	cfg := fp.Join(t.TempDir(), "minitun.yaml")
	if err := os.WriteFile(cfg, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestWithConfigFile(t *testing.T) {
	t.Run("applies the settings in the file", func(t *testing.T) {
		c := NewConfig(WithConfigFile(writeConfigFile(t, sampleConfigFile)))
		if err := c.Validate(); err != nil {
			t.Fatal(err)
		}
		want := settings{
			Role:              RoleServer,
			Port:              4000,
			TunIP:             "10.9.0.1",
			TunMask:           "255.255.0.0",
			ServerTunIP:       "10.0.0.1",
			DeviceName:        "tun9",
			MTU:               1400,
			BufferSize:        2000,
			SplitDefaultRoute: true,
			EnableForwarding:  false,
		}
		if diff := cmp.Diff(want, settingsOf(c)); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("later options override the file", func(t *testing.T) {
		c := NewConfig(WithConfigFile(writeConfigFile(t, sampleConfigFile)), WithPort(5555))
		if c.Port() != 5555 {
			t.Errorf("expected 5555, got %d", c.Port())
		}
	})

	t.Run("an empty file changes nothing", func(t *testing.T) {
		c := NewConfig(WithConfigFile(writeConfigFile(t, "")), WithRemote("x"))
		if err := c.Validate(); err != nil {
			t.Fatal(err)
		}
		if c.Port() != DefaultPort {
			t.Errorf("expected the default port, got %d", c.Port())
		}
	})
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"unknown key", "rmote: x\n", true},
		{"unknown role", "role: relay\n", true},
		{"wrong type", "port: many\n", true},
		{"booleans", "skip_routes: true\nsplit_default_route: false\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := ParseConfig(strings.NewReader(tt.input))
			if tt.wantErr {
				if !errors.Is(err, ErrBadConfig) {
					t.Fatalf("expected ErrBadConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if file.SkipRoutes == nil || !*file.SkipRoutes {
				t.Error("expected skip_routes to be true")
			}
			if file.SplitDefaultRoute == nil || *file.SplitDefaultRoute {
				t.Error("expected split_default_route to be false")
			}
			if file.Forwarding != nil {
				t.Error("expected forwarding to be unset")
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"client", "server"} {
		if role, err := ParseRole(s); err != nil || string(role) != s {
			t.Errorf("ParseRole(%q) = %q, %v", s, role, err)
		}
	}
	if _, err := ParseRole("CLIENT"); !errors.Is(err, ErrBadConfig) {
		t.Errorf("expected ErrBadConfig, got %v", err)
	}
}
