// Package routing implements the route manager: it discovers the default
// gateway and installs the static routes the tunnel needs.
//
// The client must keep reaching the server's physical address through
// the original default gateway. Only after that host route is installed
// is it safe to point the default route at the tunnel.
package routing

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ooni/minitun/internal/model"
)

var (
	// ErrNoDefaultGateway means the routing table has no default route.
	ErrNoDefaultGateway = errors.New("routing: no default gateway")

	// ErrRoute means the OS rejected a route change.
	ErrRoute = errors.New("routing: route error")

	// ErrInvalidAddress means a destination, mask or gateway is not valid IPv4.
	ErrInvalidAddress = errors.New("routing: invalid address")
)

// Route is an entry of the OS routing table. Exactly one of Gateway
// and Device is set.
type Route struct {
	// Destination is the destination network.
	Destination net.IP

	// Mask is the destination netmask.
	Mask net.IPMask

	// Gateway is the next hop for gateway routes.
	Gateway net.IP

	// Device is the outgoing interface for direct routes.
	Device string
}

// IPNet returns the destination network.
func (r *Route) IPNet() *net.IPNet {
	return &net.IPNet{IP: r.Destination.Mask(r.Mask), Mask: r.Mask}
}

// String returns a representation similar to the one used by ip-route(8).
func (r *Route) String() string {
	if r.Gateway != nil {
		return fmt.Sprintf("%s via %s", r.IPNet(), r.Gateway)
	}
	return fmt.Sprintf("%s dev %s", r.IPNet(), r.Device)
}

// Netlinker changes the OS routing table.
type Netlinker interface {
	// RouteAdd installs a route. It returns an error matching
	// [ErrRouteExists] only when an identical route is already installed.
	// A route with the same destination but a different gateway or device
	// is installed and takes precedence over the existing one.
	RouteAdd(route *Route) error

	// RouteDel removes a route.
	RouteDel(route *Route) error
}

// ErrRouteExists is returned by a [Netlinker] for duplicate routes.
var ErrRouteExists = errors.New("routing: route already exists")

// Table installs routes and remembers the ones it installed, so that
// [Table.Close] can remove them. The zero value is invalid; use [NewTable]
// or [NewSystemTable].
type Table struct {
	logger    model.Logger
	nl        Netlinker
	mu        sync.Mutex
	installed []*Route
	closed    bool
}

// NewTable creates a [Table] backed by the given [Netlinker].
func NewTable(logger model.Logger, nl Netlinker) *Table {
	return &Table{
		logger: logger,
		nl:     nl,
	}
}

// NewSystemTable creates a [Table] backed by the kernel routing table.
func NewSystemTable(logger model.Logger) *Table {
	return NewTable(logger, &systemNetlinker{})
}

// AddRoute installs a route to destination/mask through gateway. An
// identical route that already exists counts as success and is not removed
// by Close. A route to the same destination through another gateway does
// not count: ours is installed ahead of it and removed by Close.
func (t *Table) AddRoute(destination, mask, gateway string) error {
	route, err := newRoute(destination, mask)
	if err != nil {
		return err
	}
	gw, err := parseIPv4(gateway)
	if err != nil {
		return err
	}
	route.Gateway = gw
	return t.add(route)
}

// AddRouteDirect installs a route to destination/mask through the named
// device, without a gateway. A route that already exists counts as success.
func (t *Table) AddRouteDirect(destination, mask, device string) error {
	route, err := newRoute(destination, mask)
	if err != nil {
		return err
	}
	if device == "" {
		return fmt.Errorf("%w: empty device name", ErrInvalidAddress)
	}
	route.Device = device
	return t.add(route)
}

func (t *Table) add(route *Route) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("%w: table is closed", ErrRoute)
	}
	err := t.nl.RouteAdd(route)
	switch {
	case errors.Is(err, ErrRouteExists):
		t.logger.Infof("routing: %s already exists", route)
		return nil
	case err != nil:
		return fmt.Errorf("%w: add %s: %s", ErrRoute, route, err)
	}
	t.logger.Infof("routing: added %s", route)
	t.installed = append(t.installed, route)
	return nil
}

// Installed returns the routes this table added, oldest first.
func (t *Table) Installed() []*Route {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Route, len(t.installed))
	copy(out, t.installed)
	return out
}

// Close removes every route this table installed, newest first. Routes
// that were already gone are ignored. Close is idempotent.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	var errs []error
	for i := len(t.installed) - 1; i >= 0; i-- {
		route := t.installed[i]
		if err := t.nl.RouteDel(route); err != nil {
			t.logger.Warnf("routing: cannot remove %s: %s", route, err.Error())
			errs = append(errs, fmt.Errorf("%w: del %s: %s", ErrRoute, route, err))
			continue
		}
		t.logger.Infof("routing: removed %s", route)
	}
	t.installed = nil
	return errors.Join(errs...)
}

func newRoute(destination, mask string) (*Route, error) {
	dst, err := parseIPv4(destination)
	if err != nil {
		return nil, err
	}
	m, err := parseIPv4(mask)
	if err != nil {
		return nil, err
	}
	ipMask := net.IPMask(m)
	if _, bits := ipMask.Size(); bits == 0 {
		return nil, fmt.Errorf("%w: non-canonical mask %q", ErrInvalidAddress, mask)
	}
	return &Route{Destination: dst, Mask: ipMask}, nil
}

func parseIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return ip, nil
}
