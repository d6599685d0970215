package routing

import (
	"errors"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// systemNetlinker talks to the kernel routing table over rtnetlink.
type systemNetlinker struct{}

var _ Netlinker = &systemNetlinker{}

// RouteAdd implements Netlinker.
func (n *systemNetlinker) RouteAdd(route *Route) error {
	nlr, err := toNetlink(route)
	if err != nil {
		return err
	}
	// Without NLM_F_EXCL the kernel fails only for an identical route. A
	// route to the same destination through another next hop is inserted
	// ahead of the existing ones, like route(8) does.
	if err := netlink.RouteAddEcmp(nlr); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return ErrRouteExists
		}
		return err
	}
	return nil
}

// RouteDel implements Netlinker.
func (n *systemNetlinker) RouteDel(route *Route) error {
	nlr, err := toNetlink(route)
	if err != nil {
		if route.Device != "" {
			// the device went away, and its routes with it
			return nil
		}
		return err
	}
	if err := netlink.RouteDel(nlr); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}

func toNetlink(route *Route) (*netlink.Route, error) {
	nlr := &netlink.Route{
		Dst: route.IPNet(),
	}
	if route.Gateway != nil {
		nlr.Gw = route.Gateway
		return nlr, nil
	}
	link, err := netlink.LinkByName(route.Device)
	if err != nil {
		return nil, err
	}
	nlr.LinkIndex = link.Attrs().Index
	nlr.Scope = netlink.SCOPE_LINK
	return nlr, nil
}
