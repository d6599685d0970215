//go:build !linux

package routing

import "errors"

var errUnsupported = errors.New("routing: route changes are only implemented on linux")

type systemNetlinker struct{}

func (n *systemNetlinker) RouteAdd(route *Route) error { return errUnsupported }
func (n *systemNetlinker) RouteDel(route *Route) error { return errUnsupported }
