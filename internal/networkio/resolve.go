package networkio

import (
	"context"
	"fmt"
	"net"

	"github.com/ooni/minitun/internal/model"
)

// Resolve returns the first IPv4 address of host. Numeric addresses are
// returned without any lookup.
func Resolve(ctx context.Context, resolver model.Resolver, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("%w: %s is not an IPv4 address", ErrResolve, host)
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResolve, err)
	}
	for _, addr := range addrs {
		if ip4 := addr.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("%w: no IPv4 address for %s", ErrResolve, host)
}
