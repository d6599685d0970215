package routing

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/jackpal/gateway"
	"github.com/ooni/minitun/internal/model"
)

// ProcNetRoute is the kernel routing table exposed by procfs.
const ProcNetRoute = "/proc/net/route"

// DecodeHexIPv4 decodes an address as printed in [ProcNetRoute]. The
// kernel prints the in-memory 32 bit value, so on little-endian hosts
// "0102FEA9" is 169.254.2.1.
func DecodeHexIPv4(s string) (net.IP, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != net.IPv4len {
		return nil, fmt.Errorf("%w: bad hex address %q", ErrInvalidAddress, s)
	}
	ip := make(net.IP, net.IPv4len)
	binary.NativeEndian.PutUint32(ip, binary.BigEndian.Uint32(raw))
	return ip, nil
}

// ParseDefaultGateway reads a routing table in the [ProcNetRoute] format
// and returns the gateway of the default route with the lowest metric.
// Default routes without a gateway are ignored.
func ParseDefaultGateway(r io.Reader) (net.IP, error) {
	var (
		best       net.IP
		bestMetric = math.MaxInt
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[0] == "Iface" {
			continue
		}
		if fields[1] != "00000000" || fields[2] == "00000000" {
			continue
		}
		if len(fields) > 7 && fields[7] != "00000000" {
			continue
		}
		gw, err := DecodeHexIPv4(fields[2])
		if err != nil {
			return nil, err
		}
		metric := 0
		if len(fields) > 6 {
			if metric, err = strconv.Atoi(fields[6]); err != nil {
				return nil, fmt.Errorf("%w: bad metric %q", ErrInvalidAddress, fields[6])
			}
		}
		if metric < bestMetric {
			best, bestMetric = gw, metric
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, ErrNoDefaultGateway
	}
	return best, nil
}

// GatewayDiscoverer finds the current default gateway. The zero value
// is invalid; use [NewGatewayDiscoverer].
type GatewayDiscoverer struct {
	logger model.Logger

	// routeFile is the routing table in the ProcNetRoute format.
	routeFile string

	// fallback is used when routeFile cannot be opened.
	fallback func() (net.IP, error)

	// discoverInterface returns the local address of the default route.
	discoverInterface func() (net.IP, error)
}

// NewGatewayDiscoverer creates a discoverer reading [ProcNetRoute] and
// falling back to the platform-specific discovery of jackpal/gateway.
func NewGatewayDiscoverer(logger model.Logger) *GatewayDiscoverer {
	return &GatewayDiscoverer{
		logger:            logger,
		routeFile:         ProcNetRoute,
		fallback:          gateway.DiscoverGateway,
		discoverInterface: gateway.DiscoverInterface,
	}
}

// DefaultGateway returns the gateway of the default route, or an error
// wrapping [ErrNoDefaultGateway] when there is none.
func (d *GatewayDiscoverer) DefaultGateway() (net.IP, error) {
	gw, err := d.fromRouteFile()
	if errors.Is(err, os.ErrNotExist) {
		d.logger.Debugf("routing: %s not available, using platform discovery", d.routeFile)
		gw, err = d.fallback()
		if err != nil {
			err = fmt.Errorf("%w: %s", ErrNoDefaultGateway, err)
		}
	}
	if err != nil {
		return nil, err
	}
	if local, err := d.discoverInterface(); err == nil {
		d.logger.Infof("routing: default gateway %s (local address %s)", gw, local)
	} else {
		d.logger.Infof("routing: default gateway %s", gw)
	}
	return gw, nil
}

func (d *GatewayDiscoverer) fromRouteFile() (net.IP, error) {
	f, err := os.Open(d.routeFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseDefaultGateway(f)
}

// GetDefaultGateway returns the default gateway of the running system.
func GetDefaultGateway(logger model.Logger) (net.IP, error) {
	return NewGatewayDiscoverer(logger).DefaultGateway()
}
