// Package packetx inspects the raw IP packets carried by the tunnel.
//
// The tunnel never modifies packets. We only look at them to detect
// truncation and to produce readable debug logs.
package packetx

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Version returns the IP version encoded in the first nibble of pkt,
// or zero for an empty packet.
func Version(pkt []byte) int {
	if len(pkt) == 0 {
		return 0
	}
	return int(pkt[0] >> 4)
}

// IsTruncated reports whether pkt contains fewer bytes than the length
// its own IP header declares. Packets we cannot parse are not considered
// truncated, because the tunnel forwards them opaquely.
func IsTruncated(pkt []byte) bool {
	switch Version(pkt) {
	case 4:
		// The total length is read off the wire directly: ipv4.ParseHeader
		// rewrites it in host order on darwin and the BSDs.
		if len(pkt) < ipv4.HeaderLen || int(pkt[0]&0x0f)<<2 < ipv4.HeaderLen {
			return false
		}
		return int(binary.BigEndian.Uint16(pkt[2:4])) > len(pkt)
	case 6:
		hdr, err := ipv6.ParseHeader(pkt)
		if err != nil {
			return false
		}
		return ipv6.HeaderLen+hdr.PayloadLen > len(pkt)
	default:
		return false
	}
}

// Summary returns a one-line description of pkt, for instance
// "10.0.0.100 -> 8.8.8.8 ICMPv4 84 bytes".
func Summary(pkt []byte) string {
	var first gopacket.LayerType
	switch Version(pkt) {
	case 4:
		first = layers.LayerTypeIPv4
	case 6:
		first = layers.LayerTypeIPv6
	default:
		return fmt.Sprintf("non-IP %d bytes", len(pkt))
	}
	packet := gopacket.NewPacket(pkt, first, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	network := packet.NetworkLayer()
	if network == nil {
		return fmt.Sprintf("malformed IPv%d %d bytes", Version(pkt), len(pkt))
	}
	src, dst := network.NetworkFlow().Endpoints()
	proto := "unknown"
	switch ip := network.(type) {
	case *layers.IPv4:
		proto = ip.Protocol.String()
	case *layers.IPv6:
		proto = ip.NextHeader.String()
	}
	return fmt.Sprintf("%s -> %s %s %d bytes", src, dst, proto, len(pkt))
}
