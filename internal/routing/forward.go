package routing

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// ProcIPForward is the procfs switch for IPv4 forwarding.
const ProcIPForward = "/proc/sys/net/ipv4/ip_forward"

// ErrForwarding means we could not enable IPv4 forwarding.
var ErrForwarding = errors.New("routing: cannot enable forwarding")

// EnableForward makes sure the switch at path is "1". It writes only when
// forwarding is currently disabled.
func EnableForward(path string) (changed bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrForwarding, err)
	}
	if string(bytes.TrimSpace(data)) == "1" {
		return false, nil
	}
	if err := os.WriteFile(path, []byte("1\n"), 0644); err != nil {
		return false, fmt.Errorf("%w: %s", ErrForwarding, err)
	}
	return true, nil
}
