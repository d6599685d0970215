//go:build !linux

package networkio

// isTruncated returns false because we only know how to detect
// truncated datagrams on linux.
func isTruncated(flags int) bool {
	return false
}
