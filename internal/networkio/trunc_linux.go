package networkio

import "golang.org/x/sys/unix"

func isTruncated(flags int) bool {
	return flags&unix.MSG_TRUNC != 0
}
