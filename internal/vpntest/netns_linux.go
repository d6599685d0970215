package vpntest

import (
	"os"
	"runtime"
	"testing"

	"github.com/vishvananda/netns"
)

// EnterNetNS moves the calling test into a new, empty network namespace,
// which is discarded when the test ends. The test is skipped unless we
// run as root. Callers must not start subtests or hand the namespace to
// other goroutines, since only the current OS thread is moved.
func EnterNetNS(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("creating a network namespace requires root")
	}
	runtime.LockOSThread()
	origin, err := netns.Get()
	if err != nil {
		runtime.UnlockOSThread()
		t.Fatal(err)
	}
	ns, err := netns.New()
	if err != nil {
		origin.Close()
		runtime.UnlockOSThread()
		t.Skipf("cannot create a network namespace: %s", err)
	}
	t.Cleanup(func() {
		defer origin.Close()
		ns.Close()
		if err := netns.Set(origin); err != nil {
			// the thread stays locked, so the runtime throws it away
			t.Errorf("cannot restore the network namespace: %s", err)
			return
		}
		runtime.UnlockOSThread()
	})
}
