package routing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEnableForward(t *testing.T) {
	t.Run("writes 1 when forwarding is disabled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ip_forward")
		os.WriteFile(path, []byte("0\n"), 0600)
		changed, err := EnableForward(path)
		if err != nil {
			t.Fatal(err)
		}
		if !changed {
			t.Error("expected a change")
		}
		data, _ := os.ReadFile(path)
		if string(data) != "1\n" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("leaves an enabled switch alone", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ip_forward")
		os.WriteFile(path, []byte("1\n"), 0400)
		changed, err := EnableForward(path)
		if err != nil {
			t.Fatal(err)
		}
		if changed {
			t.Error("did not expect a change")
		}
	})

	t.Run("a missing switch is ErrForwarding", func(t *testing.T) {
		_, err := EnableForward(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, ErrForwarding) {
			t.Errorf("expected ErrForwarding, got %v", err)
		}
	})
}
