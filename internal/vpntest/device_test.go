package vpntest

import (
	"bytes"
	"errors"
	"os"
	"testing"
)

func TestDevice(t *testing.T) {
	t.Run("injected packets are read back", func(t *testing.T) {
		dev := NewDevice()
		go dev.Inject([]byte("packet"))
		buf := make([]byte, 16)
		n, err := dev.Read(buf)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(buf[:n], []byte("packet")) {
			t.Errorf("got %q", buf[:n])
		}
	})

	t.Run("reads truncate to the buffer size", func(t *testing.T) {
		dev := NewDevice()
		go dev.Inject([]byte("a long packet"))
		buf := make([]byte, 4)
		n, _ := dev.Read(buf)
		if n != 4 {
			t.Errorf("expected 4 bytes, got %d", n)
		}
	})

	t.Run("injected errors are returned", func(t *testing.T) {
		dev := NewDevice()
		errBad := errors.New("bad")
		go dev.InjectError(errBad)
		if _, err := dev.Read(make([]byte, 4)); !errors.Is(err, errBad) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("written packets are copied", func(t *testing.T) {
		dev := NewDevice()
		pkt := []byte("abc")
		dev.Write(pkt)
		pkt[0] = 'x'
		if got := <-dev.Written; string(got) != "abc" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("close unblocks readers and fails writes", func(t *testing.T) {
		dev := NewDevice()
		done := make(chan error)
		go func() {
			_, err := dev.Read(make([]byte, 4))
			done <- err
		}()
		dev.Close()
		dev.Close()
		if err := <-done; !errors.Is(err, os.ErrClosed) {
			t.Errorf("expected os.ErrClosed, got %v", err)
		}
		if _, err := dev.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
			t.Errorf("expected os.ErrClosed, got %v", err)
		}
	})
}
