package workers

import (
	"sync/atomic"
	"testing"

	"github.com/ooni/minitun/internal/model"
)

func TestManager(t *testing.T) {
	t.Run("workers observe shutdown and are waited for", func(t *testing.T) {
		logger := model.NewTestLogger()
		m := NewManager(logger)
		var stopped int32
		for i := 0; i < 3; i++ {
			m.StartWorker(func() {
				defer m.OnWorkerDone("test")
				<-m.ShouldShutdown()
				atomic.AddInt32(&stopped, 1)
			})
		}
		m.StartShutdown()
		m.WaitWorkersShutdown()
		if got := atomic.LoadInt32(&stopped); got != 3 {
			t.Errorf("expected 3 stopped workers, got %d", got)
		}
		if len(logger.Snapshot()) != 3 {
			t.Errorf("expected a log line per worker, got %v", logger.Snapshot())
		}
	})

	t.Run("StartShutdown can be called more than once", func(t *testing.T) {
		m := NewManager(model.NewTestLogger())
		m.StartShutdown()
		m.StartShutdown()
		select {
		case <-m.ShouldShutdown():
		default:
			t.Error("expected the shutdown channel to be closed")
		}
	})
}
