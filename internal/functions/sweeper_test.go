package functions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingMarker struct {
	mu    sync.Mutex
	calls int
	err   error
	fired chan struct{}
}

func (c *countingMarker) MarkOverdue(context.Context, time.Time) (int64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	select {
	case c.fired <- struct{}{}:
	default:
	}
	return 1, c.err
}

func TestSweeper_RunsImmediatelyAndOnTick(t *testing.T) {
	for _, markErr := range []error{nil, errors.New("db down")} {
		m := &countingMarker{err: markErr, fired: make(chan struct{}, 1)}
		s := NewSweeper(m, 5*time.Millisecond, zaptest.NewLogger(t))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.Run(ctx)
			close(done)
		}()

		for i := 0; i < 2; i++ {
			select {
			case <-m.fired:
			case <-time.After(2 * time.Second):
				t.Fatal("sweep did not run")
			}
		}
		cancel()
		<-done

		m.mu.Lock()
		assert.GreaterOrEqual(t, m.calls, 2)
		m.mu.Unlock()
	}
}
