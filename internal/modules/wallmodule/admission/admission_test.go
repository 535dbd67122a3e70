package admission

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(max int) *Controller {
	return NewController(max, hclog.NewNullLogger())
}

func TestController_ImmediateGrantUpToCapacity(t *testing.T) {
	c := newTestController(3)

	releases := make([]func(), 0, 3)
	for i := 0; i < 3; i++ {
		releases = append(releases, c.Acquire(fmt.Sprintf("tile-%d", i)))
	}

	assert.Equal(t, 3, c.Active())
	assert.Equal(t, 0, c.Waiting())

	for _, release := range releases {
		release()
	}
	assert.Equal(t, 0, c.Active())
}

func TestController_BoundNeverExceeded(t *testing.T) {
	c := newTestController(4)

	var mu sync.Mutex
	maxSeen := 0

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			release, err := c.AcquireWait(context.Background(), fmt.Sprintf("tile-%d", n))
			require.NoError(t, err)

			mu.Lock()
			if active := c.Active(); active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)
			release()
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen, 4)
	assert.Equal(t, 0, c.Active())
	assert.Equal(t, 0, c.Waiting())
}

func TestController_FIFOFairness(t *testing.T) {
	c := newTestController(1)

	first := c.Acquire("holder")

	var mu sync.Mutex
	var grantOrder []int

	var wg sync.WaitGroup
	ready := make(chan struct{}, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Stagger enqueueing so queue order is deterministic
			time.Sleep(time.Duration(n*10) * time.Millisecond)
			ready <- struct{}{}
			release, err := c.AcquireWait(context.Background(), fmt.Sprintf("waiter-%d", n))
			require.NoError(t, err)

			mu.Lock()
			grantOrder = append(grantOrder, n)
			mu.Unlock()
			release()
		}(i)
	}

	// Wait until all goroutines are about to queue, then some margin
	for i := 0; i < 8; i++ {
		<-ready
	}
	time.Sleep(50 * time.Millisecond)
	first()

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, grantOrder, 8)
	for i, n := range grantOrder {
		assert.Equal(t, i, n, "waiters must be granted in queue order")
	}
}

func TestController_CancelBeforeGrant(t *testing.T) {
	c := newTestController(1)

	holder := c.Acquire("holder")
	queued := c.Acquire("queued")
	assert.Equal(t, 1, c.Waiting())

	// Cancel the queued request before it is ever granted
	queued()
	assert.Equal(t, 0, c.Waiting())

	// Second invocation is a no-op, not an error
	queued()
	assert.Equal(t, 1, c.Active())

	holder()
	assert.Equal(t, 0, c.Active())
}

func TestController_CancelledWaiterSkippedOnPromotion(t *testing.T) {
	c := newTestController(1)

	holder := c.Acquire("holder")
	cancelled := c.Acquire("cancelled")

	granted := make(chan struct{})
	go func() {
		release, err := c.AcquireWait(context.Background(), "patient")
		require.NoError(t, err)
		close(granted)
		release()
	}()

	// Let the patient waiter queue up behind the one we are about to cancel
	require.Eventually(t, func() bool { return c.Waiting() == 2 }, time.Second, time.Millisecond)

	cancelled()
	holder()

	select {
	case <-granted:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter behind a cancelled entry was never granted")
	}
}

func TestController_AcquireWaitContextCancel(t *testing.T) {
	c := newTestController(1)

	holder := c.Acquire("holder")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.AcquireWait(ctx, "doomed")
		errCh <- err
	}()

	require.Eventually(t, func() bool { return c.Waiting() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("AcquireWait did not observe cancellation")
	}

	assert.Equal(t, 0, c.Waiting())
	holder()
	assert.Equal(t, 0, c.Active())
}

// Twelve tiles mounting against six slots: exactly six begin immediately,
// the rest only as slots free up.
func TestController_StagedAdmissionScenario(t *testing.T) {
	c := newTestController(6)

	releases := make([]func(), 0, 12)
	queued := make([]func(), 0, 6)
	for i := 0; i < 12; i++ {
		release := c.Acquire(fmt.Sprintf("tile-%d", i))
		if i < 6 {
			releases = append(releases, release)
		} else {
			queued = append(queued, release)
		}
	}

	assert.Equal(t, 6, c.Active())
	assert.Equal(t, 6, c.Waiting())

	// Releasing one grants exactly one queued tile
	releases[0]()
	assert.Equal(t, 6, c.Active())
	assert.Equal(t, 5, c.Waiting())

	for _, release := range releases[1:] {
		release()
	}
	for _, release := range queued {
		release()
	}
	assert.Equal(t, 0, c.Active())
	assert.Equal(t, 0, c.Waiting())
}
