package broadcast

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestBroadcast(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer("test", source, WithBufferSize[int](10))
	l1 := b.Subscribe()
	l2 := b.Subscribe()
	for i := range 3 {
		source <- i
	}
	for _, l := range []<-chan int{l1, l2} {
		for i := range 3 {
			assert.Equal(t, <-l, i)
		}
	}

	b.CancelSubscription(l1)
	_, ok := <-l1
	assert.Assert(t, !ok)

	source <- 42
	assert.Equal(t, <-l2, 42)

	b.Close()
	_, ok = <-l2
	assert.Assert(t, !ok)
	// subscribing after close returns a closed channel
	_, ok = <-b.Subscribe()
	assert.Assert(t, !ok)
}

func TestSlowListenerIsSkipped(t *testing.T) {
	source := make(chan string)
	b := NewBroadcastServer("slow", source,
		WithSendTimeout[string](time.Millisecond))
	defer b.Close()
	slow := b.Subscribe()

	sent := make(chan struct{})
	go func() {
		source <- "a"
		source <- "b"
		close(sent)
	}()
	select {
	case <-sent:
	case <-time.After(5 * time.Second):
		t.Fatal("slow listener blocked the broadcast")
	}
	bs := b.(*broadcastServer[string])
	// the second message is counted once the loop picked it up
	assert.Assert(t, bs.numRcv.Load() >= 1)
	_ = slow
}

func TestSourceClosed(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer("closing", source)
	l := b.Subscribe()
	close(source)
	_, ok := <-l
	assert.Assert(t, !ok)
	b.Close()
}
