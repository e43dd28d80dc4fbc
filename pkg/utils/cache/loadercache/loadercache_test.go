package loadercache

import (
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/mpapenbr/gaterace-service-go/pkg/utils/cache"
)

type counter struct {
	calls int
	value int
}

func (c *counter) load(ctx context.Context, key string) (*int, error) {
	c.calls++
	if key == "fail" {
		return nil, errors.New("failed")
	}
	v := c.value
	return &v, nil
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 28, 11, 0, 0, 0, time.UTC)
	cnt := &counter{value: 1}
	c := New(
		WithLoader[string, int](cnt.load),
		WithExpiration[string, int](time.Minute),
		WithClock[string, int](func() time.Time { return now }),
	)

	v, err := c.Get(ctx, "a")
	assert.NilError(t, err)
	assert.Equal(t, *v, 1)

	cnt.value = 2
	v, _ = c.Get(ctx, "a")
	assert.Equal(t, *v, 1)
	assert.Equal(t, cnt.calls, 1)

	c.Invalidate(ctx, "a")
	v, _ = c.Get(ctx, "a")
	assert.Equal(t, *v, 2)
	assert.Equal(t, cnt.calls, 2)

	cnt.value = 3
	now = now.Add(2 * time.Minute)
	v, _ = c.Get(ctx, "a")
	assert.Equal(t, *v, 3)

	_, err = c.Get(ctx, "fail")
	assert.ErrorContains(t, err, "failed")
}

func TestNoLoader(t *testing.T) {
	c := New[string, int]()
	_, err := c.Get(context.Background(), "a")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
