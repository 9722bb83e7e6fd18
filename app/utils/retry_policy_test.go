package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDelay(t *testing.T) {
	p := NewRetryPolicy(5, time.Second, 10*time.Second)

	assert.Equal(t, time.Second, p.CalculateDelay(0))
	assert.Equal(t, 2*time.Second, p.CalculateDelay(1))
	assert.Equal(t, 8*time.Second, p.CalculateDelay(3))
	assert.Equal(t, 10*time.Second, p.CalculateDelay(4))
	assert.Equal(t, 10*time.Second, p.CalculateDelay(9))
	assert.Equal(t, time.Second, p.CalculateDelay(-1))
}

func TestExecuteSucceedsAfterRetries(t *testing.T) {
	p := NewRetryPolicy(4, time.Millisecond, 2*time.Millisecond)
	calls := 0
	var retried []int

	err := p.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, func(attempt int, err error) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestExecuteReturnsLastError(t *testing.T) {
	p := NewRetryPolicy(3, time.Millisecond, time.Millisecond)
	calls := 0
	last := errors.New("still down")

	err := p.Execute(context.Background(), func() error {
		calls++
		return last
	}, nil)

	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, calls)
}

func TestExecuteStopsOnCancel(t *testing.T) {
	p := NewRetryPolicy(10, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	err := p.Execute(ctx, func() error {
		cancel()
		return errors.New("down")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
