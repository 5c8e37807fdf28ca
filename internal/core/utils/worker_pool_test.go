package utils_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"dermai-backend/internal/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInPool(t *testing.T) {
	worker := func(ctx context.Context, i int) (string, error) {
		if i%4 == 3 {
			time.Sleep(time.Duration(10-i) * time.Millisecond)
			return "", fmt.Errorf("error")
		}
		return fmt.Sprintf("%d-%d", i, i), nil
	}

	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	results := utils.RunInPool(context.Background(), items, 5, worker)
	require.Len(t, results, 10)

	for i, res := range results {
		assert.Equal(t, i, res.Input)
		if i%4 == 3 {
			assert.Error(t, res.Error)
		} else {
			assert.Equal(t, fmt.Sprintf("%d-%d", i, i), res.Result)
		}
	}
	assert.Len(t, utils.Failed(results), 2)
}

func TestRunInPoolBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	worker := func(ctx context.Context, i int) (int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return i, nil
	}

	results := utils.RunInPool(context.Background(), make([]int, 20), 3, worker)
	assert.Len(t, results, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunInPoolEmpty(t *testing.T) {
	results := utils.RunInPool(context.Background(), []int{}, 4, func(ctx context.Context, i int) (int, error) {
		return i, nil
	})
	assert.Empty(t, results)
}

func TestRunInPoolCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := utils.RunInPool(ctx, []int{1, 2, 3}, 2, func(ctx context.Context, i int) (int, error) {
		return i, nil
	})
	assert.Len(t, utils.Failed(results), 3)
}
