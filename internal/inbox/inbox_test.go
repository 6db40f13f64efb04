package inbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiokicks/leaderboard/internal/testutil"
)

func TestInbox_SendReceive(t *testing.T) {
	ib := New[string](2, 10*time.Millisecond, nil)

	assert.True(t, ib.Send("a"))
	assert.True(t, ib.Send("b"))
	assert.Equal(t, 2, ib.Len())

	msg, err := ib.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", msg)

	msg, ok := ib.TryReceive()
	assert.True(t, ok)
	assert.Equal(t, "b", msg)

	_, ok = ib.TryReceive()
	assert.False(t, ok)

	stats := ib.GetStats()
	assert.Equal(t, int64(2), stats.TotalSent)
	assert.Equal(t, int64(2), stats.TotalReceived)
	assert.Equal(t, 2, stats.MaxDepthSeen)
	assert.Equal(t, 0, stats.CurrentDepth)
}

func TestInbox_SendTimeout(t *testing.T) {
	logger := testutil.NewTestLogger()
	ib := New[int](1, 5*time.Millisecond, logger.Logger())

	assert.True(t, ib.Send(1))
	assert.False(t, ib.Send(2))

	assert.Equal(t, int64(1), ib.GetStats().TimeoutCount)
	assert.True(t, logger.HasWarning())
}

func TestInbox_ReceiveHonorsContext(t *testing.T) {
	ib := New[int](1, time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := ib.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInbox_ConcurrentSenders(t *testing.T) {
	ib := New[int](100, time.Second, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ib.Send(n)
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		msg, err := ib.Receive(context.Background())
		require.NoError(t, err)
		seen[msg] = true
	}
	assert.Len(t, seen, 100)
}
