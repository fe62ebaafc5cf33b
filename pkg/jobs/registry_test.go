package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	h := reg.Register(context.Background(), "job-1", "issue:7")
	require.NotNil(t, h)
	assert.True(t, reg.Alive("job-1"))
	assert.Len(t, reg.ByGroup("issue:7"), 1)
	assert.Same(t, h, reg.Register(context.Background(), "job-1", "issue:7"))

	runErr := errors.New("failed")
	reg.Finish("job-1", runErr)

	assert.False(t, reg.Alive("job-1"))
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, runErr, h.Err())
	select {
	case <-h.Done():
	default:
		t.Fatal("done channel not closed")
	}
	reg.Finish("job-1", nil)
}

func TestRegistryCancelPropagatesCause(t *testing.T) {
	reg := NewRegistry()
	h := reg.Register(context.Background(), "job-2", "issue:1")

	assert.True(t, reg.Cancel("job-2"))
	assert.False(t, reg.Cancel("missing"))

	<-h.Context().Done()
	assert.ErrorIs(t, context.Cause(h.Context()), ErrRunCancelled)
}

func TestRegistryWait(t *testing.T) {
	reg := NewRegistry()
	reg.Register(context.Background(), "job-3", "")

	go func() {
		time.Sleep(10 * time.Millisecond)
		reg.Finish("job-3", nil)
	}()
	require.NoError(t, reg.Wait(context.Background(), "job-3"))
	require.NoError(t, reg.Wait(context.Background(), "unknown"))

	reg.Register(context.Background(), "job-4", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, reg.Wait(ctx, "job-4"), context.DeadlineExceeded)
}

func TestRegistryByGroupListsOnlyLiveRuns(t *testing.T) {
	reg := NewRegistry()
	reg.Register(context.Background(), "a", "issue:1")
	reg.Register(context.Background(), "b", "issue:1")
	reg.Register(context.Background(), "c", "issue:2")

	assert.Len(t, reg.ByGroup("issue:1"), 2)
	reg.Finish("a", nil)

	live := reg.ByGroup("issue:1")
	require.Len(t, live, 1)
	assert.Equal(t, "b", live[0].ID)
	assert.Empty(t, reg.ByGroup("issue:3"))
}
