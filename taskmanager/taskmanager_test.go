package taskmanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnot-network/carnot/carnot"
)

func TestCancelUpToStopsTask(t *testing.T) {
	m := New()
	cancelled := make(chan struct{})
	Push(m, carnot.View(3), func(stop <-chan struct{}) {
		<-stop
		close(cancelled)
	})

	require.Eventually(t, func() bool { return len(m.RunningViews()) == 1 }, time.Second, time.Millisecond)
	m.CancelUpTo(carnot.View(3))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task was not cancelled")
	}
	assert.Empty(t, m.RunningViews())
}

func TestCancelUpToLeavesFutureViewsRunning(t *testing.T) {
	m := New()
	Push(m, carnot.View(5), func(stop <-chan struct{}) { <-stop })
	require.Eventually(t, func() bool { return len(m.RunningViews()) == 1 }, time.Second, time.Millisecond)

	m.CancelUpTo(carnot.View(3))
	assert.Len(t, m.RunningViews(), 1, "a task bound to a later view must survive cancellation of an earlier one")

	m.CancelAll()
}
