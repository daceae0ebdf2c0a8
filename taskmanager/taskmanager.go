// Package taskmanager runs the view-scoped background tasks the
// orchestrator schedules alongside the pure carnot state machine. The
// orchestrator uses it for the per-view local-timeout timer; vote,
// timeout and new-view tallies are kept in the orchestrator's run loop,
// not in tasks here. Every task is bound to the view that spawned
// it and is cancelled the moment that view is superseded, mirroring the
// buffered-channel-plus-atomic-stop-signal idiom of
// engine/consensus/eventdriven/components/pacemaker/flowmc/flowmc.go.
package taskmanager

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/carnot-network/carnot/carnot"
)

// task is a single cancellable unit of work bound to a view.
type task struct {
	view       carnot.View
	stopped    *atomic.Bool
	stopSignal chan struct{}
	done       chan struct{}
}

func (t *task) cancel() {
	if !t.stopped.Swap(true) {
		close(t.stopSignal)
	}
	<-t.done
}

// Manager owns every task currently running and cancels the ones bound
// to views at or below a newly reached view — the task-manager analogue
// of FlowMC.skipAhead/ExecuteView's "process until view number changes"
// loop, pulled out into its own component so more than one concurrent
// task can be bound to the same view.
type Manager struct {
	mu    sync.Mutex
	tasks map[carnot.View][]*task
}

// New builds an empty Manager.
func New() *Manager {
	return &Manager{tasks: make(map[carnot.View][]*task)}
}

// Push starts fn in its own goroutine, scoped to view. fn receives a
// stop channel it must select on to notice cancellation promptly, and
// it must return once stop is closed: the task counts as done (and a
// cancelling call stops waiting) when fn returns.
func Push(m *Manager, view carnot.View, fn func(stop <-chan struct{})) {
	t := &task{
		view:       view,
		stopped:    atomic.NewBool(false),
		stopSignal: make(chan struct{}),
		done:       make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		fn(t.stopSignal)
	}()

	m.mu.Lock()
	m.tasks[view] = append(m.tasks[view], t)
	m.mu.Unlock()
}

// CancelUpTo cancels and waits for every task bound to a view at or
// below view, then discards their bookkeeping. Called once the
// orchestrator observes current_view advance past them, since a vote-
// gather or timeout task for an already-superseded view can never
// produce a meaningful Output anymore.
func (m *Manager) CancelUpTo(view carnot.View) {
	m.mu.Lock()
	var toCancel []*task
	for v, tasks := range m.tasks {
		if v <= view {
			toCancel = append(toCancel, tasks...)
			delete(m.tasks, v)
		}
	}
	m.mu.Unlock()

	for _, t := range toCancel {
		t.cancel()
	}
}

// CancelAll stops every task the Manager currently tracks, used on
// orchestrator shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	var all []*task
	for v, tasks := range m.tasks {
		all = append(all, tasks...)
		delete(m.tasks, v)
	}
	m.mu.Unlock()

	for _, t := range all {
		t.cancel()
	}
}

// RunningViews returns every view with at least one task still
// tracked, for introspection and tests.
func (m *Manager) RunningViews() []carnot.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]carnot.View, 0, len(m.tasks))
	for v := range m.tasks {
		out = append(out, v)
	}
	return out
}
