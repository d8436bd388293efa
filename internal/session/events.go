package session

import (
	"github.com/hwcert/checkline/internal/job"
	"github.com/hwcert/checkline/internal/result"
)

// eventBus holds the registered observers for each event kind. Observers
// fire synchronously, in registration order, on the caller's goroutine,
// before the mutating call returns. The coarse state-change event is always
// emitted before any finer-grained event.
type eventBus struct {
	stateChange          []func()
	jobResultChange      []func(*job.Job, *result.Result)
	jobStateMapChange    []func()
	desiredJobListChange []func()
	resourceMapChange    []func(resourceID string)
}

// OnStateChange registers an observer fired after any mutating operation.
func (s *State) OnStateChange(fn func()) {
	s.events.stateChange = append(s.events.stateChange, fn)
}

// OnJobResultChange registers an observer fired when a job's result is
// replaced.
func (s *State) OnJobResultChange(fn func(*job.Job, *result.Result)) {
	s.events.jobResultChange = append(s.events.jobResultChange, fn)
}

// OnJobStateMapChange registers an observer fired when jobs are added to or
// removed from the job-state map.
func (s *State) OnJobStateMapChange(fn func()) {
	s.events.jobStateMapChange = append(s.events.jobStateMapChange, fn)
}

// OnDesiredJobListChange registers an observer fired when the desired list
// is replaced.
func (s *State) OnDesiredJobListChange(fn func()) {
	s.events.desiredJobListChange = append(s.events.desiredJobListChange, fn)
}

// OnResourceMapChange registers an observer fired when a resource job's
// record list is replaced.
func (s *State) OnResourceMapChange(fn func(resourceID string)) {
	s.events.resourceMapChange = append(s.events.resourceMapChange, fn)
}

// The notify helpers fire only their own observer list. Mutating operations
// call notifyStateChange first, then the finer-grained notifications, which
// makes the coarse-before-fine ordering an explicit emission order.

func (s *State) notifyStateChange() {
	for _, fn := range s.events.stateChange {
		fn()
	}
}

func (s *State) notifyJobResultChange(j *job.Job, r *result.Result) {
	for _, fn := range s.events.jobResultChange {
		fn(j, r)
	}
}

func (s *State) notifyJobStateMapChange() {
	for _, fn := range s.events.jobStateMapChange {
		fn()
	}
}

func (s *State) notifyDesiredJobListChange() {
	for _, fn := range s.events.desiredJobListChange {
		fn()
	}
}

func (s *State) notifyResourceMapChange(resourceID string) {
	for _, fn := range s.events.resourceMapChange {
		fn(resourceID)
	}
}
