package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hwcert/checkline/internal/ctxlog"
	"github.com/hwcert/checkline/internal/job"
)

// ErrJobOnRunList marks removal attempts against a job the run list still
// needs.
var ErrJobOnRunList = errors.New("job is on the run list")

// AddUnit adds a job to the catalog. An identical duplicate collapses
// silently; a conflicting definition is a DuplicateJobError carrying both
// jobs.
func (s *State) AddUnit(ctx context.Context, j *job.Job) error {
	if existing, ok := s.jobMap[j.ID]; ok {
		if existing.Checksum() == j.Checksum() {
			return nil
		}
		return &DuplicateJobError{Job: existing, Duplicate: j}
	}
	s.addJob(j)
	ctxlog.FromContext(ctx).Debug("job added",
		"session", s.metadata.SessionID, "job", j.ID)
	s.notifyStateChange()
	s.notifyJobStateMapChange()
	return nil
}

// RemoveUnit removes a job from the catalog along with its job-state and
// resource-map entries. Removing a run-list member is illegal.
func (s *State) RemoveUnit(ctx context.Context, j *job.Job) error {
	if s.onRunList(j.ID) {
		return fmt.Errorf("cannot remove %q: %w", j.ID, ErrJobOnRunList)
	}
	s.removeJob(j.ID)
	ctxlog.FromContext(ctx).Debug("job removed",
		"session", s.metadata.SessionID, "job", j.ID)
	s.notifyStateChange()
	s.notifyJobStateMapChange()
	return nil
}

// TrimJobList bulk-removes every job matching the predicate. If any match is
// on the run list the call fails and mutates nothing.
func (s *State) TrimJobList(ctx context.Context, match func(*job.Job) bool) error {
	var victims []string
	for _, j := range s.jobs {
		if match(j) {
			if s.onRunList(j.ID) {
				return fmt.Errorf("cannot trim %q: %w", j.ID, ErrJobOnRunList)
			}
			victims = append(victims, j.ID)
		}
	}
	if len(victims) == 0 {
		return nil
	}
	for _, id := range victims {
		s.removeJob(id)
	}
	ctxlog.FromContext(ctx).Debug("job list trimmed",
		"session", s.metadata.SessionID, "removed", len(victims))
	s.notifyStateChange()
	s.notifyJobStateMapChange()
	return nil
}

func (s *State) onRunList(id string) bool {
	for _, j := range s.runList {
		if j.ID == id {
			return true
		}
	}
	return false
}

// removeJob drops every trace of the job: catalog entry, job state,
// resource records, and selection-list membership.
func (s *State) removeJob(id string) {
	delete(s.jobMap, id)
	delete(s.jobStates, id)
	delete(s.resourceMap, id)
	s.jobs = removeByID(s.jobs, id)
	s.desired = removeByID(s.desired, id)
	s.mandatory = removeByID(s.mandatory, id)
}

// removeByID filters into a fresh slice: slices previously handed out by the
// accessors keep their contents after a removal.
func removeByID(jobs []*job.Job, id string) []*job.Job {
	out := make([]*job.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.ID != id {
			out = append(out, j)
		}
	}
	return out
}
