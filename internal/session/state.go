// Package session implements the aggregate root of the certification run:
// per-job states, readiness inhibitors, the desired/mandatory/run lists,
// the resource map, and session metadata.
//
// The engine is single-threaded and synchronous. Every public operation runs
// to completion on the caller's goroutine and is not safe against concurrent
// callers; serialization is the caller's responsibility.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hwcert/checkline/internal/depsolver"
	"github.com/hwcert/checkline/internal/job"
	"github.com/hwcert/checkline/internal/resource"
	"github.com/hwcert/checkline/internal/result"
)

// Orderer is the dependency-solver contract: given the catalog and a wanted
// subset, return a topologically sorted id list covering the subset and its
// transitive dependencies, or a typed error naming the offending job.
type Orderer interface {
	Order(catalog map[string]*job.Job, want []string) ([]string, error)
}

// OrdererFunc adapts a plain function to the Orderer interface.
type OrdererFunc func(catalog map[string]*job.Job, want []string) ([]string, error)

func (f OrdererFunc) Order(catalog map[string]*job.Job, want []string) ([]string, error) {
	return f(catalog, want)
}

// JobState is the mutable per-job record: the job reference, the last
// result, the current readiness inhibitors, and the certification-status
// annotation. One exists per catalog job for the lifetime of the session.
type JobState struct {
	Job                 *job.Job
	Result              *result.Result
	Inhibitors          []Inhibitor
	CertificationStatus string
}

// Runnable reports whether nothing currently blocks the job.
func (js *JobState) Runnable() bool { return len(js.Inhibitors) == 0 }

// Metadata is the free-form session annotation block.
type Metadata struct {
	// SessionID is a runtime identity used for log correlation. It is not
	// part of the persisted envelope.
	SessionID string

	Title            string
	Flags            map[string]struct{}
	RunningJobName   string
	AppBlob          []byte
	AppID            string
	LastJobStartTime *float64
}

// Well-known metadata flags.
const (
	FlagIncomplete    = "incomplete"
	FlagSubmitted     = "submitted"
	FlagBootstrapping = "bootstrapping"
)

// SetFlag adds a metadata flag.
func (m *Metadata) SetFlag(flag string) { m.Flags[flag] = struct{}{} }

// ClearFlag removes a metadata flag.
func (m *Metadata) ClearFlag(flag string) { delete(m.Flags, flag) }

// HasFlag reports whether a metadata flag is set.
func (m *Metadata) HasFlag(flag string) bool {
	_, ok := m.Flags[flag]
	return ok
}

// DuplicateJobError reports two non-identical definitions sharing one id.
// It carries both jobs so the caller can show the conflicting definitions.
type DuplicateJobError struct {
	Job       *job.Job
	Duplicate *job.Job
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("duplicate job id %q with conflicting definitions (checksums %s and %s)",
		e.Job.ID, e.Job.Checksum(), e.Duplicate.Checksum())
}

// State is the session aggregate: the loaded job subset, per-job states,
// selection lists, resource map, and metadata. Every other entity's
// lifetime is bound to it.
type State struct {
	orderer Orderer

	jobs        []*job.Job
	jobMap      map[string]*job.Job
	jobStates   map[string]*JobState
	desired     []*job.Job
	mandatory   []*job.Job
	runList     []*job.Job
	resourceMap map[string][]resource.Record
	metadata    Metadata

	events eventBus
}

// New builds a session over the given catalog. Identical duplicate
// definitions collapse silently; a non-identical clash is a hard
// construction error carrying both jobs. A nil orderer selects the built-in
// dependency solver.
func New(ctx context.Context, catalog []*job.Job, orderer Orderer) (*State, error) {
	if orderer == nil {
		orderer = OrdererFunc(depsolver.Order)
	}
	s := &State{
		orderer:     orderer,
		jobMap:      make(map[string]*job.Job),
		jobStates:   make(map[string]*JobState),
		resourceMap: make(map[string][]resource.Record),
		metadata: Metadata{
			SessionID: uuid.NewString(),
			Flags:     make(map[string]struct{}),
		},
	}
	for _, j := range catalog {
		if existing, ok := s.jobMap[j.ID]; ok {
			if existing.Checksum() == j.Checksum() {
				continue
			}
			return nil, &DuplicateJobError{Job: existing, Duplicate: j}
		}
		s.addJob(j)
	}
	return s, nil
}

// addJob registers a job and its state record. Callers have already ruled
// out id clashes.
func (s *State) addJob(j *job.Job) {
	s.jobs = append(s.jobs, j)
	s.jobMap[j.ID] = j
	s.jobStates[j.ID] = &JobState{
		Job:        j,
		Inhibitors: []Inhibitor{undesiredInhibitor()},
	}
}

// Jobs returns the loaded job list in catalog order. The returned slice is
// shared; callers must not mutate it.
func (s *State) Jobs() []*job.Job { return s.jobs }

// Job returns the catalog job with the given id, or nil.
func (s *State) Job(id string) *job.Job { return s.jobMap[id] }

// JobStates returns the live job-state map, keyed by job id. Read-only for
// callers.
func (s *State) JobStates() map[string]*JobState { return s.jobStates }

// JobState returns the state record for the given job id, or nil.
func (s *State) JobState(id string) *JobState { return s.jobStates[id] }

// RunList returns the dependency-closed, topologically ordered union of the
// desired and mandatory lists.
func (s *State) RunList() []*job.Job { return s.runList }

// DesiredJobList returns the operator-selected jobs.
func (s *State) DesiredJobList() []*job.Job { return s.desired }

// MandatoryJobList returns the jobs that are always included in resolution.
func (s *State) MandatoryJobList() []*job.Job { return s.mandatory }

// ResourceMap returns the live resource map, keyed by resource job id.
// Read-only for callers.
func (s *State) ResourceMap() map[string][]resource.Record { return s.resourceMap }

// Resources returns the parsed records for one resource job, or nil.
func (s *State) Resources(id string) []resource.Record { return s.resourceMap[id] }

// Metadata returns the mutable session metadata block.
func (s *State) Metadata() *Metadata { return &s.metadata }
