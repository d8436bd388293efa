// Package depsolver orders a selected subset of the catalog so that every
// job appears after everything it depends on. The session layer consumes it
// through the session.Orderer contract; failures are typed and always name
// the job they affect, so callers can drop that job and retry.
package depsolver

import (
	"fmt"
	"strings"

	"github.com/hwcert/checkline/internal/job"
)

// Problem is a dependency-resolution failure attributable to one job.
type Problem interface {
	error
	// AffectedJobID names the job that resolution should drop to make
	// progress.
	AffectedJobID() string
}

// UnknownJobError reports a reference to a job id that is not in the catalog.
type UnknownJobError struct {
	JobID   string // the job whose dependency list names the missing id
	Missing string
}

func (e *UnknownJobError) Error() string {
	if e.JobID == e.Missing {
		return fmt.Sprintf("unknown job %q", e.Missing)
	}
	return fmt.Sprintf("job %q depends on unknown job %q", e.JobID, e.Missing)
}

// AffectedJobID names the job to drop: the one carrying the dangling
// reference.
func (e *UnknownJobError) AffectedJobID() string { return e.JobID }

// CycleError reports a dependency cycle. JobIDs holds the cycle path in
// dependency order, first job repeated implicitly.
type CycleError struct {
	JobIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.JobIDs, " -> "))
}

// AffectedJobID names the first job on the cycle path.
func (e *CycleError) AffectedJobID() string { return e.JobIDs[0] }

// visit states for the depth-first walk.
const (
	unvisited = iota
	onStack
	done
)

// Order returns the ids of want plus all transitive dependencies, in an
// order where every job follows its dependencies. Resolution is
// deterministic: jobs are visited in the order given, dependencies in
// declaration order. The first problem encountered aborts the walk.
func Order(catalog map[string]*job.Job, want []string) ([]string, error) {
	state := make(map[string]int, len(catalog))
	ordered := make([]string, 0, len(want))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case onStack:
			// Slice the current path from the first occurrence of id to
			// report the actual cycle, not the whole walk.
			for i, s := range stack {
				if s == id {
					return &CycleError{JobIDs: append([]string(nil), stack[i:]...)}
				}
			}
			return &CycleError{JobIDs: []string{id}}
		}

		j, ok := catalog[id]
		if !ok {
			return &UnknownJobError{JobID: id, Missing: id}
		}

		state[id] = onStack
		stack = append(stack, id)
		for _, dep := range j.AllDependencies() {
			if _, ok := catalog[dep]; !ok {
				return &UnknownJobError{JobID: id, Missing: dep}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		ordered = append(ordered, id)
		return nil
	}

	for _, id := range want {
		stack = stack[:0]
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
