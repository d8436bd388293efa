package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hwcert/checkline/internal/ctxlog"
	"github.com/hwcert/checkline/internal/depsolver"
	"github.com/hwcert/checkline/internal/job"
	"github.com/hwcert/checkline/internal/resource"
	"github.com/hwcert/checkline/internal/result"
)

// UpdateMandatoryJobList replaces the mandatory set. The change takes effect
// on the next desired-list recomputation.
func (s *State) UpdateMandatoryJobList(jobs []*job.Job) {
	s.mandatory = dedupeJobs(jobs)
}

// UpdateDesiredJobList replaces the desired set and recomputes the run list
// as the dependency closure of desired ∪ mandatory. Dependency problems are
// returned as data, never raised: on an error naming a specific job, that
// job is excluded and resolution retried, degrading to the largest
// satisfiable subset. Readiness is always recomputed afterwards.
func (s *State) UpdateDesiredJobList(ctx context.Context, desired []*job.Job) []error {
	logger := ctxlog.FromContext(ctx)

	s.desired = dedupeJobs(desired)
	problems := s.recomputeRunList(ctx)
	s.recomputeReadiness()

	if len(problems) > 0 {
		logger.Warn("desired job list resolved with problems",
			"session", s.metadata.SessionID, "problems", len(problems))
	}
	s.notifyStateChange()
	s.notifyDesiredJobListChange()
	return problems
}

// recomputeRunList resolves mandatory ∪ desired through the orderer. Each
// failed round excludes the affected job and retries; every exclusion adds
// one problem. Termination is guaranteed: a round either succeeds or shrinks
// the visible catalog by one job.
func (s *State) recomputeRunList(ctx context.Context) []error {
	logger := ctxlog.FromContext(ctx)

	var problems []error
	excluded := make(map[string]struct{})

	for {
		catalog := make(map[string]*job.Job, len(s.jobMap))
		for id, j := range s.jobMap {
			if _, ok := excluded[id]; !ok {
				catalog[id] = j
			}
		}

		want := make([]string, 0, len(s.mandatory)+len(s.desired))
		for _, j := range append(append([]*job.Job(nil), s.mandatory...), s.desired...) {
			if _, ok := excluded[j.ID]; !ok {
				want = append(want, j.ID)
			}
		}

		ordered, err := s.orderer.Order(catalog, want)
		if err == nil {
			s.runList = s.runList[:0]
			for _, id := range ordered {
				s.runList = append(s.runList, s.jobMap[id])
			}
			return problems
		}

		problems = append(problems, err)
		var p depsolver.Problem
		if !errors.As(err, &p) {
			// Not attributable to one job; give up with an empty run list.
			s.runList = nil
			return problems
		}
		if _, ok := excluded[p.AffectedJobID()]; ok {
			s.runList = nil
			return problems
		}
		logger.Debug("excluding job from resolution",
			"session", s.metadata.SessionID, "job", p.AffectedJobID(), "reason", err)
		excluded[p.AffectedJobID()] = struct{}{}
	}
}

// UpdateJobResult stores a new result for the job and applies its side
// effects: resource jobs re-parse their transcript and wholesale-replace
// their resource map entry; local jobs merge newly generated definitions
// into the catalog. Readiness is always recomputed afterwards.
func (s *State) UpdateJobResult(ctx context.Context, j *job.Job, r *result.Result) error {
	logger := ctxlog.FromContext(ctx)

	js, ok := s.jobStates[j.ID]
	if !ok {
		return fmt.Errorf("job %q is not part of this session", j.ID)
	}
	js.Result = r

	// Side effects apply immediately, but their notifications are held back
	// so the coarse state-change event still fires before any finer one.
	var fine []func()
	switch j.Plugin {
	case job.PluginResource:
		s.ingestResourceResult(ctx, j, r)
		fine = append(fine, func() { s.notifyResourceMapChange(j.ID) })
	case job.PluginLocal:
		if s.ingestLocalResult(ctx, j, r) {
			fine = append(fine, s.notifyJobStateMapChange)
		}
	case job.PluginShell, job.PluginManual, job.PluginUserInteract,
		job.PluginUserVerify, job.PluginUserInteractVerify, job.PluginAttachment:
		// No engine-side effects beyond the stored result.
	}

	s.recomputeReadiness()
	logger.Debug("job result updated",
		"session", s.metadata.SessionID, "job", j.ID, "outcome", r.Outcome)
	s.notifyStateChange()
	for _, notify := range fine {
		notify()
	}
	s.notifyJobResultChange(j, r)
	return nil
}

// ingestResourceResult re-parses the transcript and replaces (never merges)
// the job's resource map entry.
func (s *State) ingestResourceResult(ctx context.Context, j *job.Job, r *result.Result) {
	logger := ctxlog.FromContext(ctx)

	text, err := r.StdoutText()
	if err != nil {
		logger.Warn("cannot read resource transcript, keeping no records",
			"session", s.metadata.SessionID, "job", j.ID, "error", err)
		text = ""
	}
	records := resource.ParseTranscript(ctx, text)
	s.resourceMap[j.ID] = records
	logger.Debug("resource map replaced",
		"session", s.metadata.SessionID, "job", j.ID, "records", len(records))
}

// ingestLocalResult parses the transcript as job definitions and merges the
// new ids into the catalog, reporting whether the catalog grew. Existing ids
// are left untouched; the local job's output is untrusted, so parse failures
// warn rather than fail.
func (s *State) ingestLocalResult(ctx context.Context, j *job.Job, r *result.Result) bool {
	logger := ctxlog.FromContext(ctx)

	text, err := r.StdoutText()
	if err != nil {
		logger.Warn("cannot read local job transcript",
			"session", s.metadata.SessionID, "job", j.ID, "error", err)
		return false
	}
	generated, err := job.ParseDefinitions(ctx, []byte(text), j.ID+" (generated)")
	if err != nil {
		logger.Warn("dropping malformed generated job definitions",
			"session", s.metadata.SessionID, "job", j.ID, "error", err)
		return false
	}

	added := 0
	for _, g := range generated {
		if _, ok := s.jobMap[g.ID]; ok {
			continue
		}
		s.addJob(g)
		added++
	}
	if added > 0 {
		logger.Debug("local job expanded catalog",
			"session", s.metadata.SessionID, "job", j.ID, "added", added)
	}
	return added > 0
}

// recomputeReadiness rebuilds every job's inhibitor list. Every job resets
// to undesired; run-list members then get one inhibitor per unsatisfied
// dependency or requirement. Because the run list is already topologically
// ordered, one linear pass suffices.
func (s *State) recomputeReadiness() {
	for _, js := range s.jobStates {
		js.Inhibitors = []Inhibitor{undesiredInhibitor()}
	}

	for _, j := range s.runList {
		js := s.jobStates[j.ID]
		inhibitors := []Inhibitor{}

		for _, dep := range j.DependsOn {
			depState := s.jobStates[dep]
			switch {
			case depState == nil || depState.Result == nil ||
				depState.Result.Outcome == result.OutcomeNone ||
				depState.Result.Outcome == result.OutcomeUndecided:
				inhibitors = append(inhibitors, Inhibitor{
					Cause:        CausePendingDep,
					RelatedJobID: dep,
				})
			case depState.Result.Outcome != result.OutcomePass:
				inhibitors = append(inhibitors, Inhibitor{
					Cause:        CauseFailedDep,
					RelatedJobID: dep,
				})
			}
		}

		for _, expr := range j.Requires {
			rid := expr.ResourceID()
			records, ok := s.resourceMap[rid]
			switch {
			case !ok:
				inhibitors = append(inhibitors, Inhibitor{
					Cause:        CausePendingResource,
					RelatedJobID: rid,
					Expression:   expr,
				})
			case !expr.SatisfiedBy(records):
				inhibitors = append(inhibitors, Inhibitor{
					Cause:        CauseFailedResource,
					RelatedJobID: rid,
					Expression:   expr,
				})
			}
		}

		js.Inhibitors = inhibitors
	}
}

// dedupeJobs drops repeated pointers/ids, preserving first-occurrence order.
func dedupeJobs(jobs []*job.Job) []*job.Job {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]*job.Job, 0, len(jobs))
	for _, j := range jobs {
		if _, ok := seen[j.ID]; ok {
			continue
		}
		seen[j.ID] = struct{}{}
		out = append(out, j)
	}
	return out
}
