package suspend

import (
	"context"
	"sort"

	"github.com/hwcert/checkline/internal/ctxlog"
	"github.com/hwcert/checkline/internal/job"
	"github.com/hwcert/checkline/internal/session"
)

// formatDecoder is the per-version restore contract. Each version is one
// decoder value delegating to its predecessor for unchanged fields and
// overriding only what that revision changed; the decoders table replaces
// any dynamic dispatch.
type formatDecoder interface {
	restoreMetadata(meta map[string]any, md *session.Metadata) error
	restoreJobsAndResults(ctx context.Context, rs *resumeState) error
	restoreJobLists(ctx context.Context, rs *resumeState) error
}

// decoders maps every supported envelope version to its decoder. A version
// outside this table is rejected immediately with no best-effort decoding.
var decoders = map[int]formatDecoder{
	1: v1Decoder{},
	2: v2Decoder{},
	3: v3Decoder{},
	4: v4Decoder{},
	5: v5Decoder{},
	6: v6Decoder{},
}

// resumeState carries the in-progress restore: the envelope body, the
// session being rebuilt, and per-version toggles.
type resumeState struct {
	opts       Options
	state      *session.State
	sessionObj map[string]any

	// relativeLogPaths is set by v5+ decoders: stored io log pathnames may
	// be relative and resolve against the caller-supplied location.
	relativeLogPaths bool

	// evidenced collects job ids that replayed at least one persisted
	// result; the final trim keeps them.
	evidenced map[string]struct{}
}

// --- version 1: the base format ---

type v1Decoder struct{}

func (v1Decoder) restoreMetadata(meta map[string]any, md *session.Metadata) error {
	title, err := getStringOrNull(meta, "title")
	if err != nil {
		return err
	}
	flags, err := getStringList(meta, "flags")
	if err != nil {
		return err
	}
	running, err := getStringOrNull(meta, "running_job_name")
	if err != nil {
		return err
	}

	md.Title = title
	md.Flags = make(map[string]struct{}, len(flags))
	for _, f := range flags {
		md.Flags[f] = struct{}{}
	}
	md.RunningJobName = running
	return nil
}

// restoreJobsAndResults runs the two-pass reconstruction. Persisted entries
// reference jobs by id, and an id may belong to a job generated at runtime
// by a local job replayed earlier; ids are processed in sorted order and
// unresolved ones retried in further rounds. A round that resolves nothing
// means the envelope references jobs this catalog can never produce.
func (v1Decoder) restoreJobsAndResults(ctx context.Context, rs *resumeState) error {
	logger := ctxlog.FromContext(ctx)

	jobsObj, err := getObject(rs.sessionObj, "jobs")
	if err != nil {
		return err
	}
	checksums := make(map[string]string, len(jobsObj))
	for id, raw := range jobsObj {
		sum, ok := raw.(string)
		if !ok {
			return corruptedf("jobs", "checksum for %q: expected string, got %T", id, raw)
		}
		checksums[id] = sum
	}

	resultsObj, err := getObject(rs.sessionObj, "results")
	if err != nil {
		return err
	}
	for id := range resultsObj {
		if _, ok := checksums[id]; !ok {
			return corruptedf("results", "results for job %q not present in jobs", id)
		}
	}

	pending := make([]string, 0, len(checksums))
	for id := range checksums {
		pending = append(pending, id)
	}
	sort.Strings(pending)

	for len(pending) > 0 {
		var deferred []string
		progress := false

		for _, id := range pending {
			live := rs.state.Job(id)
			if live == nil {
				deferred = append(deferred, id)
				continue
			}
			progress = true

			if checksums[id] != live.Checksum() {
				if rs.opts.Flags&FlagIgnoreJobChecksum == 0 {
					return &IncompatibleJobError{JobID: id}
				}
				logger.Warn("ignoring job checksum drift", "job", id)
			}

			if err := replayResults(ctx, rs, id, resultsObj[id]); err != nil {
				return err
			}
		}

		if !progress {
			sort.Strings(deferred)
			return corruptedf("jobs", "unknown jobs remaining: %v", deferred)
		}
		pending = deferred
	}
	return nil
}

func (v1Decoder) restoreJobLists(ctx context.Context, rs *resumeState) error {
	ids, err := getStringList(rs.sessionObj, "desired_job_list")
	if err != nil {
		return err
	}
	desired, err := lookupJobs(rs, ids, "desired_job_list")
	if err != nil {
		return err
	}
	if problems := rs.state.UpdateDesiredJobList(ctx, desired); len(problems) > 0 {
		return corruptedf("desired_job_list", "cannot be resolved: %v", problems[0])
	}
	return nil
}

// replayResults rebuilds and replays every persisted result for one job,
// in original order, so side effects (resource parsing, local-job
// expansion) occur exactly as they would live.
func replayResults(ctx context.Context, rs *resumeState, id string, raw any) error {
	if raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return corruptedf("results", "entries for %q: expected list, got %T", id, raw)
	}
	for _, item := range list {
		repr, ok := item.(map[string]any)
		if !ok {
			return corruptedf("results", "entry for %q: expected object, got %T", id, item)
		}
		res, err := buildResult(rs, repr)
		if err != nil {
			return err
		}
		if err := rs.state.UpdateJobResult(ctx, rs.state.Job(id), res); err != nil {
			return corruptedf("results", "replaying result for %q: %v", id, err)
		}
		rs.evidenced[id] = struct{}{}
	}
	return nil
}

// lookupJobs maps persisted id lists back to live jobs, failing with a
// corruption error on any unknown id.
func lookupJobs(rs *resumeState, ids []string, field string) ([]*job.Job, error) {
	jobs := make([]*job.Job, 0, len(ids))
	for _, id := range ids {
		j := rs.state.Job(id)
		if j == nil {
			return nil, corruptedf(field, "unknown job %q", id)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// --- version 2: adds metadata app_blob ---

type v2Decoder struct {
	prev v1Decoder
}

func (d v2Decoder) restoreMetadata(meta map[string]any, md *session.Metadata) error {
	if err := d.prev.restoreMetadata(meta, md); err != nil {
		return err
	}
	blob, err := getBase64OrNull(meta, "app_blob")
	if err != nil {
		return err
	}
	md.AppBlob = blob
	return nil
}

func (d v2Decoder) restoreJobsAndResults(ctx context.Context, rs *resumeState) error {
	return d.prev.restoreJobsAndResults(ctx, rs)
}

func (d v2Decoder) restoreJobLists(ctx context.Context, rs *resumeState) error {
	return d.prev.restoreJobLists(ctx, rs)
}

// --- version 3: adds metadata app_id ---

type v3Decoder struct {
	prev v2Decoder
}

func (d v3Decoder) restoreMetadata(meta map[string]any, md *session.Metadata) error {
	if err := d.prev.restoreMetadata(meta, md); err != nil {
		return err
	}
	appID, err := getStringOrNull(meta, "app_id")
	if err != nil {
		return err
	}
	md.AppID = appID
	return nil
}

func (d v3Decoder) restoreJobsAndResults(ctx context.Context, rs *resumeState) error {
	return d.prev.restoreJobsAndResults(ctx, rs)
}

func (d v3Decoder) restoreJobLists(ctx context.Context, rs *resumeState) error {
	return d.prev.restoreJobLists(ctx, rs)
}

// --- version 4: adds metadata last_job_start_time ---

type v4Decoder struct {
	prev v3Decoder
}

func (d v4Decoder) restoreMetadata(meta map[string]any, md *session.Metadata) error {
	if err := d.prev.restoreMetadata(meta, md); err != nil {
		return err
	}
	t, err := getFloatOrNull(meta, "last_job_start_time")
	if err != nil {
		return err
	}
	md.LastJobStartTime = t
	return nil
}

func (d v4Decoder) restoreJobsAndResults(ctx context.Context, rs *resumeState) error {
	return d.prev.restoreJobsAndResults(ctx, rs)
}

func (d v4Decoder) restoreJobLists(ctx context.Context, rs *resumeState) error {
	return d.prev.restoreJobLists(ctx, rs)
}

// --- version 5: io log pathnames may be relative ---

type v5Decoder struct {
	prev v4Decoder
}

func (d v5Decoder) restoreMetadata(meta map[string]any, md *session.Metadata) error {
	return d.prev.restoreMetadata(meta, md)
}

func (d v5Decoder) restoreJobsAndResults(ctx context.Context, rs *resumeState) error {
	rs.relativeLogPaths = true
	return d.prev.restoreJobsAndResults(ctx, rs)
}

func (d v5Decoder) restoreJobLists(ctx context.Context, rs *resumeState) error {
	return d.prev.restoreJobLists(ctx, rs)
}

// --- version 6: adds the mandatory job list ---

type v6Decoder struct {
	prev v5Decoder
}

func (d v6Decoder) restoreMetadata(meta map[string]any, md *session.Metadata) error {
	return d.prev.restoreMetadata(meta, md)
}

func (d v6Decoder) restoreJobsAndResults(ctx context.Context, rs *resumeState) error {
	return d.prev.restoreJobsAndResults(ctx, rs)
}

// restoreJobLists restores the mandatory list first so the delegated
// desired-list update resolves the union of both.
func (d v6Decoder) restoreJobLists(ctx context.Context, rs *resumeState) error {
	ids, err := getStringList(rs.sessionObj, "mandatory_job_list")
	if err != nil {
		return err
	}
	mandatory, err := lookupJobs(rs, ids, "mandatory_job_list")
	if err != nil {
		return err
	}
	rs.state.UpdateMandatoryJobList(mandatory)
	return d.prev.restoreJobLists(ctx, rs)
}
