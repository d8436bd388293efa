package suspend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hwcert/checkline/internal/ctxlog"
	"github.com/hwcert/checkline/internal/job"
	"github.com/hwcert/checkline/internal/result"
	"github.com/hwcert/checkline/internal/session"
)

// FormatVersion is the envelope version Suspend writes. Resume keeps
// decoding every older revision.
const FormatVersion = 6

// Suspend serializes the session into a compressed envelope in the current
// format version. Resume is the mirror operation.
func Suspend(ctx context.Context, st *session.State) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	jobs := make(map[string]string, len(st.Jobs()))
	for _, j := range st.Jobs() {
		jobs[j.ID] = j.Checksum()
	}

	results := make(map[string][]any)
	for id, js := range st.JobStates() {
		if js.Result != nil {
			results[id] = []any{encodeResult(js.Result)}
		}
	}

	md := st.Metadata()
	flags := make([]string, 0, len(md.Flags))
	for f := range md.Flags {
		flags = append(flags, f)
	}
	sort.Strings(flags)

	doc := map[string]any{
		"version": FormatVersion,
		"session": map[string]any{
			"jobs":               jobs,
			"results":            results,
			"desired_job_list":   jobIDs(st.DesiredJobList()),
			"mandatory_job_list": jobIDs(st.MandatoryJobList()),
			"metadata": map[string]any{
				"title":               nullableString(md.Title),
				"flags":               flags,
				"running_job_name":    nullableString(md.RunningJobName),
				"app_blob":            nullableBlob(md.AppBlob),
				"app_id":              nullableString(md.AppID),
				"last_job_start_time": md.LastJobStartTime,
			},
		},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("serializing session: %w", err)
	}
	blob, err := compress(data)
	if err != nil {
		return nil, err
	}
	logger.Debug("session suspended",
		"version", FormatVersion, "jobs", len(jobs), "bytes", len(blob))
	return blob, nil
}

// encodeResult renders one result representation. In-memory transcripts are
// embedded as [delay, stream, base64 data] triples; disk-backed ones keep
// their pathname reference.
func encodeResult(r *result.Result) map[string]any {
	repr := map[string]any{
		"outcome":            nullableString(string(r.Outcome)),
		"comments":           nullableString(r.Comments),
		"return_code":        r.ReturnCode,
		"execution_duration": r.ExecutionDuration,
	}
	if r.DiskBacked() {
		repr["io_log_filename"] = r.IOLogFilename
		return repr
	}
	log := make([]any, 0, len(r.IOLog))
	for _, rec := range r.IOLog {
		log = append(log, []any{
			rec.Delay,
			string(rec.Stream),
			base64.StdEncoding.EncodeToString(rec.Data),
		})
	}
	repr["io_log"] = log
	return repr
}

func jobIDs(jobs []*job.Job) []string {
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	return ids
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return base64.StdEncoding.EncodeToString(b)
}
