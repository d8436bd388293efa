package suspend

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwcert/checkline/internal/job"
	"github.com/hwcert/checkline/internal/result"
	"github.com/hwcert/checkline/internal/session"
)

func newJob(t *testing.T, id string, plugin job.Plugin, def job.Definition) *job.Job {
	t.Helper()
	j, err := job.New(id, plugin, def)
	require.NoError(t, err)
	return j
}

func passResult(stdout string) *result.Result {
	return &result.Result{
		Outcome: result.OutcomePass,
		IOLog: []result.IOLogRecord{
			{Delay: 0, Stream: result.Stdout, Data: []byte(stdout)},
		},
	}
}

// envelope compresses a hand-built document the way Suspend would.
func envelope(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	blob, err := compress(data)
	require.NoError(t, err)
	return blob
}

// v6Metadata builds the full metadata block the current format requires.
func v6Metadata() map[string]any {
	return map[string]any{
		"title":               "t",
		"flags":               []any{},
		"running_job_name":    nil,
		"app_blob":            nil,
		"app_id":              nil,
		"last_job_start_time": nil,
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	catalog := []*job.Job{
		newJob(t, "r", job.PluginResource, job.Definition{Command: "probe"}),
		newJob(t, "a", job.PluginShell, job.Definition{Requires: []string{`r.attr == "value"`}}),
	}

	st, err := session.New(ctx, catalog, nil)
	require.NoError(t, err)
	md := st.Metadata()
	md.Title = "smoke run"
	md.SetFlag(session.FlagIncomplete)
	md.AppBlob = []byte(`{"cursor":3}`)
	md.AppID = "checkline"

	require.Empty(t, st.UpdateDesiredJobList(ctx, []*job.Job{st.Job("a")}))
	require.NoError(t, st.UpdateJobResult(ctx, st.Job("r"), passResult("attr: value\n")))

	blob, err := Suspend(ctx, st)
	require.NoError(t, err)

	resumed, err := Resume(ctx, blob, catalog, Options{}, nil)
	require.NoError(t, err)

	// Equivalent run list, resource map, and per-job last result.
	var runIDs, wantIDs []string
	for _, j := range resumed.RunList() {
		runIDs = append(runIDs, j.ID)
	}
	for _, j := range st.RunList() {
		wantIDs = append(wantIDs, j.ID)
	}
	assert.Equal(t, wantIDs, runIDs)
	assert.Empty(t, cmp.Diff(st.ResourceMap(), resumed.ResourceMap()))
	require.NotNil(t, resumed.JobState("r").Result)
	assert.Equal(t, result.OutcomePass, resumed.JobState("r").Result.Outcome)
	assert.True(t, resumed.JobState("a").Runnable())

	rmd := resumed.Metadata()
	assert.Equal(t, "smoke run", rmd.Title)
	assert.True(t, rmd.HasFlag(session.FlagIncomplete))
	assert.Equal(t, []byte(`{"cursor":3}`), rmd.AppBlob)
	assert.Equal(t, "checkline", rmd.AppID)
}

func TestResumeVersionDispatch(t *testing.T) {
	t.Run("unknown version is incompatible, never corrupted", func(t *testing.T) {
		blob := envelope(t, map[string]any{"version": 99, "session": map[string]any{}})
		_, err := Resume(context.Background(), blob, nil, Options{}, nil)
		var incompatible *IncompatibleSessionError
		require.ErrorAs(t, err, &incompatible)
		assert.Equal(t, 99, incompatible.Version)
		var corrupted *CorruptedSessionError
		assert.False(t, errors.As(err, &corrupted))
		assert.ErrorIs(t, err, ErrResume)
	})

	t.Run("missing version field", func(t *testing.T) {
		blob := envelope(t, map[string]any{"session": map[string]any{}})
		_, err := Resume(context.Background(), blob, nil, Options{}, nil)
		var corrupted *CorruptedSessionError
		require.ErrorAs(t, err, &corrupted)
		assert.Equal(t, "version", corrupted.Field)
	})

	t.Run("not gzip at all", func(t *testing.T) {
		_, err := Resume(context.Background(), []byte("junk"), nil, Options{}, nil)
		var corrupted *CorruptedSessionError
		require.ErrorAs(t, err, &corrupted)
		assert.Equal(t, "envelope", corrupted.Field)
	})
}

func TestResumeMissingResults(t *testing.T) {
	blob := envelope(t, map[string]any{
		"version": 6,
		"session": map[string]any{
			"jobs":               map[string]any{},
			"desired_job_list":   []any{},
			"mandatory_job_list": []any{},
			"metadata":           v6Metadata(),
		},
	})
	_, err := Resume(context.Background(), blob, nil, Options{}, nil)
	var corrupted *CorruptedSessionError
	require.ErrorAs(t, err, &corrupted)
	assert.Equal(t, "results", corrupted.Field)
}

func TestResumeChecksumDrift(t *testing.T) {
	ctx := context.Background()
	a := newJob(t, "a", job.PluginShell, job.Definition{Command: "true"})
	doc := map[string]any{
		"version": 6,
		"session": map[string]any{
			"jobs":               map[string]any{"a": "0000dead"},
			"results":            map[string]any{},
			"desired_job_list":   []any{"a"},
			"mandatory_job_list": []any{},
			"metadata":           v6Metadata(),
		},
	}
	blob := envelope(t, doc)

	t.Run("drift is an incompatible-job error", func(t *testing.T) {
		_, err := Resume(ctx, blob, []*job.Job{a}, Options{}, nil)
		var drift *IncompatibleJobError
		require.ErrorAs(t, err, &drift)
		assert.Equal(t, "a", drift.JobID)
	})

	t.Run("ignore flag downgrades to a warning", func(t *testing.T) {
		st, err := Resume(ctx, blob, []*job.Job{a}, Options{Flags: FlagIgnoreJobChecksum}, nil)
		require.NoError(t, err)
		require.Len(t, st.RunList(), 1)
		assert.Equal(t, "a", st.RunList()[0].ID)
	})
}

func TestResumeUnknownJobLists(t *testing.T) {
	ctx := context.Background()
	a := newJob(t, "a", job.PluginShell, job.Definition{Command: "true"})

	makeBlob := func(desired, mandatory []any) []byte {
		return envelope(t, map[string]any{
			"version": 6,
			"session": map[string]any{
				"jobs":               map[string]any{"a": a.Checksum()},
				"results":            map[string]any{},
				"desired_job_list":   desired,
				"mandatory_job_list": mandatory,
				"metadata":           v6Metadata(),
			},
		})
	}

	t.Run("unknown desired id", func(t *testing.T) {
		_, err := Resume(ctx, makeBlob([]any{"ghost"}, []any{}), []*job.Job{a}, Options{}, nil)
		var corrupted *CorruptedSessionError
		require.ErrorAs(t, err, &corrupted)
		assert.Equal(t, "desired_job_list", corrupted.Field)
	})

	t.Run("unknown mandatory id", func(t *testing.T) {
		_, err := Resume(ctx, makeBlob([]any{}, []any{"ghost"}), []*job.Job{a}, Options{}, nil)
		var corrupted *CorruptedSessionError
		require.ErrorAs(t, err, &corrupted)
		assert.Equal(t, "mandatory_job_list", corrupted.Field)
	})
}

func TestResumeUnknownJobsRemaining(t *testing.T) {
	blob := envelope(t, map[string]any{
		"version": 6,
		"session": map[string]any{
			"jobs":               map[string]any{"phantom": "feed"},
			"results":            map[string]any{},
			"desired_job_list":   []any{},
			"mandatory_job_list": []any{},
			"metadata":           v6Metadata(),
		},
	})
	_, err := Resume(context.Background(), blob, nil, Options{}, nil)
	var corrupted *CorruptedSessionError
	require.ErrorAs(t, err, &corrupted)
	assert.Contains(t, corrupted.Reason, "unknown jobs remaining")
	assert.Contains(t, corrupted.Reason, "phantom")
}

func TestResumeLocalJobTwoPass(t *testing.T) {
	ctx := context.Background()
	local := newJob(t, "probe-local", job.PluginLocal, job.Definition{Command: "gen"})

	live, err := session.New(ctx, []*job.Job{local}, nil)
	require.NoError(t, err)
	generated := `job "gen-1" { command = "true" }`
	require.NoError(t, live.UpdateJobResult(ctx, local, passResult(generated)))
	require.NoError(t, live.UpdateJobResult(ctx, live.Job("gen-1"), passResult("")))

	blob, err := Suspend(ctx, live)
	require.NoError(t, err)

	// The current catalog knows nothing about gen-1; the replay of
	// probe-local regenerates it, and a later round resolves its results.
	// Sorted-id order processes gen-1 first, forcing the deferral path.
	resumed, err := Resume(ctx, blob, []*job.Job{local}, Options{}, nil)
	require.NoError(t, err)
	require.NotNil(t, resumed.Job("gen-1"))
	require.NotNil(t, resumed.JobState("gen-1").Result)
	assert.Equal(t, result.OutcomePass, resumed.JobState("gen-1").Result.Outcome)
}

func TestResumeTrimsUnevidencedJobs(t *testing.T) {
	ctx := context.Background()
	catalog := []*job.Job{
		newJob(t, "wanted", job.PluginShell, job.Definition{Command: "true"}),
		newJob(t, "bystander", job.PluginShell, job.Definition{Command: "true"}),
	}
	live, err := session.New(ctx, catalog, nil)
	require.NoError(t, err)
	require.Empty(t, live.UpdateDesiredJobList(ctx, []*job.Job{live.Job("wanted")}))

	blob, err := Suspend(ctx, live)
	require.NoError(t, err)
	resumed, err := Resume(ctx, blob, catalog, Options{}, nil)
	require.NoError(t, err)

	assert.NotNil(t, resumed.Job("wanted"))
	assert.Nil(t, resumed.Job("bystander"))
}

func TestExternalLogReferences(t *testing.T) {
	ctx := context.Background()

	suspendWithLog := func(t *testing.T, filename string) ([]byte, []*job.Job) {
		t.Helper()
		a := newJob(t, "a", job.PluginShell, job.Definition{Command: "true"})
		live, err := session.New(ctx, []*job.Job{a}, nil)
		require.NoError(t, err)
		res := &result.Result{Outcome: result.OutcomePass, IOLogFilename: filename}
		require.NoError(t, live.UpdateJobResult(ctx, a, res))
		blob, err := Suspend(ctx, live)
		require.NoError(t, err)
		return blob, []*job.Job{a}
	}

	t.Run("no checks keeps the pathname as stored", func(t *testing.T) {
		blob, catalog := suspendWithLog(t, "/definitely/missing/x.log")
		st, err := Resume(ctx, blob, catalog, Options{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "/definitely/missing/x.log", st.JobState("a").Result.IOLogFilename)
	})

	t.Run("checking a missing file fails", func(t *testing.T) {
		blob, catalog := suspendWithLog(t, "/definitely/missing/x.log")
		_, err := Resume(ctx, blob, catalog, Options{Flags: FlagCheckFileReferences}, nil)
		var broken *BrokenReferenceError
		require.ErrorAs(t, err, &broken)
		assert.Equal(t, "/definitely/missing/x.log", broken.Filename)
	})

	t.Run("legacy prefix rewrite recovers a moved log", func(t *testing.T) {
		location := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(location, "logs"), 0o755))
		moved := filepath.Join(location, "logs", "x.log")
		require.NoError(t, os.WriteFile(moved, []byte("output"), 0o644))

		blob, catalog := suspendWithLog(t, "/old/cache/logs/x.log")
		st, err := Resume(ctx, blob, catalog, Options{
			Flags:          FlagRewriteLogPathnames,
			Location:       location,
			LegacyLocation: "/old/cache",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, moved, st.JobState("a").Result.IOLogFilename)
	})

	t.Run("rewrite still fails when nothing is there", func(t *testing.T) {
		blob, catalog := suspendWithLog(t, "/old/cache/logs/x.log")
		_, err := Resume(ctx, blob, catalog, Options{
			Flags:          FlagRewriteLogPathnames,
			Location:       t.TempDir(),
			LegacyLocation: "/old/cache",
		}, nil)
		var broken *BrokenReferenceError
		require.ErrorAs(t, err, &broken)
	})
}

func TestRelativeLogPathVersions(t *testing.T) {
	ctx := context.Background()
	a := newJob(t, "a", job.PluginShell, job.Definition{Command: "true"})

	docFor := func(version int) map[string]any {
		meta := map[string]any{
			"title":            nil,
			"flags":            []any{},
			"running_job_name": nil,
		}
		if version >= 2 {
			meta["app_blob"] = nil
		}
		if version >= 3 {
			meta["app_id"] = nil
		}
		if version >= 4 {
			meta["last_job_start_time"] = nil
		}
		sess := map[string]any{
			"jobs": map[string]any{"a": a.Checksum()},
			"results": map[string]any{
				"a": []any{map[string]any{
					"outcome":            "pass",
					"comments":           nil,
					"return_code":        nil,
					"execution_duration": nil,
					"io_log_filename":    "logs/x.log",
				}},
			},
			"desired_job_list": []any{"a"},
			"metadata":         meta,
		}
		if version >= 6 {
			sess["mandatory_job_list"] = []any{}
		}
		return map[string]any{"version": version, "session": sess}
	}

	t.Run("relative pathnames are corruption before v5", func(t *testing.T) {
		_, err := Resume(ctx, envelope(t, docFor(4)), []*job.Job{a}, Options{}, nil)
		var corrupted *CorruptedSessionError
		require.ErrorAs(t, err, &corrupted)
		assert.Equal(t, "io_log_filename", corrupted.Field)
	})

	t.Run("v5 resolves them against the location", func(t *testing.T) {
		st, err := Resume(ctx, envelope(t, docFor(5)), []*job.Job{a},
			Options{Location: "/var/lib/sessions/current"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/sessions/current/logs/x.log",
			st.JobState("a").Result.IOLogFilename)
	})
}

func TestV1MinimalEnvelope(t *testing.T) {
	ctx := context.Background()
	a := newJob(t, "a", job.PluginShell, job.Definition{Command: "true"})

	blob := envelope(t, map[string]any{
		"version": 1,
		"session": map[string]any{
			"jobs": map[string]any{"a": a.Checksum()},
			"results": map[string]any{
				"a": []any{map[string]any{
					"outcome":            "fail",
					"comments":           "lid switch stuck",
					"return_code":        float64(1),
					"execution_duration": 2.5,
					"io_log":             []any{[]any{0.0, "stdout", "aGVsbG8="}},
				}},
			},
			"desired_job_list": []any{"a"},
			"metadata": map[string]any{
				"title":            "legacy run",
				"flags":            []any{"incomplete"},
				"running_job_name": "a",
			},
		},
	})

	st, err := Resume(ctx, blob, []*job.Job{a}, Options{}, nil)
	require.NoError(t, err)

	res := st.JobState("a").Result
	require.NotNil(t, res)
	assert.Equal(t, result.OutcomeFail, res.Outcome)
	assert.Equal(t, "lid switch stuck", res.Comments)
	require.NotNil(t, res.ReturnCode)
	assert.Equal(t, 1, *res.ReturnCode)
	require.Len(t, res.IOLog, 1)
	assert.Equal(t, []byte("hello"), res.IOLog[0].Data)

	md := st.Metadata()
	assert.Equal(t, "legacy run", md.Title)
	assert.True(t, md.HasFlag("incomplete"))
	assert.Equal(t, "a", md.RunningJobName)
	// v1 has no app blob or id to restore.
	assert.Nil(t, md.AppBlob)
	assert.Empty(t, md.AppID)
}

func TestV2RequiresAppBlob(t *testing.T) {
	a := newJob(t, "a", job.PluginShell, job.Definition{Command: "true"})
	blob := envelope(t, map[string]any{
		"version": 2,
		"session": map[string]any{
			"jobs":             map[string]any{"a": a.Checksum()},
			"results":          map[string]any{},
			"desired_job_list": []any{},
			"metadata": map[string]any{
				"title":            nil,
				"flags":            []any{},
				"running_job_name": nil,
				// app_blob deliberately absent
			},
		},
	})
	_, err := Resume(context.Background(), blob, []*job.Job{a}, Options{}, nil)
	var corrupted *CorruptedSessionError
	require.ErrorAs(t, err, &corrupted)
	assert.Equal(t, "app_blob", corrupted.Field)
}

func TestBadIOLogTriples(t *testing.T) {
	a := newJob(t, "a", job.PluginShell, job.Definition{Command: "true"})

	resumeWith := func(t *testing.T, repr map[string]any) error {
		blob := envelope(t, map[string]any{
			"version": 6,
			"session": map[string]any{
				"jobs":               map[string]any{"a": a.Checksum()},
				"results":            map[string]any{"a": []any{repr}},
				"desired_job_list":   []any{},
				"mandatory_job_list": []any{},
				"metadata":           v6Metadata(),
			},
		})
		_, err := Resume(context.Background(), blob, []*job.Job{a}, Options{}, nil)
		return err
	}

	base := func() map[string]any {
		return map[string]any{
			"outcome":            "pass",
			"comments":           nil,
			"return_code":        nil,
			"execution_duration": nil,
		}
	}

	t.Run("both log shapes at once", func(t *testing.T) {
		repr := base()
		repr["io_log"] = []any{}
		repr["io_log_filename"] = "/x.log"
		assert.ErrorContains(t, resumeWith(t, repr), "exactly one")
	})

	t.Run("negative delay", func(t *testing.T) {
		repr := base()
		repr["io_log"] = []any{[]any{-1.0, "stdout", ""}}
		assert.ErrorContains(t, resumeWith(t, repr), "delay")
	})

	t.Run("bad stream", func(t *testing.T) {
		repr := base()
		repr["io_log"] = []any{[]any{0.0, "stdmiddle", ""}}
		assert.ErrorContains(t, resumeWith(t, repr), "stream")
	})

	t.Run("unknown outcome", func(t *testing.T) {
		repr := base()
		repr["outcome"] = "exploded"
		repr["io_log"] = []any{}
		var corrupted *CorruptedSessionError
		require.ErrorAs(t, resumeWith(t, repr), &corrupted)
		assert.Equal(t, "outcome", corrupted.Field)
	})
}

func TestPeek(t *testing.T) {
	ctx := context.Background()
	a := newJob(t, "a", job.PluginShell, job.Definition{Command: "true"})
	live, err := session.New(ctx, []*job.Job{a}, nil)
	require.NoError(t, err)
	live.Metadata().Title = "peekable"
	live.Metadata().SetFlag(session.FlagSubmitted)

	blob, err := Suspend(ctx, live)
	require.NoError(t, err)

	peeked, err := Peek(blob)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, peeked.Version)
	assert.Equal(t, "peekable", peeked.Metadata.Title)
	assert.True(t, peeked.Metadata.HasFlag(session.FlagSubmitted))

	t.Run("unknown version", func(t *testing.T) {
		bad := envelope(t, map[string]any{"version": 99, "session": map[string]any{}})
		_, err := Peek(bad)
		var incompatible *IncompatibleSessionError
		require.ErrorAs(t, err, &incompatible)
	})
}

func TestEarlyCallback(t *testing.T) {
	ctx := context.Background()
	a := newJob(t, "a", job.PluginShell, job.Definition{Command: "true"})
	live, err := session.New(ctx, []*job.Job{a}, nil)
	require.NoError(t, err)
	require.NoError(t, live.UpdateJobResult(ctx, a, passResult("")))

	blob, err := Suspend(ctx, live)
	require.NoError(t, err)

	var observed int
	st, err := Resume(ctx, blob, []*job.Job{a}, Options{}, func(s *session.State) *session.State {
		// Observers attached here must see the replay.
		s.OnJobResultChange(func(*job.Job, *result.Result) { observed++ })
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 1, observed)
}
