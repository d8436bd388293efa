package suspend

import (
	"context"

	"github.com/hwcert/checkline/internal/ctxlog"
	"github.com/hwcert/checkline/internal/job"
	"github.com/hwcert/checkline/internal/session"
)

// Flag is a set of caller-supplied resume options.
type Flag uint

const (
	// FlagCheckFileReferences requires disk-backed io logs to exist.
	FlagCheckFileReferences Flag = 1 << iota
	// FlagRewriteLogPathnames tries a legacy-prefix rewrite for a missing
	// io log before failing. Implies FlagCheckFileReferences.
	FlagRewriteLogPathnames
	// FlagIgnoreJobChecksum downgrades checksum drift from an
	// incompatible-job error to a logged warning.
	FlagIgnoreJobChecksum
)

// Options configures a resume.
type Options struct {
	Flags Flag
	// Location is the current session storage directory: relative io log
	// pathnames (v5+) resolve against it and rewritten legacy pathnames
	// land under it.
	Location string
	// LegacyLocation is the absolute cache prefix older envelopes may have
	// baked into io log pathnames.
	LegacyLocation string
}

// EarlyCallback lets the caller observe or replace the freshly constructed
// session before any result replay, typically to attach change observers
// first. Returning nil keeps the session unchanged.
type EarlyCallback func(*session.State) *session.State

// Resume rebuilds a live session from a persisted envelope, validated
// against the caller's current catalog. Persisted data never recreates job
// definitions, only results and selections. Validation is eager and
// field-by-field: the first violation aborts and no partial session is ever
// returned.
func Resume(ctx context.Context, blob []byte, catalog []*job.Job, opts Options, early EarlyCallback) (*session.State, error) {
	logger := ctxlog.FromContext(ctx)

	doc, version, err := unwrapEnvelope(blob)
	if err != nil {
		return nil, err
	}
	dec, ok := decoders[version]
	if !ok {
		return nil, &IncompatibleSessionError{Version: version}
	}
	sessionObj, err := getObject(doc, "session")
	if err != nil {
		return nil, err
	}

	st, err := session.New(ctx, catalog, nil)
	if err != nil {
		return nil, err
	}
	if early != nil {
		if replacement := early(st); replacement != nil {
			st = replacement
		}
	}

	rs := &resumeState{
		opts:       opts,
		state:      st,
		sessionObj: sessionObj,
		evidenced:  make(map[string]struct{}),
	}
	if err := dec.restoreJobsAndResults(ctx, rs); err != nil {
		return nil, err
	}

	metaObj, err := getObject(sessionObj, "metadata")
	if err != nil {
		return nil, err
	}
	if err := dec.restoreMetadata(metaObj, st.Metadata()); err != nil {
		return nil, err
	}
	if err := dec.restoreJobLists(ctx, rs); err != nil {
		return nil, err
	}

	// Drop catalog jobs neither slated to run nor evidenced by persisted
	// results.
	onRun := make(map[string]struct{}, len(st.RunList()))
	for _, j := range st.RunList() {
		onRun[j.ID] = struct{}{}
	}
	err = st.TrimJobList(ctx, func(j *job.Job) bool {
		_, evidenced := rs.evidenced[j.ID]
		_, running := onRun[j.ID]
		return !evidenced && !running
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("session resumed",
		"version", version,
		"jobs", len(st.Jobs()),
		"run_list", len(st.RunList()))
	return st, nil
}

// PeekResult is the metadata-only view of an envelope.
type PeekResult struct {
	Version  int
	Metadata session.Metadata
}

// Peek decodes only the envelope version and metadata, avoiding a full
// session rebuild.
func Peek(blob []byte) (*PeekResult, error) {
	doc, version, err := unwrapEnvelope(blob)
	if err != nil {
		return nil, err
	}
	dec, ok := decoders[version]
	if !ok {
		return nil, &IncompatibleSessionError{Version: version}
	}
	sessionObj, err := getObject(doc, "session")
	if err != nil {
		return nil, err
	}
	metaObj, err := getObject(sessionObj, "metadata")
	if err != nil {
		return nil, err
	}

	md := session.Metadata{Flags: make(map[string]struct{})}
	if err := dec.restoreMetadata(metaObj, &md); err != nil {
		return nil, err
	}
	return &PeekResult{Version: version, Metadata: md}, nil
}
