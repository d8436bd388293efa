package suspend

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/hwcert/checkline/internal/result"
)

// buildResult reconstructs one result representation. Two shapes exist: an
// embedded io_log (list of [delay, stream, base64 data] triples) or a
// disk-backed io_log_filename reference. Exactly one must be present.
func buildResult(rs *resumeState, repr map[string]any) (*result.Result, error) {
	outcome, err := getStringOrNull(repr, "outcome")
	if err != nil {
		return nil, err
	}
	if !result.ValidOutcome(result.Outcome(outcome)) {
		return nil, corruptedf("outcome", "unknown outcome %q", outcome)
	}
	comments, err := getStringOrNull(repr, "comments")
	if err != nil {
		return nil, err
	}
	returnCode, err := getIntOrNull(repr, "return_code")
	if err != nil {
		return nil, err
	}
	duration, err := getFloatOrNull(repr, "execution_duration")
	if err != nil {
		return nil, err
	}

	res := &result.Result{
		Outcome:           result.Outcome(outcome),
		Comments:          comments,
		ReturnCode:        returnCode,
		ExecutionDuration: duration,
	}

	_, hasLog := repr["io_log"]
	_, hasFile := repr["io_log_filename"]
	if hasLog == hasFile {
		return nil, corruptedf("io_log", "exactly one of io_log and io_log_filename is required")
	}

	if hasLog {
		log, err := decodeIOLog(repr)
		if err != nil {
			return nil, err
		}
		res.IOLog = log
		return res, nil
	}

	filename, err := resolveLogReference(rs, repr)
	if err != nil {
		return nil, err
	}
	res.IOLogFilename = filename
	return res, nil
}

// decodeIOLog validates and decodes the embedded transcript triples.
func decodeIOLog(repr map[string]any) ([]result.IOLogRecord, error) {
	rawLog, err := getList(repr, "io_log")
	if err != nil {
		return nil, err
	}
	log := make([]result.IOLogRecord, 0, len(rawLog))
	for _, item := range rawLog {
		triple, ok := item.([]any)
		if !ok || len(triple) != 3 {
			return nil, corruptedf("io_log", "expected [delay, stream, data] triple, got %v", item)
		}
		delay, ok := triple[0].(float64)
		if !ok || delay < 0 {
			return nil, corruptedf("io_log", "delay must be a non-negative number, got %v", triple[0])
		}
		stream, ok := triple[1].(string)
		if !ok || (result.Stream(stream) != result.Stdout && result.Stream(stream) != result.Stderr) {
			return nil, corruptedf("io_log", "stream must be stdout or stderr, got %v", triple[1])
		}
		encoded, ok := triple[2].(string)
		if !ok {
			return nil, corruptedf("io_log", "data must be a base64 string, got %v", triple[2])
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, corruptedf("io_log", "invalid base64 data: %v", err)
		}
		log = append(log, result.IOLogRecord{
			Delay:  delay,
			Stream: result.Stream(stream),
			Data:   data,
		})
	}
	return log, nil
}

// resolveLogReference validates a disk-backed transcript reference.
// Pathnames must be absolute before version 5; from version 5 relative
// pathnames resolve against the caller-supplied location. If reference
// checking is requested the file must exist; if it is missing and rewriting
// is enabled, a single legacy-prefix rewrite is tried before failing.
func resolveLogReference(rs *resumeState, repr map[string]any) (string, error) {
	filename, err := getString(repr, "io_log_filename")
	if err != nil {
		return "", err
	}
	if filename == "" {
		return "", corruptedf("io_log_filename", "must not be empty")
	}

	if !filepath.IsAbs(filename) {
		if !rs.relativeLogPaths {
			return "", corruptedf("io_log_filename", "must be absolute in this format version")
		}
		filename = filepath.Join(rs.opts.Location, filename)
	}

	checks := rs.opts.Flags&(FlagCheckFileReferences|FlagRewriteLogPathnames) != 0
	if !checks {
		return filename, nil
	}
	if _, err := os.Stat(filename); err == nil {
		return filename, nil
	}
	if rs.opts.Flags&FlagRewriteLogPathnames != 0 {
		if rewritten, ok := rewriteLegacyPath(rs, filename); ok {
			return rewritten, nil
		}
	}
	return "", &BrokenReferenceError{Filename: filename}
}

// rewriteLegacyPath swaps the stored legacy cache prefix for the current
// location. Without a known prefix the bare file name is looked up under
// the current location instead.
func rewriteLegacyPath(rs *resumeState, filename string) (string, bool) {
	var candidate string
	if rs.opts.LegacyLocation != "" && strings.HasPrefix(filename, rs.opts.LegacyLocation) {
		candidate = filepath.Join(rs.opts.Location, strings.TrimPrefix(filename, rs.opts.LegacyLocation))
	} else {
		candidate = filepath.Join(rs.opts.Location, filepath.Base(filename))
	}
	if _, err := os.Stat(candidate); err != nil {
		return "", false
	}
	return candidate, true
}
