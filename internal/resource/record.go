// Package resource turns the output of resource jobs into structured facts
// and evaluates the requirement expressions that gate other jobs on them.
//
// A resource job prints one or more records to stdout, each a flat block of
// `key: value` lines, records separated by a blank line. Requirement
// expressions reference a resource by job id and constrain its attributes,
// e.g. `mem.total >= 4096`.
package resource

import (
	"context"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hwcert/checkline/internal/ctxlog"
)

// Record is one parsed resource record: a flat attribute map.
type Record map[string]string

// ParseTranscript splits a resource job's stdout into blank-line separated
// blocks and decodes each as a flat mapping. Malformed blocks are dropped
// with a warning rather than failing the whole parse: resource script output
// is untrusted external input.
func ParseTranscript(ctx context.Context, text string) []Record {
	logger := ctxlog.FromContext(ctx)

	var records []Record
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var raw map[string]string
		if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
			logger.Warn("dropping malformed resource record", "error", err)
			continue
		}
		if len(raw) == 0 {
			continue
		}
		records = append(records, Record(raw))
	}
	return records
}
