package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/hwcert/checkline/internal/ctxlog"
)

// hclJob mirrors one `job "<id>" { ... }` block for decoding.
type hclJob struct {
	ID                string   `hcl:"id,label"`
	Plugin            string   `hcl:"plugin,optional"`
	Summary           string   `hcl:"summary,optional"`
	Command           string   `hcl:"command,optional"`
	Depends           []string `hcl:"depends,optional"`
	Requires          []string `hcl:"requires,optional"`
	Flags             []string `hcl:"flags,optional"`
	EstimatedDuration float64  `hcl:"estimated_duration,optional"`
}

// hclJobFile is the top-level shape of a catalog file.
type hclJobFile struct {
	Jobs []*hclJob `hcl:"job,block"`
}

// ParseDefinitions decodes job definitions from HCL source. It is used both
// for catalog files on disk and for the output of local jobs, which generate
// further definitions at runtime.
func ParseDefinitions(ctx context.Context, src []byte, filename string) ([]*Job, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", filename, diags)
	}

	var parsed hclJobFile
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", filename, diags)
	}

	jobs := make([]*Job, 0, len(parsed.Jobs))
	for _, raw := range parsed.Jobs {
		plugin := Plugin(raw.Plugin)
		if raw.Plugin == "" {
			plugin = PluginShell
		}
		j, err := New(raw.ID, plugin, Definition{
			Summary:           raw.Summary,
			Command:           raw.Command,
			DependsOn:         raw.Depends,
			Requires:          raw.Requires,
			Flags:             raw.Flags,
			EstimatedDuration: raw.EstimatedDuration,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		jobs = append(jobs, j)
	}
	logger.Debug("parsed job definitions", "file", filename, "count", len(jobs))
	return jobs, nil
}

// LoadDir loads every *.hcl file in dir, in lexical order, and returns the
// concatenated definitions. Duplicate handling is left to the session layer,
// which owns the collapse-or-conflict rule.
func LoadDir(ctx context.Context, dir string) ([]*Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".hcl" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var jobs []*Job
	for _, name := range names {
		path := filepath.Join(dir, name)
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		parsed, err := ParseDefinitions(ctx, src, path)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, parsed...)
	}
	return jobs, nil
}
