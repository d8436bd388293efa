// Package job defines the immutable job model of the catalog: what a check
// is, what it depends on, which resources gate it, and the content checksum
// used to detect definition drift across suspend/resume.
package job

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/hwcert/checkline/internal/resource"
)

// Plugin is the closed set of job kinds. The kind determines how a job's
// result is produced and whether its output feeds back into the engine
// (resource records, generated job definitions).
type Plugin string

const (
	PluginShell              Plugin = "shell"
	PluginResource           Plugin = "resource"
	PluginLocal              Plugin = "local"
	PluginManual             Plugin = "manual"
	PluginUserInteract       Plugin = "user-interact"
	PluginUserVerify         Plugin = "user-verify"
	PluginUserInteractVerify Plugin = "user-interact-verify"
	PluginAttachment         Plugin = "attachment"
)

// ValidPlugin reports whether p is a member of the plugin enum.
func ValidPlugin(p Plugin) bool {
	switch p {
	case PluginShell, PluginResource, PluginLocal, PluginManual,
		PluginUserInteract, PluginUserVerify, PluginUserInteractVerify,
		PluginAttachment:
		return true
	default:
		return false
	}
}

// Manual reports whether the plugin kind requires operator interaction.
func (p Plugin) Manual() bool {
	switch p {
	case PluginManual, PluginUserInteract, PluginUserVerify, PluginUserInteractVerify:
		return true
	case PluginShell, PluginResource, PluginLocal, PluginAttachment:
		return false
	default:
		return false
	}
}

// Job is a single named check definition. Jobs are immutable: they are built
// once by the catalog loader (or generated by a local job) and only
// referenced afterwards.
type Job struct {
	ID                string
	Summary           string
	Plugin            Plugin
	Command           string
	DependsOn         []string
	Requires          []*resource.Expression
	Flags             map[string]struct{}
	EstimatedDuration float64 // seconds; 0 means not declared

	checksum string
}

// New builds a Job and computes its content checksum. requires holds the
// raw predicate sources; they are parsed here so a bad predicate is caught
// at definition time, not at readiness time.
func New(id string, plugin Plugin, opts Definition) (*Job, error) {
	if id == "" {
		return nil, fmt.Errorf("job id must not be empty")
	}
	if !ValidPlugin(plugin) {
		return nil, fmt.Errorf("job %q: unknown plugin %q", id, plugin)
	}

	j := &Job{
		ID:                id,
		Summary:           opts.Summary,
		Plugin:            plugin,
		Command:           opts.Command,
		DependsOn:         append([]string(nil), opts.DependsOn...),
		Flags:             make(map[string]struct{}, len(opts.Flags)),
		EstimatedDuration: opts.EstimatedDuration,
	}
	for _, f := range opts.Flags {
		j.Flags[f] = struct{}{}
	}
	for _, text := range opts.Requires {
		expr, err := resource.ParseExpression(text)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", id, err)
		}
		j.Requires = append(j.Requires, expr)
	}
	j.checksum = j.computeChecksum()
	return j, nil
}

// Definition carries the optional fields of a job definition.
type Definition struct {
	Summary           string
	Command           string
	DependsOn         []string
	Requires          []string
	Flags             []string
	EstimatedDuration float64
}

// Checksum returns the hex sha256 over the canonical definition. Two jobs
// with the same checksum are interchangeable definitions.
func (j *Job) Checksum() string { return j.checksum }

// HasFlag reports whether the definition carries the given flag.
func (j *Job) HasFlag(flag string) bool {
	_, ok := j.Flags[flag]
	return ok
}

// ResourceIDs returns the ids of the resource jobs referenced by the
// requirement predicates, deduplicated, in first-reference order.
func (j *Job) ResourceIDs() []string {
	seen := make(map[string]struct{}, len(j.Requires))
	var ids []string
	for _, expr := range j.Requires {
		id := expr.ResourceID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// AllDependencies returns direct dependencies plus the resource jobs the
// requirement predicates reference. This is the edge set the dependency
// solver orders on: a gated job must run after its gating resource.
func (j *Job) AllDependencies() []string {
	deps := append([]string(nil), j.DependsOn...)
	seen := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		seen[d] = struct{}{}
	}
	for _, id := range j.ResourceIDs() {
		if _, ok := seen[id]; !ok {
			deps = append(deps, id)
		}
	}
	return deps
}

func (j *Job) String() string { return j.ID }

// computeChecksum renders the definition into a canonical byte form and
// hashes it. Field order is fixed; list fields are sorted so declaration
// order does not affect the hash.
func (j *Job) computeChecksum() string {
	depends := append([]string(nil), j.DependsOn...)
	sort.Strings(depends)

	requires := make([]string, 0, len(j.Requires))
	for _, e := range j.Requires {
		requires = append(requires, e.Text())
	}
	sort.Strings(requires)

	flags := make([]string, 0, len(j.Flags))
	for f := range j.Flags {
		flags = append(flags, f)
	}
	sort.Strings(flags)

	var sb strings.Builder
	fmt.Fprintf(&sb, "id=%s\n", j.ID)
	fmt.Fprintf(&sb, "plugin=%s\n", j.Plugin)
	fmt.Fprintf(&sb, "summary=%s\n", j.Summary)
	fmt.Fprintf(&sb, "command=%s\n", j.Command)
	fmt.Fprintf(&sb, "depends=%s\n", strings.Join(depends, ","))
	fmt.Fprintf(&sb, "requires=%s\n", strings.Join(requires, ","))
	fmt.Fprintf(&sb, "flags=%s\n", strings.Join(flags, ","))
	fmt.Fprintf(&sb, "estimated_duration=%g\n", j.EstimatedDuration)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
