package session

import (
	"fmt"

	"github.com/hwcert/checkline/internal/resource"
)

// InhibitorCause is the closed set of reasons a job cannot run right now.
type InhibitorCause int

const (
	// CauseUndesired marks a job that is not on the run list.
	CauseUndesired InhibitorCause = iota
	// CausePendingDep marks a direct dependency that has not produced a
	// result yet.
	CausePendingDep
	// CauseFailedDep marks a direct dependency whose result is not a pass.
	CauseFailedDep
	// CausePendingResource marks a gating resource job that has not been
	// evaluated yet.
	CausePendingResource
	// CauseFailedResource marks a requirement predicate no current resource
	// record satisfies.
	CauseFailedResource
)

func (c InhibitorCause) String() string {
	switch c {
	case CauseUndesired:
		return "undesired"
	case CausePendingDep:
		return "pending dependency"
	case CauseFailedDep:
		return "failed dependency"
	case CausePendingResource:
		return "pending resource"
	case CauseFailedResource:
		return "failed resource"
	default:
		return fmt.Sprintf("cause(%d)", int(c))
	}
}

// Inhibitor is one tagged reason blocking a job. Every cause except
// CauseUndesired names the related job; resource causes additionally carry
// the unsatisfied requirement expression.
type Inhibitor struct {
	Cause        InhibitorCause
	RelatedJobID string
	Expression   *resource.Expression
}

func (i Inhibitor) String() string {
	switch i.Cause {
	case CauseUndesired:
		return "undesired"
	case CausePendingResource, CauseFailedResource:
		return fmt.Sprintf("%s: %s (%s)", i.Cause, i.RelatedJobID, i.Expression)
	default:
		return fmt.Sprintf("%s: %s", i.Cause, i.RelatedJobID)
	}
}

func undesiredInhibitor() Inhibitor {
	return Inhibitor{Cause: CauseUndesired}
}
