package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hwcert/checkline/internal/job"
	"github.com/hwcert/checkline/internal/session"
)

var planJobsDir string

var planCmd = &cobra.Command{
	Use:   "plan JOB...",
	Short: "Resolve a job selection into an ordered run list",
	Long: `plan loads a job catalog, selects the named jobs, and prints the
dependency-closed run list plus any resolution problems, without running
anything.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planJobsDir, "jobs", "", "directory of job definition files (required)")
	_ = planCmd.MarkFlagRequired("jobs")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	catalog, err := job.LoadDir(ctx, planJobsDir)
	if err != nil {
		return err
	}
	st, err := session.New(ctx, catalog, nil)
	if err != nil {
		return err
	}

	desired, err := selectJobs(st, args)
	if err != nil {
		return err
	}
	problems := st.UpdateDesiredJobList(ctx, desired)

	out := cmd.OutOrStdout()
	for _, p := range problems {
		fmt.Fprintf(out, "problem: %v\n", p)
	}
	fmt.Fprintf(out, "run list (%d jobs):\n", len(st.RunList()))
	for _, j := range st.RunList() {
		fmt.Fprintf(out, "  %s\n", j.ID)
	}
	if auto, manual := st.EstimatedDuration(); auto != nil || manual != nil {
		fmt.Fprintf(out, "estimated duration: automated %s, manual %s\n",
			formatSeconds(auto), formatSeconds(manual))
	}
	return nil
}

func selectJobs(st *session.State, ids []string) ([]*job.Job, error) {
	jobs := make([]*job.Job, 0, len(ids))
	for _, id := range ids {
		j := st.Job(id)
		if j == nil {
			return nil, fmt.Errorf("unknown job %q", id)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func formatSeconds(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.0fs", *v)
}
