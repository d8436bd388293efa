package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hwcert/checkline/internal/job"
	"github.com/hwcert/checkline/internal/suspend"
)

var (
	resumeJobsDir        string
	resumeLocation       string
	resumeLegacyLocation string
	resumeCheckRefs      bool
	resumeRewritePaths   bool
	resumeIgnoreChecksum bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume FILE",
	Short: "Resume a suspended session against a job catalog and report it",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeJobsDir, "jobs", "", "directory of job definition files (required)")
	resumeCmd.Flags().StringVar(&resumeLocation, "location", "", "current session storage directory")
	resumeCmd.Flags().StringVar(&resumeLegacyLocation, "legacy-location", "", "absolute log prefix to rewrite")
	resumeCmd.Flags().BoolVar(&resumeCheckRefs, "check-references", false, "require disk-backed io logs to exist")
	resumeCmd.Flags().BoolVar(&resumeRewritePaths, "rewrite-pathnames", false, "rewrite legacy io log pathnames")
	resumeCmd.Flags().BoolVar(&resumeIgnoreChecksum, "ignore-checksum", false, "tolerate job definition drift")
	_ = resumeCmd.MarkFlagRequired("jobs")
}

func runResume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	catalog, err := job.LoadDir(ctx, resumeJobsDir)
	if err != nil {
		return err
	}
	blob, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var flags suspend.Flag
	if resumeCheckRefs {
		flags |= suspend.FlagCheckFileReferences
	}
	if resumeRewritePaths {
		flags |= suspend.FlagRewriteLogPathnames
	}
	if resumeIgnoreChecksum {
		flags |= suspend.FlagIgnoreJobChecksum
	}

	st, err := suspend.Resume(ctx, blob, catalog, suspend.Options{
		Flags:          flags,
		Location:       resumeLocation,
		LegacyLocation: resumeLegacyLocation,
	}, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "resumed %q: %d jobs, %d on run list\n",
		st.Metadata().Title, len(st.Jobs()), len(st.RunList()))
	for _, j := range st.RunList() {
		js := st.JobState(j.ID)
		switch {
		case js.Result != nil:
			fmt.Fprintf(out, "  %-30s %s\n", j.ID, js.Result)
		case js.Runnable():
			fmt.Fprintf(out, "  %-30s runnable\n", j.ID)
		default:
			fmt.Fprintf(out, "  %-30s blocked: %s\n", j.ID, js.Inhibitors[0])
		}
	}
	return nil
}
