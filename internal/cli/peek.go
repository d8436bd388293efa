package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hwcert/checkline/internal/suspend"
)

var peekCmd = &cobra.Command{
	Use:   "peek FILE",
	Short: "Show the version and metadata of a suspended session",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeek,
}

func runPeek(cmd *cobra.Command, args []string) error {
	blob, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	peeked, err := suspend.Peek(blob)
	if err != nil {
		return err
	}

	md := peeked.Metadata
	flags := make([]string, 0, len(md.Flags))
	for f := range md.Flags {
		flags = append(flags, f)
	}
	sort.Strings(flags)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "version:     %d\n", peeked.Version)
	fmt.Fprintf(out, "title:       %s\n", md.Title)
	fmt.Fprintf(out, "flags:       %s\n", strings.Join(flags, ", "))
	fmt.Fprintf(out, "running job: %s\n", md.RunningJobName)
	fmt.Fprintf(out, "app id:      %s\n", md.AppID)
	fmt.Fprintf(out, "app blob:    %d bytes\n", len(md.AppBlob))
	return nil
}
