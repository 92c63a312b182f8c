package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/kbukum/scribe/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			v := version.GetVersionInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scribe %s\n", v.Version)
			fmt.Fprintf(out, "  Git Commit: %s\n", v.GitCommit)
			fmt.Fprintf(out, "  Build Time: %s\n", v.BuildTime)
			fmt.Fprintf(out, "  Go Version: %s\n", v.GoVersion)
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
