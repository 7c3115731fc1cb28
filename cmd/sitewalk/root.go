package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitewalk.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitewalk",
		Short: "Walk a website in a real browser and report every page",
		Long: `sitewalk walks a website from a seed URL with a headless Chrome.

Every in-scope page up to the depth and page limits is visited once,
screenshotted and probed: forms get a test email and a submit click,
other pages get their first button clicked. The outcome of each visit is
written to JSON and CSV reports and kept in a local run history.

A login form can be filled in before the walk to reach pages behind it.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
