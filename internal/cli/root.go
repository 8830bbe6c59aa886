package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rodeoai",
		Short:         "RodeoAI chat backend",
		Long:          "RodeoAI serves the branded chat API, manages its PostgreSQL schema and runs usage maintenance.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newResetUsageCmd(),
	)

	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("rodeoai %s\n", Version))

	return root
}

func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
