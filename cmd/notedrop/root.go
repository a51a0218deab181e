package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "notedrop",
		Short:         "notedrop",
		Long:          `note sharing service with an owner dashboard and download audit log`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newHashPasswordCmd())
	return root
}
