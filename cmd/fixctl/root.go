package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fixctl",
		Short:         "Operate a FIX session engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newDictCheckCmd())
	root.AddCommand(newStoreInspectCmd())

	return root
}
