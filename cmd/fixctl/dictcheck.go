package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abquickfix/fixengine/datadictionary"
)

func newDictCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dictionary-validate <path.xml>",
		Short: "Load and validate a FIX data dictionary file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dd, err := datadictionary.Load(args[0])
			if err != nil {
				return err
			}
			fields := dd.OrderedFields()
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d fields loaded\n", len(fields))
			return nil
		},
	}
	return cmd
}
