package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/escrow"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of escrow",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "escrow version %s\n", strings.TrimSpace(escrow.Version))
		},
	}
}
