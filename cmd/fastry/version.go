package main

import (
	"fmt"

	"github.com/searchktools/fastry"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of fastry",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fastry version %s\n", fastry.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
