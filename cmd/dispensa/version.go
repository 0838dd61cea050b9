package main

import (
	"fmt"

	"github.com/aretw0/dispensa"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of dispensa",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dispensa version %s\n", dispensa.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
