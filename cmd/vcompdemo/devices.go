package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/vcomp/backend"
	_ "github.com/gogpu/vcomp/backend/native"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the registered rendering devices",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		def := ""
		if d := backend.Default(); d != nil {
			def = d.Name()
			d.Close()
		}
		for _, name := range backend.Available() {
			marker := " "
			if name == def {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
