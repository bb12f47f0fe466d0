package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"tasnim.dev/lbgraph/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lbgraph",
		Short: "Model ELBv2 listeners, rules and target groups and synthesize them",
	}

	rootCmd.AddCommand(cmd.NewSynthCmd())
	rootCmd.AddCommand(cmd.NewValidateCmd())
	rootCmd.AddCommand(cmd.NewRouteCmd())
	rootCmd.AddCommand(cmd.NewImportCmd())
	rootCmd.AddCommand(cmd.NewHistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
