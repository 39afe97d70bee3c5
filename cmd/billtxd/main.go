package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/billtx/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "billtxd",
		Short: "Billing transaction server",
		Long:  "billtxd serves the billing RPCs and demonstrates how transaction boundaries commit or roll back",
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.DemoCmd())
	rootCmd.AddCommand(cli.TokenCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
