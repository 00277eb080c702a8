/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/telcoops/vnf-lifecycle-manager/internal/bootstrap"
	"github.com/telcoops/vnf-lifecycle-manager/internal/config"
)

var simulatorCmd = &cobra.Command{
	Use:   "simulator",
	Short: "Run the in-memory VIM participant for local end-to-end runs",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config error:", err)
			os.Exit(1)
		}
		if err := bootstrap.RunSimulator(ctx, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "simulator error:", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(simulatorCmd)
}
