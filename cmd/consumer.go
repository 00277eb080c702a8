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

var consumerCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Consume saga replies and advance sagas",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config error:", err)
			os.Exit(1)
		}
		if err := bootstrap.RunConsumer(ctx, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "consumer error:", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(consumerCmd)
}
