/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vnf-lcm",
	Short: "VNF lifecycle manager",
	Long: `vnf-lcm manages long-running VNF lifecycle operations as sagas over an
event-sourced store, with a transactional outbox for reliable messaging.

Subcommands run the individual processes: the northbound API server, the
outbox relay, the timeout watchdog, the saga reply consumer, and the VIM
simulator used for local end-to-end runs.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}
