package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Necrotome CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "necrotome",
		Short: "Necrotome - a spellbook catalog server",
		Long: `Necrotome is a spellbook catalog server with hybrid token and
session authentication backed by MongoDB.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
