package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shaderkit/internal/dcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the on-disk SPIR-V cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the cache directory and entry count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dc, err := dcache.Open("shaderkit")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n%d entries\n", dc.Dir(), dc.Len())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached SPIR-V entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dc, err := dcache.Open("shaderkit")
		if err != nil {
			return err
		}
		n := dc.Len()
		if err := dc.DropAll(); err != nil {
			return fmt.Errorf("clear %s: %w", dc.Dir(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries from %s\n", n, dc.Dir())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd)
}
