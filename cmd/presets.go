// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ifrad/internal/presets"
)

var presetDescription string

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage saved raw command presets",
	Long: `List, add and remove named raw commands.

Presets live in a TOML file (--presets, default presets.toml). Built-in
presets exist for every operation and can be overridden by name.`,
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := presets.Load(cfg.Presets.File)
		if err != nil {
			return err
		}
		for _, p := range set.List() {
			fmt.Printf("%-14s %-26s %s\n", p.Name, p.Hex, p.Description)
		}
		return nil
	},
}

var presetsAddCmd = &cobra.Command{
	Use:   "add <name> <hex>",
	Short: "Add or replace a preset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := presets.Load(cfg.Presets.File)
		if err != nil {
			return err
		}
		if err := set.Add(presets.Preset{Name: args[0], Hex: args[1], Description: presetDescription}); err != nil {
			return err
		}
		if err := set.Save(cfg.Presets.File); err != nil {
			return err
		}
		fmt.Printf("Saved preset %s to %s\n", args[0], cfg.Presets.File)
		return nil
	},
}

var presetsRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := presets.Load(cfg.Presets.File)
		if err != nil {
			return err
		}
		if err := set.Remove(args[0]); err != nil {
			return err
		}
		if err := set.Save(cfg.Presets.File); err != nil {
			return err
		}
		fmt.Printf("Removed preset %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	presetsCmd.AddCommand(presetsListCmd, presetsAddCmd, presetsRemoveCmd)
	presetsAddCmd.Flags().StringVarP(&presetDescription, "description", "d", "", "Preset description")
}
