package main

import (
	"strings"

	"github.com/spf13/cobra"
)

// setupDynamicCompletion completes descriptor names for commands taking <name>
func setupDynamicCompletion(rootCmd *cobra.Command, a *app) {
	for _, path := range [][]string{
		{"generate"},
		{"manifest"},
		{"install"},
		{"descriptors", "show"},
	} {
		if cmd := findCommand(rootCmd, path...); cmd != nil {
			cmd.ValidArgsFunction = completeDescriptors(a)
		}
	}
}

// completeDescriptors completes the first argument with descriptor names
func completeDescriptors(a *app) func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		if err := a.ensure(cmd); err != nil {
			return nil, cobra.ShellCompDirectiveError
		}

		descriptors, err := a.descriptors.ListDescriptors()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}

		var completions []string
		for _, d := range descriptors {
			if strings.HasPrefix(d.Name, toComplete) {
				completions = append(completions, d.Name+"\t"+d.DisplayName)
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// findCommand walks root through the given subcommand names
func findCommand(root *cobra.Command, path ...string) *cobra.Command {
	cmd := root
	for _, name := range path {
		var next *cobra.Command
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				next = sub
				break
			}
		}
		if next == nil {
			return nil
		}
		cmd = next
	}
	return cmd
}
