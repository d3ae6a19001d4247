package main

import (
	"github.com/spf13/cobra"
)

var classCmd = &cobra.Command{
	Use:   "class",
	Short: "Generate sessions for class offerings",
}

var classGenerateCmd = &cobra.Command{
	Use:   "generate <class-offering-id>",
	Short: "Create the fixed, extra and e-learning sessions of a class offering",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		result, err := rt.container.Fixed.CreateFixedSessions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}),
}

var classRegenerateCmd = &cobra.Command{
	Use:   "regenerate <class-offering-id>",
	Short: "Drop and recreate every session of a class offering",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		result, err := rt.container.Fixed.Regenerate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}),
}

func init() {
	classCmd.AddCommand(classGenerateCmd, classRegenerateCmd)
	rootCmd.AddCommand(classCmd)
}
