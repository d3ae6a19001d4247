package main

import (
	"time"

	"github.com/spf13/cobra"
)

var semesterCmd = &cobra.Command{
	Use:   "semester",
	Short: "Drive semester lifecycle transitions",
}

var semesterActivateCmd = &cobra.Command{
	Use:   "activate <semester-id>",
	Short: "Activate an upcoming semester and place its extra sessions",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		result, err := rt.container.Semesters.Activate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}),
}

var semesterCompleteCmd = &cobra.Command{
	Use:   "complete <semester-id>",
	Short: "Complete an active semester",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		result, err := rt.container.Semesters.Complete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}),
}

var semesterExtraCmd = &cobra.Command{
	Use:   "extra <semester-id>",
	Short: "Place pending extra sessions of an active semester",
	Args:  cobra.ExactArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		report, err := rt.container.Semesters.ScheduleExtra(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	}),
}

var semesterSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Apply every semester transition that is due now",
	Args:  cobra.NoArgs,
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, _ []string) error {
		result, err := rt.container.Semesters.SweepDue(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	}),
}

func init() {
	semesterCmd.AddCommand(semesterActivateCmd, semesterCompleteCmd, semesterExtraCmd, semesterSweepCmd)
	rootCmd.AddCommand(semesterCmd)
}
