package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and restore individual sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>...",
	Short: "Print sessions with their effective placement",
	Args:  cobra.MinimumNArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		views, err := rt.container.SessionRepo.FindByIDs(cmd.Context(), nil, args)
		if err != nil {
			return err
		}
		if len(views) != len(args) {
			return fmt.Errorf("found %d of %d sessions", len(views), len(args))
		}
		out := make([]dto.SessionResponse, 0, len(views))
		for _, view := range views {
			out = append(out, dto.NewSessionResponse(view))
		}
		return printJSON(cmd, out)
	}),
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset <session-id>...",
	Short: "Restore sessions to their original placement",
	Args:  cobra.MinimumNArgs(1),
	RunE: withRuntime(func(cmd *cobra.Command, rt *runtime, args []string) error {
		result, err := rt.container.Reschedule.BatchReset(cmd.Context(), dto.BatchResetRequest{SessionIDs: args})
		if err != nil {
			return err
		}
		if err := printJSON(cmd, result); err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d of %d sessions could not be reset", len(result.Failed), len(args))
		}
		return nil
	}),
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionResetCmd)
	rootCmd.AddCommand(sessionCmd)
}
