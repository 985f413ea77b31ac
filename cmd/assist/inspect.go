package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"basegraph.app/assist/internal/inspector"
)

func inspectCmd() *cobra.Command {
	var (
		format    string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Score a recorded conversation and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading conversation: %w", err)
			}

			services, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := services.Inspection().Inspect(ctx, string(raw), sessionID)
			if err != nil {
				return err
			}
			body, _, err := inspector.Export(report, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", inspector.FormatText, "Report format: json, text or html")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id recorded on the report")
	return cmd
}
