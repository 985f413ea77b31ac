package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/recommender"
)

func recommendCmd() *cobra.Command {
	var (
		sessionID string
		text      string
		count     int
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend scripts for a customer message",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			services, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := services.Recommender().Recommend(ctx, recommender.RecommendRequest{
				SessionID: sessionID,
				Turns:     []model.ConversationTurn{{Speaker: model.SpeakerCustomer, Text: text}},
				Count:     count,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id")
	cmd.Flags().StringVar(&text, "text", "", "Customer message")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of scripts")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
