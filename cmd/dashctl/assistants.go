package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/models"
)

type refreshResult struct {
	AssistantID string                 `json:"assistantId" yaml:"assistantId"`
	Name        string                 `json:"name" yaml:"name"`
	Stats       *models.AssistantStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	Error       string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

func assistantsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assistants",
		Short: "Assistant maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh-stats <user-id|email>",
		Short: "Pull call history from the voice provider and recompute every assistant's stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.users.FindByRef(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			assistants, err := a.assistants.List(cmd.Context(), user)
			if err != nil {
				return err
			}

			results := make([]refreshResult, 0, len(assistants))
			for _, as := range assistants {
				res := refreshResult{AssistantID: as.ID.Hex(), Name: as.Name}
				stats, err := a.assistants.RefreshStats(cmd.Context(), user, as.ID.Hex(), true)
				if err != nil {
					a.logger.Warn("Stats refresh failed", zap.String("assistantID", res.AssistantID), zap.Error(err))
					res.Error = err.Error()
				} else {
					res.Stats = stats
				}
				results = append(results, res)
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, results)
		},
	})
	return cmd
}
