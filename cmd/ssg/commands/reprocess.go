package commands

import (
	"log/slog"
	"os"

	"ssg-backend/services/pipeline"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reprocessCmd)
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <app-id>...",
	Short: "Re-derives artifacts for completed games from their stored pages.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := setup()
		defer a.close()

		failed := 0
		for _, appID := range args {
			out := a.pipeline.Reprocess(cmd.Context(), appID)
			if outcomeFailed(out) {
				failed++
			}
			if out.Status == pipeline.StatusCompleted {
				slog.Info("reprocessed", "app_id", appID, "title", out.Title)
			} else {
				slog.Error("reprocess failed",
					"app_id", appID, "status", string(out.Status), "err", out.Err)
			}
		}
		if failed > 0 {
			a.close()
			os.Exit(1)
		}
	},
}
