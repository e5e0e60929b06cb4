package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(deleteCmd)
}

var deleteCmd = &cobra.Command{
	Use:   "delete <app-id>...",
	Short: "Removes a game's record, stored page and output folder. The icon cache is kept.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := setup()
		defer a.close()

		failed := 0
		for _, appID := range args {
			err := a.pipeline.Delete(cmd.Context(), appID)
			if err != nil {
				slog.Error("delete failed", "app_id", appID, "err", err)
				failed++
				continue
			}
			slog.Info("deleted", "app_id", appID)
		}
		if failed > 0 {
			a.close()
			os.Exit(1)
		}
	},
}
