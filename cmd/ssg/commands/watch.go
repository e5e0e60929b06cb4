package commands

import (
	"time"

	"ssg-backend/lib/serviceutil"
	"ssg-backend/lib/telemetry"
	"ssg-backend/services/pipeline"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watches the drop folder and processes pages as they appear.",
	Run: func(cmd *cobra.Command, args []string) {
		a := setup()
		defer a.close()

		ctx := serviceutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)

		w := pipeline.NewWatcher(
			a.pipeline,
			a.cfg.DropDir,
			time.Duration(a.cfg.Watch.PollSeconds)*time.Second,
		)
		err := w.Run(ctx)
		if err != nil {
			serviceutil.Fatal("watch loop failed", err)
		}
	},
}
