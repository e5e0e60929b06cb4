package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"ssg-backend/services/pipeline"

	"github.com/spf13/cobra"
)

var processForce bool

func init() {
	processCmd.Flags().BoolVar(&processForce, "force", false,
		"process even when the page content is unchanged")
	rootCmd.AddCommand(processCmd)
}

// outcomeFailed reports whether an outcome should fail the command's
// exit status: anything that neither completed, was skipped, nor got
// its failure recorded on the game's state row.
func outcomeFailed(out pipeline.Outcome) bool {
	switch out.Status {
	case pipeline.StatusCompleted, pipeline.StatusSkipped:
		return false
	case pipeline.StatusErrored:
		return !out.ErrorRecorded
	default:
		return true
	}
}

var processCmd = &cobra.Command{
	Use:   "process <page.html>...",
	Short: "Processes saved stats pages into artifact sets.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := setup()
		defer a.close()

		var paths []string
		for _, arg := range args {
			matches, err := filepath.Glob(arg)
			if err != nil || len(matches) == 0 {
				paths = append(paths, arg)
				continue
			}
			paths = append(paths, matches...)
		}

		failed := 0
		for _, path := range paths {
			out := a.pipeline.Process(cmd.Context(), path, processForce)
			if outcomeFailed(out) {
				failed++
			}
			switch out.Status {
			case pipeline.StatusCompleted:
				slog.Info("processed",
					"path", path, "app_id", out.AppID, "title", out.Title)
				if out.Notice != "" {
					slog.Warn("completed with notice", "path", path, "notice", out.Notice)
				}
			case pipeline.StatusSkipped:
				slog.Info("skipped", "path", path, "notice", out.Notice)
			default:
				slog.Error("not completed",
					"path", path, "status", string(out.Status), "err", out.Err)
			}
		}

		if failed > 0 {
			a.close()
			os.Exit(1)
		}
	},
}
