package commands

import (
	"fmt"
	"os"
	"time"

	"ssg-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists every tracked game and its processing stage.",
	Run: func(cmd *cobra.Command, args []string) {
		a := setup()
		defer a.close()

		games, err := a.tracker.List(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list games", err)
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"App ID", "Title", "Stage", "Icons", "Updated", "Note"})

		for _, g := range games {
			note := g.Notice
			if g.LastError != "" {
				note = g.LastError
			}
			t.AppendRow(table.Row{
				g.AppID,
				g.Title,
				g.Stage,
				fmt.Sprintf("%d/%d", g.IconsFetched, g.IconsTotal),
				time.Unix(g.UpdatedAt, 0).Format(time.ANSIC),
				note,
			})
		}
		t.Render()
	},
}
