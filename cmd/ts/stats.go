package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
)

var statsCommand = &cli.Command{
	Name:   "stats",
	Usage:  "Show tree statistics",
	Action: showStats,
}

func showStats(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	stats, err := app.client.Stats()
	if err != nil {
		return fmt.Errorf("fetching stats: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendRow(table.Row{"Nodes", stats.Nodes})
	t.AppendRow(table.Row{"Depth", stats.Depth})
	t.AppendRow(table.Row{"Root", orDash(stats.RootID)})
	t.Render()
	return nil
}
