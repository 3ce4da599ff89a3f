package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
)

var subsCommand = &cli.Command{
	Name:  "subs",
	Usage: "Manage JS subscriptions",
	Subcommands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "List registered subscriptions",
			Action: listSubs,
		},
		{
			Name:      "create",
			Usage:     "Register a scripted mutation hook",
			ArgsUsage: "<id> <script>",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  "filter",
					Usage: "Only fire for these event types (create, update, delete)",
				},
				&cli.StringFlag{
					Name:  "file",
					Usage: "Read the script from a file instead of the argument",
				},
			},
			Action: createSub,
		},
		{
			Name:      "remove",
			Usage:     "Remove a subscription",
			ArgsUsage: "<id>",
			Action:    removeSub,
		},
	},
}

func listSubs(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	subs, err := app.client.ListSubscriptions()
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	if len(subs) == 0 {
		fmt.Println("No subscriptions registered")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"ID", "Created", "Timeout", "Script"})
	for _, sub := range subs {
		script := sub.Script
		if len(script) > 60 {
			script = script[:57] + "..."
		}
		t.AppendRow(table.Row{
			sub.ID,
			sub.CreatedAt.Format(time.RFC3339),
			fmt.Sprintf("%dms", sub.ExecutionTimeout),
			script,
		})
	}
	t.Render()
	return nil
}

func createSub(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() < 1 {
		return fmt.Errorf("expected a subscription id")
	}
	id := ctx.Args().Get(0)

	var script string
	if file := ctx.String("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading script file: %w", err)
		}
		script = string(data)
	} else {
		if ctx.NArg() != 2 {
			return fmt.Errorf("expected a script argument or --file")
		}
		script = ctx.Args().Get(1)
	}

	if err := app.client.CreateSubscription(id, script, ctx.StringSlice("filter")); err != nil {
		return fmt.Errorf("creating subscription: %w", err)
	}

	fmt.Printf("Subscription %s created\n", id)
	return nil
}

func removeSub(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument: the subscription id")
	}
	id := ctx.Args().First()

	if err := app.client.DeleteSubscription(id); err != nil {
		return fmt.Errorf("removing subscription: %w", err)
	}

	fmt.Printf("Subscription %s removed\n", id)
	return nil
}
