package main

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v2"
)

var getNodeCommand = &cli.Command{
	Name:      "get",
	Usage:     "Fetch one node by id",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "field",
			Usage: "Print only this field of the node (id, value, left, right, parent)",
		},
	},
	Action: getNode,
}

func getNode(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument: the node id")
	}

	view, err := app.client.GetNode(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("fetching node: %w", err)
	}

	if field := ctx.String("field"); field != "" {
		raw, err := jsonBytes(view)
		if err != nil {
			return err
		}
		result := gjson.GetBytes(raw, field)
		if !result.Exists() {
			return fmt.Errorf("node has no field %q", field)
		}
		fmt.Println(result.String())
		return nil
	}

	renderNode(view)
	return nil
}
