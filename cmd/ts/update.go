package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var updateCommand = &cli.Command{
	Name:      "update",
	Usage:     "Replace a node's value",
	ArgsUsage: "<id> <value>",
	Action:    updateNode,
}

func updateNode(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 2 {
		return fmt.Errorf("expected two arguments: node id and value")
	}
	id := ctx.Args().Get(0)
	value, err := parseValue(ctx.Args().Get(1))
	if err != nil {
		return err
	}

	if err := app.client.UpdateNode(id, value); err != nil {
		return fmt.Errorf("updating node: %w", err)
	}

	fmt.Printf("Node %s updated to %d\n", id, value)
	return nil
}
