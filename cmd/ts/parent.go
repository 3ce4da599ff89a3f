package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var parentCommand = &cli.Command{
	Name:      "parent",
	Usage:     "Fetch the parent of a node",
	ArgsUsage: "<id>",
	Action:    getParent,
}

func getParent(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument: the node id")
	}
	id := ctx.Args().First()

	parent, err := app.client.GetParent(id)
	if err != nil {
		return fmt.Errorf("fetching parent: %w", err)
	}
	if parent == nil {
		fmt.Printf("%s is the root, it has no parent\n", id)
		return nil
	}

	renderNode(*parent)
	return nil
}
