package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var deleteCommand = &cli.Command{
	Name:      "delete",
	Usage:     "Delete a node and its entire subtree",
	ArgsUsage: "<id>",
	Action:    deleteNode,
}

func deleteNode(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument: the node id")
	}
	id := ctx.Args().First()

	if err := app.client.DeleteNode(id); err != nil {
		return fmt.Errorf("deleting node: %w", err)
	}

	fmt.Printf("Node %s and its subtree deleted\n", id)
	return nil
}
