package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var addChildCommand = &cli.Command{
	Name:      "add-child",
	Usage:     "Attach a child to a parent node",
	ArgsUsage: "<parent-id> <left|right> <value>",
	Action:    addChild,
}

func addChild(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 3 {
		return fmt.Errorf("expected three arguments: parent id, side, value")
	}
	parentID := ctx.Args().Get(0)
	side := ctx.Args().Get(1)
	value, err := parseValue(ctx.Args().Get(2))
	if err != nil {
		return err
	}

	view, err := app.client.CreateChild(parentID, side, value)
	if err != nil {
		return fmt.Errorf("adding child: %w", err)
	}

	fmt.Printf("Child attached to the %s side of %s:\n", side, parentID)
	renderNode(view)
	return nil
}
