package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var createRootCommand = &cli.Command{
	Name:      "create-root",
	Usage:     "Create the root node",
	ArgsUsage: "<value>",
	Action:    createRoot,
}

func createRoot(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument: the integer value")
	}
	value, err := parseValue(ctx.Args().First())
	if err != nil {
		return err
	}

	view, err := app.client.CreateRoot(value)
	if err != nil {
		return fmt.Errorf("creating root: %w", err)
	}

	fmt.Println("Root created:")
	renderNode(view)
	return nil
}
