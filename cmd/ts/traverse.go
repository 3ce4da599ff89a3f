package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var traverseCommand = &cli.Command{
	Name:      "traverse",
	Usage:     "Walk the tree depth-first",
	ArgsUsage: "<preorder|inorder|postorder>",
	Action:    traverse,
}

func traverse(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument: the traversal order")
	}
	order := ctx.Args().First()

	views, err := app.client.Traverse(order)
	if err != nil {
		return fmt.Errorf("traversing: %w", err)
	}
	if len(views) == 0 {
		fmt.Println("The tree is empty")
		return nil
	}

	fmt.Printf("%s traversal:\n", order)
	renderNodeTable(views)
	return nil
}
