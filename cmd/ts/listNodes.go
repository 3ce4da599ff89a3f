package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var listNodesCommand = &cli.Command{
	Name:   "nodes",
	Usage:  "List all nodes in level order",
	Action: listNodes,
}

func listNodes(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	views, err := app.client.ListNodes()
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}
	if len(views) == 0 {
		fmt.Println("The tree is empty")
		return nil
	}

	renderNodeTable(views)
	fmt.Printf("\nTotal nodes: %d\n", len(views))
	return nil
}
