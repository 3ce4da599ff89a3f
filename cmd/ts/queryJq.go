package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

var queryCommand = &cli.Command{
	Name:      "query",
	Usage:     "Run a jq expression over the level-order node list",
	ArgsUsage: "<jq-expression>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "compact",
			Aliases: []string{"c"},
			Usage:   "Compact instead of pretty-printed output",
		},
	},
	Action: queryJq,
}

func queryJq(ctx *cli.Context) error {
	app, err := initApp(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument: the jq expression")
	}

	result, err := app.client.Query(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	if result == nil {
		fmt.Println("null")
		return nil
	}

	if ctx.Bool("compact") {
		fmt.Println(string(result))
		return nil
	}

	var pretty any
	if err := json.Unmarshal(result, &pretty); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
