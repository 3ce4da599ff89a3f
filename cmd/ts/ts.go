package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"bts-lite/api"
)

const (
	DefaultEndpoint = "localhost:8080"
	AppName         = "ts"
	AppVersion      = "1.0.0"
)

type app struct {
	client *api.Client
}

func initApp(c *cli.Context) (*app, error) {
	client, err := api.NewClient(c.String("endpoint"))
	if err != nil {
		return nil, err
	}
	if token := c.String("token"); token != "" {
		client.SetToken(token)
	}
	return &app{client: client}, nil
}

func main() {
	app := &cli.App{
		Name:    AppName,
		Usage:   "Client for the binary tree store API",
		Version: AppVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "endpoint",
				Aliases: []string{"e"},
				Value:   DefaultEndpoint,
				Usage:   "Server endpoint (host:port, URL, or unix:// socket)",
				EnvVars: []string{"TS_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token for authenticated servers",
				EnvVars: []string{"TS_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			createRootCommand,
			addChildCommand,
			getNodeCommand,
			parentCommand,
			listNodesCommand,
			traverseCommand,
			updateCommand,
			deleteCommand,
			queryCommand,
			statsCommand,
			watchCommand,
			subsCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
